//go:build !linux

package server

import "github.com/rs/zerolog"

func logListenBacklog(logger zerolog.Logger, addr string) {
	logger.Info().Str("addr", addr).Msg("TCP listener ready")
}

// monitorListenOverflows has no data source outside Linux
func (s *Server) monitorListenOverflows() {
	s.wg.Done()
}
