//go:build linux

package server

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	somaxconnPath     = "/proc/sys/net/core/somaxconn"
	netstatPath       = "/proc/net/netstat"
	lowSomaxconn      = 4096
	overflowCheckTick = 10 * time.Second
)

// logListenBacklog logs the kernel's listen backlog limit and warns when it is low
func logListenBacklog(logger zerolog.Logger, addr string) {
	somaxconn := readSomaxconn()

	logger.Info().Str("addr", addr).Int("somaxconn", somaxconn).Msg("TCP listener ready")
	if somaxconn > 0 && somaxconn < lowSomaxconn {
		logger.Warn().Int("somaxconn", somaxconn).
			Msg("net.core.somaxconn may be too low for bursts of connections; consider sysctl -w net.core.somaxconn=65535")
	}
}

func readSomaxconn() int {
	data, err := os.ReadFile(somaxconnPath)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return n
}

// monitorListenOverflows logs whenever the kernel reports new listen queue overflows
func (s *Server) monitorListenOverflows() {
	defer s.wg.Done()

	ticker := time.NewTicker(overflowCheckTick)
	defer ticker.Stop()

	last := readListenOverflows()
	for {
		select {
		case <-ticker.C:
			overflows := readListenOverflows()
			if overflows > last {
				s.logger.Warn().
					Uint64("rejected", overflows-last).
					Uint64("total", overflows).
					Msg("connections rejected due to listen backlog overflow")
			}
			last = overflows

		case <-s.shutdown:
			return
		}
	}
}

func readListenOverflows() uint64 {
	file, err := os.Open(netstatPath)
	if err != nil {
		return 0
	}
	defer file.Close()

	return parseListenOverflows(file)
}

// parseListenOverflows extracts TcpExt ListenOverflows from /proc/net/netstat content.
// The file holds pairs of lines per protocol: a header row then a value row.
func parseListenOverflows(r io.Reader) uint64 {
	scanner := bufio.NewScanner(r)
	var headers, values []string

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != "TcpExt:" {
			continue
		}
		if headers == nil {
			headers = fields[1:]
			continue
		}
		values = fields[1:]
		break
	}

	for i, header := range headers {
		if header != "ListenOverflows" || i >= len(values) {
			continue
		}
		n, err := strconv.ParseUint(values[i], 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
