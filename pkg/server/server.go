package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

const httpShutdownTimeout = 5 * time.Second

// Server accepts client connections and runs one Session per connection
type Server struct {
	config    ServerConfig
	directory *Directory
	metrics   *Metrics
	registry  *prometheus.Registry
	logger    zerolog.Logger
	startTime time.Time

	listener     net.Listener
	httpServer   *http.Server
	httpListener net.Listener

	mu       sync.Mutex
	sessions map[*Session]struct{}
	stopping bool

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a server with an empty directory and its own metrics registry
func NewServer(config ServerConfig, logger zerolog.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	directory := NewDirectory()
	RegisterDirectoryGauges(registry, directory)

	return &Server{
		config:    config,
		directory: directory,
		metrics:   NewMetrics(registry),
		registry:  registry,
		logger:    logger,
		sessions:  make(map[*Session]struct{}),
		shutdown:  make(chan struct{}),
	}
}

// Start binds the TCP listener (and the HTTP side port when configured) and
// begins accepting connections in the background
func (s *Server) Start() error {
	s.startTime = time.Now()

	lc := net.ListenConfig{Control: reuseAddrControl}
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.TCPPort))
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	logListenBacklog(s.logger, listener.Addr().String())

	if s.config.HTTPPort != 0 {
		if err := s.startHTTPServer(); err != nil {
			s.listener.Close()
			return err
		}
	}

	s.wg.Add(2)
	go s.monitorListenOverflows()
	go s.acceptLoop()

	return nil
}

func (s *Server) startHTTPServer() error {
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.HTTPPort))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpListener = listener
	s.httpServer = &http.Server{
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("HTTP listener ready (/ws, /metrics, /health)")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	return nil
}

// Stop closes the listeners and every live connection, then waits for all
// sessions to finish terminating
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	live := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	close(s.shutdown)

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown; they are closed below
		if herr := s.httpServer.Shutdown(ctx); herr != nil && err == nil {
			err = herr
		}
	}

	for _, sess := range live {
		sess.Close()
	}

	s.wg.Wait()
	s.logger.Info().Int("sessions_closed", len(live)).Msg("server stopped")
	return err
}

// Addr returns the bound TCP address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when the side port is off
func (s *Server) HTTPAddr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

// Directory returns the server's user and room registry
func (s *Server) Directory() *Directory {
	return s.directory
}

// Registry returns the Prometheus registry holding the server's metrics
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// acceptLoop accepts incoming connections until the listener is closed
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("accept error")
			continue
		}

		// Disable Nagle's algorithm so small response frames go out immediately
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		go s.serveConn(conn, "tcp")
	}
}

// serveConn runs a session on conn until it terminates. Used by both transports.
func (s *Server) serveConn(conn net.Conn, transport string) {
	sess := NewSession(conn, s.directory, s.metrics, s.logger.With().Str("transport", transport).Logger())
	if !s.trackSession(sess) {
		sess.Close()
		sess.terminate()
		return
	}
	defer s.untrackSession(sess)

	s.logger.Debug().Str("remote_addr", conn.RemoteAddr().String()).Str("transport", transport).Msg("new connection")
	sess.Run()
}

func (s *Server) trackSession(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackSession(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()

	s.wg.Done()
}

// SessionCount returns the number of open connections
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}
