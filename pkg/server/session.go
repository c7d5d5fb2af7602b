package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/aeolun/roomrelay/pkg/protocol"
)

// SessionState is the position of a session in its lifecycle
type SessionState int32

const (
	// StateAwaitingHello is the initial state; the only acceptable packet is Hello
	StateAwaitingHello SessionState = iota
	// StateActive means the user is registered and requests are being served
	StateActive
	// StateTerminated is final: the user is deregistered and the connection closed
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingHello:
		return "AwaitingHello"
	case StateActive:
		return "Active"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Session represents one client connection from handshake to termination
type Session struct {
	conn    *SafeConn
	dir     *Directory
	metrics *Metrics
	logger  zerolog.Logger

	state      atomic.Int32
	userID     uint64
	registered bool

	terminateOnce sync.Once
}

// NewSession creates a session in StateAwaitingHello. metrics may be nil.
func NewSession(conn net.Conn, dir *Directory, metrics *Metrics, logger zerolog.Logger) *Session {
	metrics.RecordSessionStarted()

	return &Session{
		conn:    NewSafeConn(conn),
		dir:     dir,
		metrics: metrics,
		logger:  logger.With().Str("remote_addr", conn.RemoteAddr().String()).Logger(),
	}
}

// State returns the current lifecycle state
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// UserID returns the directory id assigned at handshake, if any
func (s *Session) UserID() (uint64, bool) {
	if s.State() == StateAwaitingHello {
		return 0, false
	}
	return s.userID, s.registered
}

// Run drives the session until it terminates. It always returns with the
// user removed from the directory and the connection closed.
func (s *Session) Run() {
	defer s.terminate()

	if !s.awaitHello() {
		return
	}

	for s.State() == StateActive {
		p, err := protocol.ReadClientPacket(s.conn)
		if err != nil {
			s.logReadError(err)
			return
		}

		s.metrics.RecordPacketReceived(protocol.TypeName(p.Type()))
		s.logger.Debug().Str("type", protocol.TypeName(p.Type())).Msg("recv")

		if err := s.dispatch(p); err != nil {
			s.logger.Info().Err(err).Msg("session ended by write failure")
			return
		}
	}
}

// Close closes the connection from outside the session goroutine (server shutdown).
// The blocked read in Run fails and Run terminates the session.
func (s *Session) Close() {
	s.conn.Close()
}

// awaitHello handles the AwaitingHello state. Anything but a valid Hello is dropped silently.
func (s *Session) awaitHello() bool {
	p, err := protocol.ReadClientPacket(s.conn)
	if err != nil {
		s.logReadError(err)
		return false
	}

	if _, ok := p.(*protocol.HelloMessage); !ok {
		s.metrics.RecordFrameRejected("no_hello")
		s.logger.Info().Str("type", protocol.TypeName(p.Type())).Msg("first packet was not hello, dropping connection")
		return false
	}
	s.metrics.RecordPacketReceived(protocol.TypeName(p.Type()))

	id, name := s.dir.RegisterUser(s.conn)
	s.userID = id
	s.registered = true
	s.logger = s.logger.With().Uint64("user_id", id).Logger()

	s.setState(StateActive)
	s.logger.Info().Str("name", name).Msg("user connected")

	if err := s.send(protocol.NewTextResponse(false, name)); err != nil {
		s.logger.Info().Err(err).Msg("failed to send hello response")
		return false
	}
	return true
}

// terminate moves to StateTerminated, deregisters the user and closes the connection, once
func (s *Session) terminate() {
	s.terminateOnce.Do(func() {
		s.setState(StateTerminated)

		if s.registered && s.dir.RemoveUser(s.userID) {
			s.logger.Info().Msg("user disconnected")
		}
		s.conn.Close()
		s.metrics.RecordSessionEnded()
	})
}

func (s *Session) send(p protocol.Packet) error {
	if err := s.conn.Send(p); err != nil {
		return err
	}
	s.metrics.RecordPacketSent(protocol.TypeName(p.Type()))
	return nil
}

func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		s.logger.Debug().Msg("connection closed by peer")
	case errors.Is(err, protocol.ErrFraming):
		s.metrics.RecordFrameRejected("framing")
		s.logger.Info().Err(err).Msg("invalid packet, dropping connection")
	case errors.Is(err, protocol.ErrUnknownType):
		s.metrics.RecordFrameRejected("unknown_type")
		s.logger.Info().Err(err).Msg("invalid packet, dropping connection")
	case errors.Is(err, protocol.ErrTruncated):
		s.metrics.RecordFrameRejected("truncated")
		s.logger.Info().Err(err).Msg("invalid packet, dropping connection")
	case errors.Is(err, protocol.ErrFrameTooLarge):
		s.metrics.RecordFrameRejected("too_large")
		s.logger.Info().Err(err).Msg("invalid packet, dropping connection")
	default:
		s.logger.Info().Err(err).Msg("read error")
	}
}
