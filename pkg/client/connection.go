package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeolun/roomrelay/pkg/protocol"
	"github.com/aeolun/roomrelay/pkg/wsconn"
)

const (
	// DefaultTimeout bounds dialing and each request's wait for its response
	DefaultTimeout = 10 * time.Second

	deliveryBuffer = 100
)

var (
	// ErrClosed is returned for requests on a closed client
	ErrClosed = errors.New("connection closed")
	// ErrTimeout is returned when the server does not answer in time. The client is closed,
	// since a late response could not be told apart from the next one.
	ErrTimeout = errors.New("timed out waiting for response")
)

// ResponseError is a domain error reported by the server in a Response packet
type ResponseError struct {
	Text string
}

func (e *ResponseError) Error() string {
	return e.Text
}

// Delivery is a message pushed by the server on behalf of another user
type Delivery struct {
	Private bool   // true for private messages, false for room messages
	Room    string // empty for private messages
	Sender  string
	Body    []byte
}

// Client is a connection to a relay server that has completed the Hello handshake.
// Requests are serialized: each waits for its Response before the next is sent.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	logger  atomic.Pointer[zerolog.Logger]

	requestMu sync.Mutex
	nameMu    sync.RWMutex
	name      string

	responses  chan *protocol.ResponseMessage
	deliveries chan Delivery

	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error

	// Traffic counters (bytes on the wire)
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
}

// Dial connects to addr and performs the handshake.
// addr is host:port for TCP, or a ws:// or wss:// URL for the WebSocket side port.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var conn net.Conn
	var err error
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		conn, err = wsconn.Dial(addr, timeout)
	default:
		conn, err = net.DialTimeout("tcp", strings.TrimPrefix(addr, "tcp://"), timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return NewClient(conn, timeout)
}

// NewClient performs the handshake over an established connection.
// conn is closed when the handshake fails.
func NewClient(conn net.Conn, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		conn:       conn,
		timeout:    timeout,
		responses:  make(chan *protocol.ResponseMessage, 1),
		deliveries: make(chan Delivery, deliveryBuffer),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.SetLogger(zerolog.Nop())
	go c.readLoop()

	resp, err := c.request(&protocol.HelloMessage{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}
	c.setName(resp.Text())

	return c, nil
}

// SetLogger sets a logger for connection events
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger.Store(&logger)
}

// Name returns the display name the server currently has for this client
func (c *Client) Name() string {
	c.nameMu.RLock()
	defer c.nameMu.RUnlock()
	return c.name
}

func (c *Client) setName(name string) {
	c.nameMu.Lock()
	c.name = name
	c.nameMu.Unlock()
}

// Join enters a room, creating it when it does not exist. password may be nil.
func (c *Client) Join(room string, password *string) error {
	_, err := c.request(&protocol.JoinMessage{Room: room, Password: password})
	return err
}

// Leave leaves the current room. The server ends the session if there is none.
func (c *Client) Leave() error {
	_, err := c.request(&protocol.LeaveMessage{})
	return err
}

// ListRooms returns every room name on the server
func (c *Client) ListRooms() ([]string, error) {
	resp, err := c.request(&protocol.ListRoomsMessage{})
	if err != nil {
		return nil, err
	}
	return resp.Items()
}

// ListUsers returns the users in the current room, or all users when not in a room
func (c *Client) ListUsers() ([]string, error) {
	resp, err := c.request(&protocol.ListUsersMessage{})
	if err != nil {
		return nil, err
	}
	return resp.Items()
}

// Nick changes the display name
func (c *Client) Nick(name string) error {
	if _, err := c.request(&protocol.NickMessage{Name: name}); err != nil {
		return err
	}
	c.setName(name)
	return nil
}

// SendPrivate sends body to every user named target
func (c *Client) SendPrivate(target string, body []byte) error {
	_, err := c.request(&protocol.PrivateMessage{Target: target, Body: body})
	return err
}

// SendRoom sends body to the other members of room, which must be the current room
func (c *Client) SendRoom(room string, body []byte) error {
	_, err := c.request(&protocol.RoomMessage{Room: room, Body: body})
	return err
}

// Deliveries returns the channel of pushed messages. It is closed when the connection ends.
// It must be drained from another goroutine than the one making requests: while it is
// full, responses are not read either.
func (c *Client) Deliveries() <-chan Delivery {
	return c.deliveries
}

// Done is closed when the connection has ended
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, nil while it is open or after a clean close
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// BytesSent returns the total bytes sent
func (c *Client) BytesSent() uint64 {
	return c.bytesSent.Load()
}

// BytesReceived returns the total bytes received
func (c *Client) BytesReceived() uint64 {
	return c.bytesReceived.Load()
}

// Close shuts the connection down and waits for the reader to stop
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		err = c.conn.Close()
	})
	<-c.done
	return err
}

// request sends p and waits for the matching Response
func (c *Client) request(p protocol.Packet) (*protocol.ResponseMessage, error) {
	c.requestMu.Lock()
	defer c.requestMu.Unlock()

	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}

	w := &countingWriter{w: c.conn, counter: &c.bytesSent}
	if err := protocol.WritePacket(w, p); err != nil {
		return nil, err
	}
	c.logger.Load().Debug().Str("type", protocol.TypeName(p.Type())).Msg("send")

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-c.responses:
		return checkResponse(resp)
	case <-c.done:
		// The server may answer and then hang up, as it does for Leave outside a room
		select {
		case resp := <-c.responses:
			return checkResponse(resp)
		default:
			return nil, ErrClosed
		}
	case <-timer.C:
		go c.Close()
		return nil, ErrTimeout
	}
}

func checkResponse(resp *protocol.ResponseMessage) (*protocol.ResponseMessage, error) {
	if resp.Error {
		return nil, &ResponseError{Text: resp.Text()}
	}
	return resp, nil
}

// readLoop reads packets until the connection fails, routing responses and deliveries
func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.deliveries)

	reader := bufio.NewReader(&countingReader{r: c.conn, counter: &c.bytesReceived})
	for {
		p, err := protocol.ReadServerPacket(reader)
		if err != nil {
			c.finish(err)
			return
		}
		c.logger.Load().Debug().Str("type", protocol.TypeName(p.Type())).Msg("recv")

		switch msg := p.(type) {
		case *protocol.ResponseMessage:
			select {
			case c.responses <- msg:
			case <-c.closing:
				return
			}
		case *protocol.RoomDelivery:
			if !c.deliver(Delivery{Room: msg.Room, Sender: msg.Sender, Body: msg.Body}) {
				return
			}
		case *protocol.PrivateDelivery:
			if !c.deliver(Delivery{Private: true, Sender: msg.Sender, Body: msg.Body}) {
				return
			}
		}
	}
}

func (c *Client) deliver(d Delivery) bool {
	select {
	case c.deliveries <- d:
		return true
	case <-c.closing:
		return false
	}
}

// finish records why the read loop stopped. Closing locally or a clean EOF is not an error.
func (c *Client) finish(err error) {
	select {
	case <-c.closing:
		return
	default:
	}
	if errors.Is(err, io.EOF) {
		c.logger.Load().Debug().Msg("connection closed by server")
		return
	}

	c.logger.Load().Debug().Err(err).Msg("read error")
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

// countingReader wraps an io.Reader and counts bytes read using atomic counter
type countingReader struct {
	r       io.Reader
	counter *atomic.Uint64
}

func (cr *countingReader) Read(p []byte) (n int, err error) {
	n, err = cr.r.Read(p)
	if n > 0 && cr.counter != nil {
		cr.counter.Add(uint64(n))
	}
	return n, err
}

// countingWriter wraps an io.Writer and counts bytes written using atomic counter
type countingWriter struct {
	w       io.Writer
	counter *atomic.Uint64
}

func (cw *countingWriter) Write(p []byte) (n int, err error) {
	n, err = cw.w.Write(p)
	if n > 0 && cw.counter != nil {
		cw.counter.Add(uint64(n))
	}
	return n, err
}
