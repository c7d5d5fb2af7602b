package server

import (
	"bufio"
	"net"
	"sync"

	"github.com/aeolun/roomrelay/pkg/protocol"
)

// SafeConn wraps a client connection so that any goroutine may send to it.
// Reads are only done by the owning session and go through a buffered reader.
type SafeConn struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewSafeConn wraps conn
func NewSafeConn(conn net.Conn) *SafeConn {
	return &SafeConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Read implements io.Reader for the session's decode loop
func (c *SafeConn) Read(b []byte) (int, error) {
	return c.reader.Read(b)
}

// Send encodes p and writes it as one frame. Blocks while another goroutine is writing.
func (c *SafeConn) Send(p protocol.Packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return protocol.WritePacket(c.conn, p)
}

// Close closes the underlying connection once; later calls return the first result
func (c *SafeConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address
func (c *SafeConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
