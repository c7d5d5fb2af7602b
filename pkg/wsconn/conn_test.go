package wsconn

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs handler on the server side of every upgraded connection
func startServer(t *testing.T, handler func(*Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := New(ws)
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestReadSpansMessages(t *testing.T) {
	url := startServer(t, func(c *Conn) {
		c.Write([]byte("hel"))
		c.Write([]byte("lo "))
		c.Write([]byte("world"))
	})

	conn, err := Dial(url, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, len("hello world"))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf))
}

func TestWriteIsOneBinaryMessage(t *testing.T) {
	got := make(chan []byte, 1)
	url := startServer(t, func(c *Conn) {
		messageType, data, err := c.ws.ReadMessage()
		if err == nil && messageType == websocket.BinaryMessage {
			got <- data
		}
	})

	conn, err := Dial(url, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	n, err := conn.Write([]byte{0x04, 0x17, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	select {
	case data := <-got:
		assert.Equal(t, []byte{0x04, 0x17, 0x00}, data)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive message")
	}
}

func TestTextMessageRejected(t *testing.T) {
	url := startServer(t, func(c *Conn) {
		c.ws.WriteMessage(websocket.TextMessage, []byte("hi"))
		time.Sleep(100 * time.Millisecond)
	})

	conn, err := Dial(url, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrTextMessage)
}

func TestPeerCloseReadsEOF(t *testing.T) {
	url := startServer(t, func(c *Conn) {})

	conn, err := Dial(url, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, io.EOF)
}

func TestDialRejectsBadScheme(t *testing.T) {
	_, err := Dial("http://localhost:1", time.Second)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	url := startServer(t, func(c *Conn) {
		time.Sleep(50 * time.Millisecond)
	})

	conn, err := Dial(url, time.Second)
	require.NoError(t, err)

	first := conn.Close()
	assert.Equal(t, first, conn.Close())
}
