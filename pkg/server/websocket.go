package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/aeolun/roomrelay/pkg/protocol"
	"github.com/aeolun/roomrelay/pkg/wsconn"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the request and runs a session over it.
// The protocol is unchanged: frames travel inside binary WebSocket messages.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(protocol.HeaderSize + protocol.MaxPayloadSize)

	s.serveConn(wsconn.New(ws), "websocket")
}
