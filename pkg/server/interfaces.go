package server

import "github.com/aeolun/roomrelay/pkg/protocol"

// PacketSender is the outbound half of a client connection.
// Implementations must be safe for concurrent use: the owning session and
// any session broadcasting to it may call Send at the same time.
type PacketSender interface {
	Send(p protocol.Packet) error
}
