package protocol

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

func shortStringGen() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		return string(rapid.SliceOfN(rapid.Byte(), 0, MaxShortStringLength).Draw(t, "bytes"))
	})
}

func bodyGen() *rapid.Generator[[]byte] {
	return rapid.SliceOfN(rapid.Byte(), 0, 2048)
}

// clientPacketGen draws any client → server packet with fields inside their length limits
func clientPacketGen() *rapid.Generator[Packet] {
	return rapid.OneOf(
		rapid.Just[Packet](&HelloMessage{}),
		rapid.Custom(func(t *rapid.T) Packet {
			m := &JoinMessage{Room: shortStringGen().Draw(t, "room")}
			if rapid.Bool().Draw(t, "hasPassword") {
				pw := shortStringGen().Draw(t, "password")
				m.Password = &pw
			}
			return m
		}),
		rapid.Just[Packet](&LeaveMessage{}),
		rapid.Just[Packet](&ListRoomsMessage{}),
		rapid.Just[Packet](&ListUsersMessage{}),
		rapid.Custom(func(t *rapid.T) Packet {
			return &NickMessage{Name: shortStringGen().Draw(t, "name")}
		}),
		rapid.Custom(func(t *rapid.T) Packet {
			return &PrivateMessage{
				Target: shortStringGen().Draw(t, "target"),
				Body:   bodyGen().Draw(t, "body"),
			}
		}),
		rapid.Custom(func(t *rapid.T) Packet {
			return &RoomMessage{
				Room: shortStringGen().Draw(t, "room"),
				Body: bodyGen().Draw(t, "body"),
			}
		}),
	)
}

// serverPacketGen draws any server → client packet
func serverPacketGen() *rapid.Generator[Packet] {
	return rapid.OneOf(
		rapid.Custom(func(t *rapid.T) Packet {
			return NewTextResponse(rapid.Bool().Draw(t, "error"), string(bodyGen().Draw(t, "text")))
		}),
		rapid.Custom(func(t *rapid.T) Packet {
			items := rapid.SliceOfN(shortStringGen(), 0, 20).Draw(t, "items")
			resp, err := NewListResponse(items)
			if err != nil {
				t.Fatalf("list response: %v", err)
			}
			return resp
		}),
		rapid.Custom(func(t *rapid.T) Packet {
			return &PrivateDelivery{
				Sender: shortStringGen().Draw(t, "sender"),
				Body:   bodyGen().Draw(t, "body"),
			}
		}),
		rapid.Custom(func(t *rapid.T) Packet {
			return &RoomDelivery{
				Room:   shortStringGen().Draw(t, "room"),
				Sender: shortStringGen().Draw(t, "sender"),
				Body:   bodyGen().Draw(t, "body"),
			}
		}),
	)
}

// packetsEqual compares packets treating nil and empty byte slices as equal
func packetsEqual(a, b Packet) bool {
	var x, y bytes.Buffer
	if a.Type() != b.Type() {
		return false
	}
	if err := a.EncodeTo(&x); err != nil {
		return false
	}
	if err := b.EncodeTo(&y); err != nil {
		return false
	}
	return bytes.Equal(x.Bytes(), y.Bytes())
}

// TestClientPacketRoundTrip tests that every client packet survives encode then decode
func TestClientPacketRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := clientPacketGen().Draw(t, "packet")

		var buf bytes.Buffer
		if err := WritePacket(&buf, original); err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		decoded, err := ReadClientPacket(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		if !packetsEqual(original, decoded) {
			t.Fatalf("round trip mismatch: got %#v, want %#v", decoded, original)
		}
		if buf.Len() != 0 {
			t.Fatalf("%d bytes left after decode", buf.Len())
		}
	})
}

// TestServerPacketRoundTrip tests that every server packet survives encode then decode
func TestServerPacketRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := serverPacketGen().Draw(t, "packet")

		var buf bytes.Buffer
		if err := WritePacket(&buf, original); err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		decoded, err := ReadServerPacket(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		if !packetsEqual(original, decoded) {
			t.Fatalf("round trip mismatch: got %#v, want %#v", decoded, original)
		}
	})
}

// TestJoinPasswordPresenceRoundTrip checks that an absent password never decodes as an empty one
func TestJoinPasswordPresenceRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := &JoinMessage{Room: shortStringGen().Draw(t, "room")}
		if rapid.Bool().Draw(t, "hasPassword") {
			pw := shortStringGen().Draw(t, "password")
			original.Password = &pw
		}

		var buf bytes.Buffer
		if err := WritePacket(&buf, original); err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		p, err := ReadClientPacket(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		decoded := p.(*JoinMessage)
		if decoded.Room != original.Room {
			t.Fatalf("room mismatch: got %q, want %q", decoded.Room, original.Room)
		}
		if (decoded.Password == nil) != (original.Password == nil) {
			t.Fatalf("password presence mismatch")
		}
		if original.Password != nil && *decoded.Password != *original.Password {
			t.Fatalf("password mismatch: got %q, want %q", *decoded.Password, *original.Password)
		}
	})
}

// TestListItemsRoundTrip tests that list responses give back the items they were built from
func TestListItemsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOfN(shortStringGen(), 0, 50).Draw(t, "items")

		resp, err := NewListResponse(items)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		decoded, err := resp.Items()
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		if len(decoded) != len(items) {
			t.Fatalf("length mismatch: got %d, want %d", len(decoded), len(items))
		}
		for i := range items {
			if decoded[i] != items[i] {
				t.Fatalf("item %d mismatch: got %q, want %q", i, decoded[i], items[i])
			}
		}
	})
}
