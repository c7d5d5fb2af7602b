package protocol

import (
	"bytes"
	"fmt"
	"io"
)

// Message type constants (Client → Server)
const (
	TypeJoin           = 0x17
	TypeLeave          = 0x18
	TypeListRooms      = 0x19
	TypeListUsers      = 0x1A
	TypeNick           = 0x1B
	TypePrivateMessage = 0x1C
	TypeMessage        = 0x1D
	TypeHello          = 0xFF
)

// Message type constants (Server → Client).
// TypePrivateMessage and TypeMessage are reused for deliveries.
const (
	TypeResponse = 0xFE
)

// HelloPayload is the only payload a Hello frame may carry
const HelloPayload = "Hello"

// Packet is one typed protocol message
type Packet interface {
	Type() uint8
	EncodeTo(w io.Writer) error
	Decode(payload []byte) error
}

// HelloMessage (0xFF) - Handshake, must be the first packet on a connection
type HelloMessage struct{}

func (m *HelloMessage) Type() uint8 { return TypeHello }

func (m *HelloMessage) EncodeTo(w io.Writer) error {
	_, err := io.WriteString(w, HelloPayload)
	return err
}

func (m *HelloMessage) Decode(payload []byte) error {
	if string(payload) != HelloPayload {
		return ErrInvalidHello
	}
	return nil
}

// JoinMessage (0x17) - Join or create a room
type JoinMessage struct {
	Room     string
	Password *string // nil when the frame carries no password field
}

func (m *JoinMessage) Type() uint8 { return TypeJoin }

func (m *JoinMessage) EncodeTo(w io.Writer) error {
	if err := WriteShortString(w, m.Room); err != nil {
		return err
	}
	if m.Password == nil {
		return nil
	}
	return WriteShortString(w, *m.Password)
}

func (m *JoinMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	room, err := ReadShortString(buf)
	if err != nil {
		return err
	}

	m.Room = room
	m.Password = nil

	if buf.Len() > 0 {
		password, err := ReadShortString(buf)
		if err != nil {
			return err
		}
		m.Password = &password
	}

	return nil
}

// LeaveMessage (0x18) - Leave the current room
type LeaveMessage struct{}

func (m *LeaveMessage) Type() uint8                { return TypeLeave }
func (m *LeaveMessage) EncodeTo(w io.Writer) error { return nil }
func (m *LeaveMessage) Decode(payload []byte) error { return nil }

// ListRoomsMessage (0x19) - Request every room name
type ListRoomsMessage struct{}

func (m *ListRoomsMessage) Type() uint8                { return TypeListRooms }
func (m *ListRoomsMessage) EncodeTo(w io.Writer) error { return nil }
func (m *ListRoomsMessage) Decode(payload []byte) error { return nil }

// ListUsersMessage (0x1A) - Request display names, scoped to the caller's room if it has one
type ListUsersMessage struct{}

func (m *ListUsersMessage) Type() uint8                { return TypeListUsers }
func (m *ListUsersMessage) EncodeTo(w io.Writer) error { return nil }
func (m *ListUsersMessage) Decode(payload []byte) error { return nil }

// NickMessage (0x1B) - Change display name
type NickMessage struct {
	Name string
}

func (m *NickMessage) Type() uint8 { return TypeNick }

func (m *NickMessage) EncodeTo(w io.Writer) error {
	return WriteShortString(w, m.Name)
}

func (m *NickMessage) Decode(payload []byte) error {
	name, err := ReadShortString(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.Name = name
	return nil
}

// PrivateMessage (0x1C, client → server) - Send a body to every user with a display name
type PrivateMessage struct {
	Target string
	Body   []byte
}

func (m *PrivateMessage) Type() uint8 { return TypePrivateMessage }

func (m *PrivateMessage) EncodeTo(w io.Writer) error {
	return writeNameAndBody(w, m.Target, m.Body)
}

func (m *PrivateMessage) Decode(payload []byte) error {
	target, body, err := readNameAndBody(payload)
	if err != nil {
		return err
	}
	m.Target = target
	m.Body = body
	return nil
}

// PrivateDelivery (0x1C, server → client) - A private message as seen by its recipient
type PrivateDelivery struct {
	Sender string
	Body   []byte
}

func (m *PrivateDelivery) Type() uint8 { return TypePrivateMessage }

func (m *PrivateDelivery) EncodeTo(w io.Writer) error {
	return writeNameAndBody(w, m.Sender, m.Body)
}

func (m *PrivateDelivery) Decode(payload []byte) error {
	sender, body, err := readNameAndBody(payload)
	if err != nil {
		return err
	}
	m.Sender = sender
	m.Body = body
	return nil
}

// RoomMessage (0x1D, client → server) - Broadcast a body to the caller's room
type RoomMessage struct {
	Room string
	Body []byte
}

func (m *RoomMessage) Type() uint8 { return TypeMessage }

func (m *RoomMessage) EncodeTo(w io.Writer) error {
	return writeNameAndBody(w, m.Room, m.Body)
}

func (m *RoomMessage) Decode(payload []byte) error {
	room, body, err := readNameAndBody(payload)
	if err != nil {
		return err
	}
	m.Room = room
	m.Body = body
	return nil
}

// RoomDelivery (0x1D, server → client) - A room broadcast as seen by the other members
type RoomDelivery struct {
	Room   string
	Sender string
	Body   []byte
}

func (m *RoomDelivery) Type() uint8 { return TypeMessage }

func (m *RoomDelivery) EncodeTo(w io.Writer) error {
	if err := WriteShortString(w, m.Room); err != nil {
		return err
	}
	if err := WriteShortString(w, m.Sender); err != nil {
		return err
	}
	return WriteBody(w, m.Body)
}

func (m *RoomDelivery) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	room, err := ReadShortString(buf)
	if err != nil {
		return err
	}
	sender, err := ReadShortString(buf)
	if err != nil {
		return err
	}
	body, err := ReadBody(buf)
	if err != nil {
		return err
	}

	m.Room = room
	m.Sender = sender
	m.Body = body
	return nil
}

// ResponseMessage (0xFE) - Result of a client request
// Data is either raw text or a sequence of 1-byte length-prefixed items.
type ResponseMessage struct {
	Error bool
	Data  []byte
}

// NewTextResponse builds a response carrying a literal string (possibly empty)
func NewTextResponse(isError bool, text string) *ResponseMessage {
	return &ResponseMessage{Error: isError, Data: []byte(text)}
}

// NewListResponse builds a successful response carrying length-prefixed items
func NewListResponse(items []string) (*ResponseMessage, error) {
	buf := new(bytes.Buffer)
	for _, item := range items {
		if err := WriteShortString(buf, item); err != nil {
			return nil, err
		}
	}
	return &ResponseMessage{Data: buf.Bytes()}, nil
}

func (m *ResponseMessage) Type() uint8 { return TypeResponse }

func (m *ResponseMessage) EncodeTo(w io.Writer) error {
	if err := WriteBool(w, m.Error); err != nil {
		return err
	}
	if len(m.Data) > 0 {
		_, err := w.Write(m.Data)
		return err
	}
	return nil
}

func (m *ResponseMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	isError, err := ReadBool(buf)
	if err != nil {
		return err
	}

	m.Error = isError
	m.Data = payload[1:]
	return nil
}

// Text returns Data as a string
func (m *ResponseMessage) Text() string {
	return string(m.Data)
}

// Items parses Data as a list of 1-byte length-prefixed strings
func (m *ResponseMessage) Items() ([]string, error) {
	buf := bytes.NewReader(m.Data)
	items := make([]string, 0)
	for buf.Len() > 0 {
		item, err := ReadShortString(buf)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// WritePacket encodes a packet as a single frame
func WritePacket(w io.Writer, p Packet) error {
	payload := new(bytes.Buffer)
	if err := p.EncodeTo(payload); err != nil {
		return fmt.Errorf("encode %s: %w", TypeName(p.Type()), err)
	}

	return EncodeFrame(w, &Frame{
		Type:    p.Type(),
		Payload: payload.Bytes(),
	})
}

// ReadClientPacket reads one frame sent by a client and decodes its payload
func ReadClientPacket(r io.Reader) (Packet, error) {
	frame, err := DecodeFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeClientFrame(frame)
}

// DecodeClientFrame decodes the payload of a client → server frame
func DecodeClientFrame(frame *Frame) (Packet, error) {
	var p Packet
	switch frame.Type {
	case TypeHello:
		p = &HelloMessage{}
	case TypeJoin:
		p = &JoinMessage{}
	case TypeLeave:
		p = &LeaveMessage{}
	case TypeListRooms:
		p = &ListRoomsMessage{}
	case TypeListUsers:
		p = &ListUsersMessage{}
	case TypeNick:
		p = &NickMessage{}
	case TypePrivateMessage:
		p = &PrivateMessage{}
	case TypeMessage:
		p = &RoomMessage{}
	default:
		return nil, fmt.Errorf("%w 0x%02X", ErrUnknownType, frame.Type)
	}

	if err := p.Decode(frame.Payload); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadServerPacket reads one frame sent by a server and decodes its payload.
// Server frames are not size-bounded: a Response list can grow past MaxPayloadSize.
func ReadServerPacket(r io.Reader) (Packet, error) {
	frame, err := DecodeFrameLimit(r, NoPayloadLimit)
	if err != nil {
		return nil, err
	}
	return DecodeServerFrame(frame)
}

// DecodeServerFrame decodes the payload of a server → client frame
func DecodeServerFrame(frame *Frame) (Packet, error) {
	var p Packet
	switch frame.Type {
	case TypeResponse:
		p = &ResponseMessage{}
	case TypePrivateMessage:
		p = &PrivateDelivery{}
	case TypeMessage:
		p = &RoomDelivery{}
	default:
		return nil, fmt.Errorf("%w 0x%02X", ErrUnknownType, frame.Type)
	}

	if err := p.Decode(frame.Payload); err != nil {
		return nil, err
	}
	return p, nil
}

// TypeName returns a printable name for a type code
func TypeName(msgType uint8) string {
	switch msgType {
	case TypeHello:
		return "HELLO"
	case TypeJoin:
		return "JOIN"
	case TypeLeave:
		return "LEAVE"
	case TypeListRooms:
		return "LIST_ROOMS"
	case TypeListUsers:
		return "LIST_USERS"
	case TypeNick:
		return "NICK"
	case TypePrivateMessage:
		return "PRIVATE_MESSAGE"
	case TypeMessage:
		return "MESSAGE"
	case TypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

func writeNameAndBody(w io.Writer, name string, body []byte) error {
	if err := WriteShortString(w, name); err != nil {
		return err
	}
	return WriteBody(w, body)
}

func readNameAndBody(payload []byte) (string, []byte, error) {
	buf := bytes.NewReader(payload)
	name, err := ReadShortString(buf)
	if err != nil {
		return "", nil, err
	}
	body, err := ReadBody(buf)
	if err != nil {
		return "", nil, err
	}
	return name, body, nil
}
