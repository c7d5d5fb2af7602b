package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	// MagicHi and MagicLo open every frame
	MagicHi = 0x04
	MagicLo = 0x17

	// HeaderSize is magic (2) + payload length (4) + type (1)
	HeaderSize = 7

	// MaxPayloadSize bounds the declared payload length of client frames (1 MB)
	MaxPayloadSize = 1024 * 1024

	// NoPayloadLimit disables the length check in DecodeFrameLimit
	NoPayloadLimit = 0
)

var (
	ErrFraming       = errors.New("bytes are not sufficiently magical")
	ErrUnknownType   = errors.New("unknown packet type")
	ErrTruncated     = errors.New("truncated frame")
	ErrFrameTooLarge = errors.New("frame exceeds maximum payload size (1 MB)")
	ErrInvalidHello  = fmt.Errorf("%w: hello payload must be the literal \"Hello\"", ErrFraming)
)

// Frame is one undecoded protocol frame
// Format: [Magic (2 bytes)][Length (4 bytes)][Type (1 byte)][Payload (Length bytes)]
type Frame struct {
	Type    uint8
	Payload []byte
}

// EncodeFrame writes a frame to the writer.
// The whole frame goes out in one Write so concurrent writers that
// serialize on Write never interleave partial frames.
func EncodeFrame(w io.Writer, f *Frame) error {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(f.Payload)))

	buf.WriteByte(MagicHi)
	buf.WriteByte(MagicLo)
	if err := WriteUint32(buf, uint32(len(f.Payload))); err != nil {
		return err
	}
	buf.WriteByte(f.Type)
	buf.Write(f.Payload)

	_, err := w.Write(buf.Bytes())
	return err
}

// DecodeFrame reads a frame whose payload is at most MaxPayloadSize.
// A stream that ends cleanly before the first byte returns io.EOF.
func DecodeFrame(r io.Reader) (*Frame, error) {
	return DecodeFrameLimit(r, MaxPayloadSize)
}

// DecodeFrameLimit is DecodeFrame with an explicit payload bound.
// NoPayloadLimit accepts any length; payloads above MaxPayloadSize are then
// buffered as they arrive rather than allocated up front from the header.
func DecodeFrameLimit(r io.Reader, maxPayload uint32) (*Frame, error) {
	var magic [2]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, truncatedOr(err)
	}
	if magic[0] != MagicHi || magic[1] != MagicLo {
		return nil, ErrFraming
	}

	length, err := ReadUint32(r)
	if err != nil {
		return nil, shortRead(err)
	}
	if maxPayload != NoPayloadLimit && length > maxPayload {
		return nil, ErrFrameTooLarge
	}

	msgType, err := ReadUint8(r)
	if err != nil {
		return nil, shortRead(err)
	}

	payload, err := readPayload(r, length)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Type:    msgType,
		Payload: payload,
	}, nil
}

func readPayload(r io.Reader, length uint32) ([]byte, error) {
	if length <= MaxPayloadSize {
		payload := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, shortRead(err)
			}
		}
		return payload, nil
	}

	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, int64(length))
	if n < int64(length) {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeMessage is a helper that encodes a packet to a byte slice
func EncodeMessage(p Packet) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := WritePacket(buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// truncatedOr keeps a clean io.EOF (nothing read) and maps a partial read to ErrTruncated
func truncatedOr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

// shortRead maps any EOF after the first byte of a frame to ErrTruncated
func shortRead(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
