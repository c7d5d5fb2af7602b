package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// MaxShortStringLength is the largest string a 1-byte length prefix can describe
	MaxShortStringLength = 0xFF

	// MaxBodyLength is the largest body a 2-byte length prefix can describe
	MaxBodyLength = 0xFFFF
)

var (
	ErrStringTooLong = errors.New("string exceeds maximum length (255 bytes)")
	ErrBodyTooLong   = errors.New("body exceeds maximum length (65535 bytes)")
)

// WriteUint8 writes a single byte
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint8 reads a single byte
func ReadUint8(r io.Reader) (uint8, error) {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteUint16 writes a 16-bit unsigned integer in big-endian
func WriteUint16(w io.Writer, v uint16) error {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint16 reads a 16-bit unsigned integer in big-endian
func ReadUint16(r io.Reader) (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

// WriteUint32 writes a 32-bit unsigned integer in big-endian
func WriteUint32(w io.Writer, v uint32) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint32 reads a 32-bit unsigned integer in big-endian
func ReadUint32(r io.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// WriteBool writes a boolean as a single byte (0x00 or 0x01)
func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteUint8(w, 0x01)
	}
	return WriteUint8(w, 0x00)
}

// ReadBool reads a boolean from a single byte
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadUint8(r)
	if err != nil {
		return false, shortRead(err)
	}
	return b != 0x00, nil
}

// WriteShortString writes a string with a 1-byte length prefix
// Format: [Length (uint8)][Data (N bytes)]
func WriteShortString(w io.Writer, s string) error {
	if len(s) > MaxShortStringLength {
		return ErrStringTooLong
	}

	if err := WriteUint8(w, uint8(len(s))); err != nil {
		return err
	}

	if len(s) > 0 {
		_, err := io.WriteString(w, s)
		return err
	}
	return nil
}

// ReadShortString reads a string with a 1-byte length prefix
func ReadShortString(r io.Reader) (string, error) {
	length, err := ReadUint8(r)
	if err != nil {
		return "", shortRead(err)
	}

	if length == 0 {
		return "", nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", shortRead(err)
	}

	return string(data), nil
}

// WriteBody writes an opaque byte string with a 2-byte length prefix
// Format: [Length (uint16)][Data (N bytes)]
func WriteBody(w io.Writer, body []byte) error {
	if len(body) > MaxBodyLength {
		return ErrBodyTooLong
	}

	if err := WriteUint16(w, uint16(len(body))); err != nil {
		return err
	}

	if len(body) > 0 {
		_, err := w.Write(body)
		return err
	}
	return nil
}

// ReadBody reads an opaque byte string with a 2-byte length prefix
func ReadBody(r io.Reader) ([]byte, error) {
	length, err := ReadUint16(r)
	if err != nil {
		return nil, shortRead(err)
	}

	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, shortRead(err)
		}
	}

	return data, nil
}
