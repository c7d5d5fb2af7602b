package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadUint8(t *testing.T) {
	tests := []struct {
		name  string
		value uint8
	}{
		{"zero", 0},
		{"one", 1},
		{"max", 255},
		{"mid", 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			err := WriteUint8(buf, tt.value)
			require.NoError(t, err)

			result, err := ReadUint8(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.value, result)
		})
	}
}

func TestWriteReadUint16(t *testing.T) {
	tests := []struct {
		name  string
		value uint16
	}{
		{"zero", 0},
		{"one", 1},
		{"max", 65535},
		{"mid", 32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			err := WriteUint16(buf, tt.value)
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(tt.value >> 8), byte(tt.value)}, buf.Bytes())

			result, err := ReadUint16(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.value, result)
		})
	}
}

func TestWriteReadUint32(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteUint32(buf, 0x01020304))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf.Bytes())

	result, err := ReadUint32(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), result)
}

func TestShortString(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteShortString(buf, ""))
		assert.Equal(t, []byte{0x00}, buf.Bytes())

		s, err := ReadShortString(buf)
		require.NoError(t, err)
		assert.Equal(t, "", s)
	})

	t.Run("max length", func(t *testing.T) {
		value := strings.Repeat("x", MaxShortStringLength)
		buf := new(bytes.Buffer)
		require.NoError(t, WriteShortString(buf, value))

		s, err := ReadShortString(buf)
		require.NoError(t, err)
		assert.Equal(t, value, s)
	})

	t.Run("too long", func(t *testing.T) {
		err := WriteShortString(new(bytes.Buffer), strings.Repeat("x", MaxShortStringLength+1))
		assert.Equal(t, ErrStringTooLong, err)
	})

	t.Run("missing length", func(t *testing.T) {
		_, err := ReadShortString(bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("length past end", func(t *testing.T) {
		_, err := ReadShortString(bytes.NewReader([]byte{0x05, 'a', 'b'}))
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestBody(t *testing.T) {
	t.Run("binary content", func(t *testing.T) {
		body := []byte{0x00, 0x01, 0xFE, 0xFF}
		buf := new(bytes.Buffer)
		require.NoError(t, WriteBody(buf, body))
		assert.Equal(t, []byte{0x00, 0x04}, buf.Bytes()[:2])

		decoded, err := ReadBody(buf)
		require.NoError(t, err)
		assert.Equal(t, body, decoded)
	})

	t.Run("max length", func(t *testing.T) {
		body := make([]byte, MaxBodyLength)
		buf := new(bytes.Buffer)
		require.NoError(t, WriteBody(buf, body))

		decoded, err := ReadBody(buf)
		require.NoError(t, err)
		assert.Len(t, decoded, MaxBodyLength)
	})

	t.Run("too long", func(t *testing.T) {
		err := WriteBody(new(bytes.Buffer), make([]byte, MaxBodyLength+1))
		assert.Equal(t, ErrBodyTooLong, err)
	})

	t.Run("half a length field", func(t *testing.T) {
		_, err := ReadBody(bytes.NewReader([]byte{0x00}))
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("length past end", func(t *testing.T) {
		_, err := ReadBody(bytes.NewReader([]byte{0x00, 0x03, 'h', 'i'}))
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestWriteReadBool(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteBool(buf, true))
	require.NoError(t, WriteBool(buf, false))
	assert.Equal(t, []byte{0x01, 0x00}, buf.Bytes())

	v, err := ReadBool(buf)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = ReadBool(buf)
	require.NoError(t, err)
	assert.False(t, v)

	_, err = ReadBool(buf)
	assert.ErrorIs(t, err, ErrTruncated)
}
