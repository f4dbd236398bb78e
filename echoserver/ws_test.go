package echoserver

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clientFrame builds a masked client frame, as parseFrame expects.
func clientFrame(opcode byte, payload []byte) []byte {
	mask := [4]byte{0x11, 0x22, 0x33, 0x44}
	buf := []byte{0x80 | opcode}
	switch {
	case len(payload) < 126:
		buf = append(buf, 0x80|byte(len(payload)))
	case len(payload) < 1<<16:
		buf = append(buf, 0x80|126)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	default:
		buf = append(buf, 0x80|127)
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(payload)))
	}
	buf = append(buf, mask[:]...)
	for i, b := range payload {
		buf = append(buf, b^mask[i%4])
	}
	return buf
}

func TestParseFrame(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		raw := clientFrame(opText, []byte("PING"))
		f, n, err := parseFrame(raw)
		require.NoError(t, err)
		require.Equal(t, len(raw), n)
		assert.True(t, f.fin)
		assert.Equal(t, byte(opText), f.opcode)
		assert.Equal(t, []byte("PING"), f.payload)
	})

	t.Run("extended 16-bit length", func(t *testing.T) {
		payload := make([]byte, 300)
		for i := range payload {
			payload[i] = byte(i)
		}
		raw := clientFrame(opBinary, payload)
		f, n, err := parseFrame(raw)
		require.NoError(t, err)
		require.Equal(t, len(raw), n)
		assert.Equal(t, payload, f.payload)
	})

	t.Run("incomplete", func(t *testing.T) {
		raw := clientFrame(opText, []byte("PING"))
		for i := 0; i < len(raw); i++ {
			_, n, err := parseFrame(raw[:i])
			require.NoError(t, err, "prefix %d", i)
			require.Zero(t, n, "prefix %d must be incomplete", i)
		}
	})

	t.Run("two frames back to back", func(t *testing.T) {
		raw := append(clientFrame(opText, []byte("one")), clientFrame(opText, []byte("two"))...)
		f, n, err := parseFrame(raw)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), f.payload)
		f, n2, err := parseFrame(raw[n:])
		require.NoError(t, err)
		require.Equal(t, len(raw)-n, n2)
		assert.Equal(t, []byte("two"), f.payload)
	})

	t.Run("unmasked is an error", func(t *testing.T) {
		raw := []byte{0x81, 0x04, 'P', 'I', 'N', 'G'}
		_, _, err := parseFrame(raw)
		assert.ErrorIs(t, err, errUnmaskedFrame)
	})

	t.Run("oversized payload is an error", func(t *testing.T) {
		raw := []byte{0x81, 0x80 | 127}
		raw = binary.BigEndian.AppendUint64(raw, maxFramePayload+1)
		_, _, err := parseFrame(raw)
		assert.ErrorIs(t, err, errFrameTooLarge)
	})
}

func TestAppendFrame(t *testing.T) {
	frame := appendFrame(nil, opText, []byte("PING"))
	assert.Equal(t, []byte{0x81, 0x04, 'P', 'I', 'N', 'G'}, frame)

	long := appendFrame(nil, opBinary, make([]byte, 200))
	assert.Equal(t, byte(0x82), long[0])
	assert.Equal(t, byte(126), long[1])
	assert.Equal(t, uint16(200), binary.BigEndian.Uint16(long[2:4]))
	assert.Len(t, long, 4+200)
}

func TestAppendCloseFrame(t *testing.T) {
	frame := appendCloseFrame(nil, 1000)
	assert.Equal(t, []byte{0x88, 0x02, 0x03, 0xE8}, frame)
}

// TestConsumeFrames exercises the echo logic without any socket.
func TestConsumeFrames(t *testing.T) {
	t.Run("echo and pong", func(t *testing.T) {
		c := &connTask{}
		c.acc = append(c.acc, clientFrame(opText, []byte("PING"))...)
		c.acc = append(c.acc, clientFrame(opPing, []byte("hb"))...)
		c.consumeFrames()
		require.False(t, c.closing)
		want := appendFrame(nil, opText, []byte("PING"))
		want = appendFrame(want, opPong, []byte("hb"))
		assert.Equal(t, want, c.out)
		assert.Empty(t, c.acc)
	})

	t.Run("close frame answers close", func(t *testing.T) {
		c := &connTask{}
		c.acc = clientFrame(opClose, nil)
		c.consumeFrames()
		assert.True(t, c.closing)
		assert.Equal(t, appendCloseFrame(nil, 1000), c.out)
	})

	t.Run("fragmented frame closes 1003", func(t *testing.T) {
		c := &connTask{}
		raw := clientFrame(opText, []byte("partial"))
		raw[0] &^= 0x80 // clear FIN
		c.acc = raw
		c.consumeFrames()
		assert.True(t, c.closing)
		assert.Equal(t, appendCloseFrame(nil, 1003), c.out)
	})

	t.Run("partial frame waits", func(t *testing.T) {
		c := &connTask{}
		raw := clientFrame(opText, []byte("PING"))
		c.acc = raw[:3]
		c.consumeFrames()
		assert.False(t, c.closing)
		assert.Empty(t, c.out)
		assert.Len(t, c.acc, 3)
	})
}
