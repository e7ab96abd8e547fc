package rpc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize is the largest frame the codec will accept, matching the
// original daemon's transport limit.
const MaxMessageSize = 16 * 1024 * 1024

// ErrMessageTooLarge is returned when a frame's declared length prefix
// exceeds MaxMessageSize.
var ErrMessageTooLarge = errors.New("rpc: message exceeds maximum size")

// Codec reads and writes length-prefixed JSON-RPC frames over a stream:
// a 4-byte big-endian length prefix followed by that many bytes of UTF-8
// JSON. One Codec is owned by a single connection goroutine pair.
type Codec struct {
	r *bufio.Reader
	w io.Writer
}

// NewCodec wraps an existing connection in framed-JSON encode/decode.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{r: bufio.NewReader(rw), w: rw}
}

// ReadFrame blocks until one full frame has been read and returns its
// payload (the JSON body, without the length prefix).
func (c *Codec) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrMessageTooLarge, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload prefixed with its big-endian length.
func (c *Codec) WriteFrame(payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: payload is %d bytes", ErrMessageTooLarge, len(payload))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := c.w.Write(payload)
	return err
}
