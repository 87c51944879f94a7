package framer

import (
	"bytes"
	"io"
)

// DefaultDelimiter is the newline byte NewDelimiter uses; a zero-value
// Delimiter splits on 0x00.
const DefaultDelimiter = '\n'

// Delimiter frames messages by splitting on a single configurable byte.
// The delimiter is stripped on read and appended on write.
type Delimiter struct {
	Byte byte
}

// NewDelimiter constructs a Delimiter framer using DefaultDelimiter.
func NewDelimiter() Delimiter { return Delimiter{Byte: DefaultDelimiter} }

// NewDelimiterByte constructs a Delimiter framer using the given byte.
func NewDelimiterByte(b byte) Delimiter { return Delimiter{Byte: b} }

func (d Delimiter) TryReadMessage(buf []byte) ([]byte, []byte, error) {
	idx := bytes.IndexByte(buf, d.Byte)
	if idx < 0 {
		return nil, buf, nil
	}
	msg := make([]byte, idx)
	copy(msg, buf[:idx])
	return msg, buf[idx+1:], nil
}

func (d Delimiter) WriteFrame(w io.Writer, message []byte) error {
	if _, err := w.Write(message); err != nil {
		return err
	}
	_, err := w.Write([]byte{d.Byte})
	return err
}
