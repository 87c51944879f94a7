package framer

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxLengthPrefixPayload is the maximum payload a LengthPrefix framer
// will accept or emit: 16 MiB (spec.md §4.2).
const MaxLengthPrefixPayload = 16 << 20

// ErrInvalidLength is returned by TryReadMessage when the decoded length
// is negative or exceeds MaxLengthPrefixPayload.
var ErrInvalidLength = fmt.Errorf("framer: length-prefix header is negative or exceeds %d bytes", MaxLengthPrefixPayload)

// LengthPrefix frames messages as a 4-byte big-endian length header
// followed by the payload.
type LengthPrefix struct{}

// NewLengthPrefix constructs a LengthPrefix framer.
func NewLengthPrefix() LengthPrefix { return LengthPrefix{} }

func (LengthPrefix) TryReadMessage(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, buf, nil
	}
	length := int32(binary.BigEndian.Uint32(buf[:4]))
	if length < 0 || int64(length) > MaxLengthPrefixPayload {
		return nil, buf, ErrInvalidLength
	}
	total := 4 + int(length)
	if len(buf) < total {
		return nil, buf, nil
	}
	msg := make([]byte, length)
	copy(msg, buf[4:total])
	return msg, buf[total:], nil
}

func (LengthPrefix) WriteFrame(w io.Writer, message []byte) error {
	if len(message) > MaxLengthPrefixPayload {
		return ErrInvalidLength
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(message)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(message)
	return err
}
