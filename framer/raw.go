package framer

import "io"

// Raw is the no-framing discipline: a single call consumes all
// currently available bytes and returns them as one message. Used when
// the application handles message boundaries itself.
type Raw struct{}

// NewRaw constructs a Raw framer.
func NewRaw() Raw { return Raw{} }

func (Raw) TryReadMessage(buf []byte) ([]byte, []byte, error) {
	if len(buf) == 0 {
		return nil, buf, nil
	}
	msg := make([]byte, len(buf))
	copy(msg, buf)
	return msg, buf[len(buf):len(buf)], nil
}

func (Raw) WriteFrame(w io.Writer, message []byte) error {
	_, err := w.Write(message)
	return err
}
