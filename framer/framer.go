// Package framer implements pluggable TCP message framing (spec.md
// §4.2): raw, length-prefix, and delimiter disciplines.
package framer

import "io"

// Framer splits an inbound byte stream into discrete messages and writes
// outbound messages with a chosen framing discipline.
type Framer interface {
	// TryReadMessage consumes a prefix of buf and returns the message and
	// the unconsumed remainder. If buf does not yet hold a complete
	// message, it returns (nil, buf, nil) unchanged — the caller should
	// read more bytes and retry. A non-nil error means buf can never be
	// framed (e.g. an oversize length-prefix header) and the connection
	// must be torn down.
	TryReadMessage(buf []byte) (message []byte, rest []byte, err error)

	// WriteFrame appends the framed encoding of message to w.
	WriteFrame(w io.Writer, message []byte) error
}
