// Package pipe implements PipeConnection (spec.md §4.3): the inbound
// loop that drives a TCP session's framer over a Transport and dispatches
// complete messages to a callback, plus a send-and-flush path that
// reports backpressure.
package pipe

import (
	"github.com/suleymanbyzt/StormSocket/framer"
	"github.com/suleymanbyzt/StormSocket/transport"
)

// Connection drives a single TCP session's inbound framer loop and
// exposes a framed send path.
type Connection struct {
	tr     transport.Transport
	fr     framer.Framer
	onData func([]byte)
	onErr  func(error)

	// OnBackpressureDetected fires at most once, the first time a flush
	// observes is_backpressured (spec.md §4.3).
	OnBackpressureDetected func()

	backpressureFired bool
	readBuf           []byte
	framingFailed     bool
}

// New constructs a Connection over tr using fr for framing. onData is
// invoked for every complete message consumed from the inbound stream;
// onErr is invoked once, when the read loop exits due to a non-EOF,
// non-cancellation error.
func New(tr transport.Transport, fr framer.Framer, onData func([]byte), onErr func(error)) *Connection {
	return &Connection{tr: tr, fr: fr, onData: onData, onErr: onErr}
}

// Run drives the inbound loop until EOF, a read error, or the transport
// is closed. It returns when the loop exits; callers typically run it in
// its own goroutine.
func (c *Connection) Run() {
	chunk := make([]byte, 32*1024)
	for {
		n, err := c.tr.Read(chunk)
		if n > 0 {
			c.readBuf = append(c.readBuf, chunk[:n]...)
			c.drainMessages()
			if c.framingFailed {
				// spec.md §7 "Framing errors": the TCP loop terminates.
				return
			}
		}
		if err != nil {
			if c.onErr != nil && !transport.IsExpectedDisconnect(err) {
				c.onErr(err)
			}
			return
		}
	}
}

func (c *Connection) drainMessages() {
	for {
		msg, rest, err := c.fr.TryReadMessage(c.readBuf)
		if err != nil {
			if c.onErr != nil {
				c.onErr(err)
			}
			c.readBuf = nil
			c.framingFailed = true
			return
		}
		if msg == nil {
			c.readBuf = rest
			return
		}
		c.readBuf = rest
		if c.onData != nil {
			c.onData(msg)
		}
	}
}

// Send writes message through the framer then flushes. It returns once
// the flush completes; IsBackpressured reflects whether the flush had to
// wait for the outbound buffer to drain.
func (c *Connection) Send(message []byte) error {
	if err := c.fr.WriteFrame(writerFunc(c.tr.Write), message); err != nil {
		return err
	}
	err := c.tr.Flush()
	if c.tr.IsBackpressured() && !c.backpressureFired {
		c.backpressureFired = true
		if c.OnBackpressureDetected != nil {
			c.OnBackpressureDetected()
		}
	}
	return err
}

// IsBackpressured reports the transport's current backpressure state.
func (c *Connection) IsBackpressured() bool { return c.tr.IsBackpressured() }

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
