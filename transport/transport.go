// Package transport implements the Transport contract (spec.md §4.1):
// a bidirectional byte stream with a bounded outbound buffer and a
// handshake hook, backed by either a plaintext net.Conn or a
// crypto/tls.Conn. Inbound reads go straight to the connection; they are
// neither buffered nor bounded, and MaxPendingReceiveBytes is not applied.
package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/suleymanbyzt/StormSocket/internal/ringbuf"
)

// Transport abstracts a full-duplex byte stream. Handshake performs any
// protocol negotiation (TLS); it is idempotent once completed. The
// outbound drain loop is started by the constructor, and there is no
// internal read loop. Close only returns once the drain loop has exited
// and the socket is closed.
type Transport interface {
	Handshake() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Close() error
	RemoteAddr() net.Addr
	IsBackpressured() bool
}

// Config carries the bounded-buffer and socket-tuning knobs from
// spec.md §6 "Configuration surface".
type Config struct {
	ReceiveBufferSize      int
	SendBufferSize         int
	MaxPendingReceiveBytes int
	MaxPendingSendBytes    int
	NoDelay                bool
	KeepAlive              bool
}

// DefaultConfig returns the spec.md §6 server-option defaults.
func DefaultConfig() Config {
	return Config{
		ReceiveBufferSize:      65536,
		SendBufferSize:         65536,
		MaxPendingReceiveBytes: 1 << 20,
		MaxPendingSendBytes:    1 << 20,
		NoDelay:                false,
		KeepAlive:              true,
	}
}

// TuneSocket applies socket_tuning to conn when it is a *net.TCPConn;
// other connection types are left untouched.
func TuneSocket(conn net.Conn, cfg Config) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetNoDelay(cfg.NoDelay)
	_ = tc.SetKeepAlive(cfg.KeepAlive)
}

// IsExpectedDisconnect reports whether err represents a normal or
// expected disconnect (connection reset, aborted, refused, shutdown,
// EOF) that should be swallowed rather than surfaced via on_socket_error
// (spec.md §4.1 "Socket-error policy").
func IsExpectedDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ESHUTDOWN) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return IsExpectedDisconnect(opErr.Err)
	}
	return false
}

// bufferedOutbound implements the bounded outbound buffer shared by the
// plaintext and TLS variants: enqueue pushes onto a Bounded queue that
// blocks the caller while it is at or above max_pending_send_bytes
// (spec.md §4.1 "the producer side of that buffer suspends"); a
// background drain loop pops the queue and writes it to the real
// connection, decoupling the write call from the socket write (spec.md
// §1 "decoupled read/write loops"). IsBackpressured latches once the
// unwritten backlog reaches the pause threshold and clears once it
// drains to half that threshold, independent of any particular Flush
// call (spec.md §4.1 hysteresis).
type bufferedOutbound struct {
	pending *ringbuf.Bounded
	limit   int

	mu            sync.Mutex
	cond          *sync.Cond
	pushedTotal   int64
	writtenTotal  int64
	writeErr      error
	backpressured bool
	done          chan struct{}
}

func newBufferedOutbound(maxPendingBytes int) *bufferedOutbound {
	o := &bufferedOutbound{
		pending: ringbuf.NewBounded(maxPendingBytes),
		limit:   maxPendingBytes,
		done:    make(chan struct{}),
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// updateBackpressureLocked recomputes the hysteresis latch from the
// current unwritten backlog. Callers must hold o.mu.
func (o *bufferedOutbound) updateBackpressureLocked() {
	if o.limit <= 0 {
		return
	}
	backlog := o.pushedTotal - o.writtenTotal
	if backlog >= int64(o.limit) {
		o.backpressured = true
	} else if backlog <= int64(o.limit)/2 {
		o.backpressured = false
	}
}

// start launches the background loop that drains the queue into w. It
// must be called exactly once, before the first enqueue/flush.
func (o *bufferedOutbound) start(w io.Writer) {
	go o.drainLoop(w)
}

func (o *bufferedOutbound) drainLoop(w io.Writer) {
	defer close(o.done)
	for {
		chunk, ok := o.pending.PopWait()
		if !ok {
			return
		}
		n, err := w.Write(chunk)
		o.mu.Lock()
		o.writtenTotal += int64(n)
		if err != nil && o.writeErr == nil {
			o.writeErr = err
		}
		o.updateBackpressureLocked()
		o.cond.Broadcast()
		o.mu.Unlock()
		if err != nil {
			// Unblocks anything still waiting to Push; no point draining
			// further once the underlying writer has failed.
			o.pending.Close()
			return
		}
	}
}

// enqueue copies p and pushes it onto the outbound queue, blocking the
// caller while the queue is at or above its pause threshold. It returns
// an error, rather than claiming success, when the push could not be
// queued at all because the transport has closed or the writer loop has
// already failed (spec.md §3 "bytes_sent is incremented only after a
// flush returns success").
func (o *bufferedOutbound) enqueue(p []byte) error {
	cp := make([]byte, len(p))
	copy(cp, p)
	if !o.pending.Push(cp) {
		o.mu.Lock()
		err := o.writeErr
		o.mu.Unlock()
		if err != nil {
			return err
		}
		return io.ErrClosedPipe
	}
	o.mu.Lock()
	o.pushedTotal += int64(len(cp))
	o.updateBackpressureLocked()
	o.mu.Unlock()
	return nil
}

// flush blocks until every byte enqueued so far has been written by the
// drain loop, reporting its first write error if any.
func (o *bufferedOutbound) flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	target := o.pushedTotal
	for o.writtenTotal < target && o.writeErr == nil {
		o.cond.Wait()
	}
	return o.writeErr
}

func (o *bufferedOutbound) isBackpressured() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.backpressured
}

// close signals no further pushes and waits for the drain loop to exit —
// draining whatever remains queued, or stopping early on a write error —
// before returning, per spec.md §4.1 "returns only after... outbound
// loops have exited."
func (o *bufferedOutbound) close() {
	o.pending.Close()
	<-o.done
}
