// Package session implements the session model (spec.md §4.7): identity,
// metrics, group membership, serialized writes, slow-consumer policy, and
// graceful Close vs. immediate Abort — shared between TCP and WebSocket
// sessions.
package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/suleymanbyzt/StormSocket"
)

// Session is the common contract exposed to the middleware pipeline,
// SessionManager, and SessionGroup. TCPSession and WSSession both
// implement it; WSSession additionally exposes SendText/SendBinary.
type Session interface {
	ID() int64
	State() stormsocket.SessionState
	RemoteAddr() net.Addr
	BytesSent() uint64
	BytesReceived() uint64
	ConnectedAt() time.Time
	Uptime() time.Duration
	IsBackpressured() bool
	Policy() stormsocket.Policy
	Groups() []string
	JoinGroup(name string)
	LeaveGroup(name string)
	Send(data []byte) error
	Close() error
	Abort()
}

// base holds the fields and bookkeeping common to every session kind.
// TCPSession and WSSession embed it and supply their own write path.
type base struct {
	id          int64
	remoteAddr  net.Addr
	connectedAt time.Time
	policy      stormsocket.Policy

	state atomic.Int32

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	backpressured atomic.Bool
	closeGuard    atomic.Bool

	writeMu sync.Mutex

	groupsMu sync.RWMutex
	groups   map[string]struct{}

	abortFn func()
}

func newBase(remoteAddr net.Addr, policy stormsocket.Policy, abortFn func()) base {
	b := base{
		id:          stormsocket.NextConnectionID(),
		remoteAddr:  remoteAddr,
		connectedAt: time.Now().UTC(),
		policy:      policy,
		groups:      make(map[string]struct{}),
		abortFn:     abortFn,
	}
	b.state.Store(int32(stormsocket.StateConnecting))
	return b
}

func (b *base) ID() int64 { return b.id }

func (b *base) State() stormsocket.SessionState {
	return stormsocket.SessionState(b.state.Load())
}

func (b *base) setState(s stormsocket.SessionState) { b.state.Store(int32(s)) }

func (b *base) RemoteAddr() net.Addr { return b.remoteAddr }

func (b *base) BytesSent() uint64      { return b.bytesSent.Load() }
func (b *base) BytesReceived() uint64  { return b.bytesReceived.Load() }
func (b *base) ConnectedAt() time.Time { return b.connectedAt }
func (b *base) Uptime() time.Duration  { return time.Since(b.connectedAt) }

func (b *base) IsBackpressured() bool { return b.backpressured.Load() }

func (b *base) setBackpressured(v bool) { b.backpressured.Store(v) }

func (b *base) Policy() stormsocket.Policy { return b.policy }

func (b *base) addBytesReceived(n int) {
	if n > 0 {
		b.bytesReceived.Add(uint64(n))
	}
}

func (b *base) Groups() []string {
	b.groupsMu.RLock()
	defer b.groupsMu.RUnlock()
	out := make([]string, 0, len(b.groups))
	for g := range b.groups {
		out = append(out, g)
	}
	return out
}

func (b *base) JoinGroup(name string) {
	b.groupsMu.Lock()
	b.groups[name] = struct{}{}
	b.groupsMu.Unlock()
}

func (b *base) LeaveGroup(name string) {
	b.groupsMu.Lock()
	delete(b.groups, name)
	b.groupsMu.Unlock()
}

// writeLocked runs fn under the session's single-owner write lock. bytes
// sent are only counted when fn reports success, per spec.md §4.7 and
// §3 ("bytes_sent is incremented only after a flush returns success").
func (b *base) writeLocked(fn func() (int, error)) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	n, err := fn()
	if err == nil {
		b.bytesSent.Add(uint64(n))
	}
	return err
}

// tryClose flips close_guard exactly once and reports whether this call
// was the one that flipped it.
func (b *base) tryClose() bool {
	return b.closeGuard.CompareAndSwap(false, true)
}

// Abort is the single-shot, no-frame teardown used by the Disconnect
// policy and by callers giving up on a slow peer.
func (b *base) Abort() {
	if !b.tryClose() {
		return
	}
	b.setState(stormsocket.StateClosing)
	if b.abortFn != nil {
		b.abortFn()
	}
	b.setState(stormsocket.StateClosed)
}
