// Package ringbuf implements the bounded byte buffer behind Transport's
// outbound side (spec.md §4.1 "Bounded buffers"): a FIFO of
// pending chunks with a running byte counter that pauses producers at a
// threshold and resumes them at half that threshold (hysteresis).
package ringbuf

import (
	"sync"

	"github.com/eapache/queue"
)

// Bounded is a FIFO queue of []byte chunks bounded by total byte length.
// A limit of 0 means unlimited: Push never blocks and AtCapacity always
// reports false.
type Bounded struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	length int
	limit  int
	closed bool
}

// NewBounded constructs a Bounded buffer with the given pause threshold.
// limit <= 0 means unlimited.
func NewBounded(limit int) *Bounded {
	b := &Bounded{q: queue.New(), limit: limit}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends chunk, blocking the caller while the buffer is at or above
// its pause threshold. Returns false if the buffer was closed while
// waiting.
func (b *Bounded) Push(chunk []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.limit > 0 && b.length >= b.limit && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return false
	}
	b.q.Add(chunk)
	b.length += len(chunk)
	b.cond.Broadcast()
	return true
}

// TryPush appends chunk only if doing so would not block; returns false
// if the buffer is at or above its pause threshold or closed.
func (b *Bounded) TryPush(chunk []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || (b.limit > 0 && b.length >= b.limit) {
		return false
	}
	b.q.Add(chunk)
	b.length += len(chunk)
	b.cond.Broadcast()
	return true
}

// Pop removes and returns the oldest chunk, or (nil, false) if empty.
// Wakes waiting producers once the buffer drains to half the pause
// threshold.
func (b *Bounded) Pop() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.q.Length() == 0 {
		return nil, false
	}
	chunk := b.q.Remove().([]byte)
	b.length -= len(chunk)

	if b.limit > 0 && b.length <= b.limit/2 {
		b.cond.Broadcast()
	}
	return chunk, true
}

// PopWait removes and returns the oldest chunk, blocking the caller
// while the buffer is empty. Returns (nil, false) once the buffer has
// been closed and fully drained — the signal for a drain loop to exit.
func (b *Bounded) PopWait() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.q.Length() == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.q.Length() == 0 {
		return nil, false
	}
	chunk := b.q.Remove().([]byte)
	b.length -= len(chunk)

	if b.limit > 0 && b.length <= b.limit/2 {
		b.cond.Broadcast()
	}
	return chunk, true
}

// Len returns the current total byte length queued.
func (b *Bounded) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// AtCapacity reports whether the buffer is at or above its pause
// threshold (false when unlimited).
func (b *Bounded) AtCapacity() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit > 0 && b.length >= b.limit
}

// Close unblocks all waiters permanently; subsequent Push calls fail.
func (b *Bounded) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}
