// Package ratelimit provides a built-in, pluggable rate-limit middleware
// built on golang.org/x/time/rate. It is an external collaborator at the
// interface level (spec.md §1 "rate-limit middleware (specified only at
// interface level)") — demonstrating the Middleware contract, not part
// of the core read/write loop.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/suleymanbyzt/StormSocket/middleware"
	"github.com/suleymanbyzt/StormSocket/session"
)

// TokenBucketMiddleware rate-limits inbound frames per session using an
// independent token bucket for each session id.
type TokenBucketMiddleware struct {
	middleware.NopMiddleware

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewTokenBucketMiddleware constructs a TokenBucketMiddleware admitting
// up to limit events per second with burst headroom, tracked per
// session.
func NewTokenBucketMiddleware(limit rate.Limit, burst int) *TokenBucketMiddleware {
	return &TokenBucketMiddleware{
		limit:    limit,
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// OnDataReceived drops the frame (returns nil) once the session's bucket
// is exhausted; otherwise it passes data through unchanged.
func (m *TokenBucketMiddleware) OnDataReceived(s session.Session, data []byte) []byte {
	if !m.limiterFor(s.ID()).Allow() {
		return nil
	}
	return data
}

// OnDisconnected releases the per-session limiter so the map does not
// keep an entry for every session that has disconnected.
func (m *TokenBucketMiddleware) OnDisconnected(s session.Session) {
	m.mu.Lock()
	delete(m.limiters, s.ID())
	m.mu.Unlock()
}

func (m *TokenBucketMiddleware) limiterFor(id int64) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[id]
	if !ok {
		l = rate.NewLimiter(m.limit, m.burst)
		m.limiters[id] = l
	}
	return l
}
