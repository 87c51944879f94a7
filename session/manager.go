package session

import (
	"sync"
)

// Manager is a thread-safe id→Session map (spec.md §4.8). TryAdd fails
// if the id is already present; TryRemove returns the session that was
// removed, if any.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]Session)}
}

// TryAdd inserts s under s.ID(), failing if that id is already present.
func (m *Manager) TryAdd(s Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID()]; exists {
		return false
	}
	m.sessions[s.ID()] = s
	return true
}

// TryRemove deletes the session with the given id, returning it and
// true if it was present.
func (m *Manager) TryRemove(id int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return s, ok
}

// Get returns the session with the given id, if present.
func (m *Manager) Get(id int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the current number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Range calls fn for a snapshot of the current sessions.
func (m *Manager) Range(fn func(Session)) {
	for _, s := range m.snapshot() {
		fn(s)
	}
}

func (m *Manager) snapshot() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Broadcast sends data to every tracked session except excludeID (pass 0
// to exclude none, since ids start at 1). Per-session send errors are
// swallowed, matching the teacher's store.Range sweep semantics.
func (m *Manager) Broadcast(data []byte, excludeID int64) {
	for _, s := range m.snapshot() {
		if s.ID() == excludeID {
			continue
		}
		_ = s.Send(data)
	}
}

// CloseAll closes every tracked session, swallowing per-session errors,
// then clears the map.
func (m *Manager) CloseAll() {
	for _, s := range m.snapshot() {
		_ = s.Close()
	}
	m.mu.Lock()
	m.sessions = make(map[int64]Session)
	m.mu.Unlock()
}
