package session

import "sync"

// Group is a named-group registry: group name → (id → Session). Empty
// groups are deleted (spec.md §4.8); Add and Remove keep a session's own
// group set (base.groups) consistent by calling JoinGroup/LeaveGroup.
type Group struct {
	mu     sync.RWMutex
	groups map[string]map[int64]Session
}

// NewGroup constructs an empty Group registry.
func NewGroup() *Group {
	return &Group{groups: make(map[string]map[int64]Session)}
}

// Add puts s into the named group, creating the group if absent, and
// records the membership on the session itself.
func (g *Group) Add(name string, s Session) {
	g.mu.Lock()
	members, ok := g.groups[name]
	if !ok {
		members = make(map[int64]Session)
		g.groups[name] = members
	}
	members[s.ID()] = s
	g.mu.Unlock()
	s.JoinGroup(name)
}

// Remove deletes s from the named group, deleting the group entirely if
// it becomes empty, and updates the session's own group set.
func (g *Group) Remove(name string, s Session) {
	g.mu.Lock()
	if members, ok := g.groups[name]; ok {
		delete(members, s.ID())
		if len(members) == 0 {
			delete(g.groups, name)
		}
	}
	g.mu.Unlock()
	s.LeaveGroup(name)
}

// RemoveFromAll removes s from every group it currently belongs to,
// per its own group set — used on session close (spec.md §4.8).
func (g *Group) RemoveFromAll(s Session) {
	for _, name := range s.Groups() {
		g.Remove(name, s)
	}
}

// Broadcast sends data to every member of the named group except
// excludeID. A missing group is a no-op.
func (g *Group) Broadcast(name string, data []byte, excludeID int64) {
	for _, s := range g.members(name) {
		if s.ID() == excludeID {
			continue
		}
		_ = s.Send(data)
	}
}

// MemberCount returns the number of sessions currently in the named
// group (0 if the group does not exist).
func (g *Group) MemberCount(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.groups[name])
}

// GroupNames returns a snapshot of the currently non-empty group names.
func (g *Group) GroupNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.groups))
	for name := range g.groups {
		out = append(out, name)
	}
	return out
}

func (g *Group) members(name string) []Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members, ok := g.groups[name]
	if !ok {
		return nil
	}
	out := make([]Session, 0, len(members))
	for _, s := range members {
		out = append(out, s)
	}
	return out
}
