package hub

import (
	"sync"

	"github.com/samber/lo"

	"github.com/rohithg/Real-Time-Collaborative-Whiteboard/domain"
)

// Registry is the set of live participants keyed by connection ID.
// It is safe for concurrent use.
type Registry struct {
	members map[string]domain.Connection
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]domain.Connection),
	}
}

// Add inserts conn. Adding an ID that is already present replaces the entry
// and leaves the size unchanged.
func (r *Registry) Add(conn domain.Connection) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[conn.ID()] = conn
	return len(r.members)
}

// Remove deletes conn and reports whether it was a member. Removing an
// absent participant is a no-op.
func (r *Registry) Remove(conn domain.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.members[conn.ID()]
	if !ok || current != conn {
		return false
	}
	delete(r.members, conn.ID())
	return true
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// ForEachExcept calls fn for every member other than exceptID and returns
// the members for which fn failed. fn runs under the read lock: it must not
// block and must not call back into the registry.
func (r *Registry) ForEachExcept(exceptID string, fn func(domain.Connection) error) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var failed []domain.Connection
	for id, conn := range r.members {
		if id == exceptID {
			continue
		}
		if err := fn(conn); err != nil {
			failed = append(failed, conn)
		}
	}
	return failed
}

// Members returns a snapshot of the current members in no particular order.
func (r *Registry) Members() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.members)
}
