package websocket

import (
	"sync"
)

// Registry is the bidirectional index from user id to live connection ids.
// It is the only shared mutable state of the realtime layer; every access is
// internally synchronized so broadcasts racing with disconnects neither
// deliver to nor crash on a half-removed connection.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]struct{})}
}

// Add records a connection for a user. Idempotent.
func (r *Registry) Add(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.users[userID]
	if conns == nil {
		conns = make(map[string]struct{})
		r.users[userID] = conns
	}
	conns[connID] = struct{}{}
}

// Remove drops a connection for a user. A user whose last connection closes
// disappears from the index entirely. Double-remove is a no-op; disconnect
// can race with explicit cleanup.
func (r *Registry) Remove(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.users, userID)
	}
}

// ConnectionsFor returns a snapshot of the user's live connection ids.
// Absent users yield an empty slice, never an error.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	out := make([]string, 0, len(conns))
	for connID := range conns {
		out = append(out, connID)
	}
	return out
}

// UserCount reports how many users currently have at least one connection.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
