package realtime

import "sync"

// Registry maps a user identity to the set of live connection handles for
// that user. A user with several tabs or devices holds several handles.
// Entries are added on connect and removed synchronously on disconnect;
// callers never see a handle for a connection that was cleanly closed.
//
// Each call is atomic on its own. There is no cross-call guarantee: a user
// disconnecting while a Resolve is in flight may or may not appear in that
// result, which is acceptable because delivery is best-effort.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[string]struct{})}
}

// Register adds a connection handle to the user's set. Registering the same
// pair twice is a no-op.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[userID]; !ok {
		r.conns[userID] = make(map[string]struct{})
	}
	r.conns[userID][connID] = struct{}{}
}

// Unregister removes a connection handle from the user's set, dropping the
// user entry once it is empty. Unknown pairs are ignored.
func (r *Registry) Unregister(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.conns[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}
}

// Resolve returns the union of live connection handles for the given users.
// Users without a live connection contribute nothing.
func (r *Registry) Resolve(userIDs []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var handles []string
	for _, userID := range userIDs {
		for connID := range r.conns[userID] {
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			handles = append(handles, connID)
		}
	}
	return handles
}

// Online reports whether the user has at least one live connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Reset drops every entry. Used on server shutdown after all sessions are
// closed.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = make(map[string]map[string]struct{})
}
