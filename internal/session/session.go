// Package session implements the daemon's client session registry: the
// Pending -> {ui, control, plugin} role state machine and the single-active-
// UI invariant.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hamr/hamrd/internal/rpc"
)

// Session represents one connected client socket.
type Session struct {
	ID       string
	Role     rpc.ClientRole
	PluginID string // set only when Role == RolePlugin
}

// Registry tracks every connected session and enforces the single-active-UI
// invariant. Safe for concurrent use; mirrors the RWMutex-guarded map idiom
// used throughout the teacher's plugin manager.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	uiID     string // empty when no UI is currently attached
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Open creates a new Pending session and returns its id.
func (r *Registry) Open() string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &Session{ID: id, Role: rpc.RolePending}
	return id
}

// Close removes a session. If it was the active UI, the UI slot is freed.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	if r.uiID == id {
		r.uiID = ""
	}
}

// Register transitions a Pending session into the given role.
//
// A session may only register once: calling Register on a session that has
// already registered a role fails with ErrAlreadyRegistered. Registering as
// UI while another session already holds the UI role (the single-active-UI
// invariant) fails with ErrUiOccupied rather than displacing it — the caller
// must close the existing UI session first.
func (r *Registry) Register(id string, role rpc.ClientRole) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session: unknown session %q", id)
	}
	if role == rpc.RolePending || role == "" {
		return nil, fmt.Errorf("session: cannot register as pending")
	}
	if s.Role != rpc.RolePending {
		return nil, rpc.NewError(rpc.ErrAlreadyRegistered, fmt.Sprintf("session %q is already registered as %q", id, s.Role))
	}
	if role == rpc.RoleUI && r.uiID != "" {
		return nil, rpc.NewError(rpc.ErrUiOccupied, "another session already holds the ui role")
	}

	s.Role = role
	if role == rpc.RoleUI {
		r.uiID = id
	}

	return s, nil
}

// Get returns the session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// UI returns the currently active UI session, if any.
func (r *Registry) UI() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.uiID == "" {
		return nil, false
	}
	s, ok := r.sessions[r.uiID]
	return s, ok
}

// RequireRole reports whether the session with id currently holds one of the
// allowed roles; used to gate role-restricted RPC methods.
func (r *Registry) RequireRole(id string, allowed ...rpc.ClientRole) error {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return rpc.NewError(rpc.ErrNotRegistered, "session not found")
	}
	if s.Role == rpc.RolePending {
		return rpc.NewError(rpc.ErrNotRegistered, "session is not registered")
	}
	for _, role := range allowed {
		if s.Role == role {
			return nil
		}
	}
	return rpc.NewError(rpc.ErrControlRequired, fmt.Sprintf("role %q may not call this method", s.Role))
}

// Count returns the number of currently connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
