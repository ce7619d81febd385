package session

import (
	"context"
	"sync"
	"time"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/event"
	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

// DefaultSessionID names the session every registry creates at startup
// and refuses to delete, matching the invariant in spec.md §4.9.
const DefaultSessionID = "default"

// Registry is the central mutable table of sessions SessionHandler
// dispatches against. Grounded on session/manager.py's SessionManager,
// generalized with a non-deletable default session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry pre-populated with the default session.
func NewRegistry() *Registry {
	r := &Registry{sessions: make(map[string]*Session)}
	r.sessions[DefaultSessionID] = New(DefaultSessionID, DefaultSessionID)
	return r
}

// Create registers a new session under id, rejecting duplicates and
// invalid ids. An empty name defaults to id.
func (r *Registry) Create(id, name string) (*Session, error) {
	if err := node.ValidateName(id, "session"); err != nil {
		return nil, engineerr.Wrap(types.ErrInvalidInput, "invalid session id", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return nil, engineerr.Conflict("session %q already exists", id)
	}

	s := New(id, name)
	r.sessions[id] = s

	event.Publish(types.Event{
		Type:      types.EventSessionCreated,
		Timestamp: time.Now(),
		Data:      map[string]any{"sessionId": id},
	})
	return s, nil
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Resolve returns the named session, or the default session when id is
// empty, matching "commands accept an optional session_id... when
// omitted they address the default session."
func (r *Registry) Resolve(id string) (*Session, bool) {
	if id == "" {
		id = DefaultSessionID
	}
	return r.Get(id)
}

// Delete removes and closes a session. The default session can never be
// deleted.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if id == DefaultSessionID {
		return engineerr.InvalidState("the default session cannot be deleted")
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return engineerr.NotFound("session %q not found", id)
	}

	err := s.Close(ctx)

	event.Publish(types.Event{
		Type:      types.EventSessionDeleted,
		Timestamp: time.Now(),
		Data:      map[string]any{"sessionId": id},
	})
	return err
}

// List returns every registered session id.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}
