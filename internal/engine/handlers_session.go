package engine

import (
	"context"

	"github.com/agentfleet/conductor/internal/session"
)

// SessionHandler: CREATE_SESSION, DELETE_SESSION, LIST_SESSIONS,
// GET_SESSION. Session.New already auto-creates the reserved identity
// node, matching the original's CREATE_SESSION behavior.

func handleCreateSession(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	name := optionalString(params, "name", "")

	s, err := e.Sessions.Create(id, name)
	if err != nil {
		return nil, err
	}
	return sessionSummary(s), nil
}

func handleDeleteSession(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	if err := e.Sessions.Delete(ctx, id); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleListSessions(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	return e.Sessions.List(), nil
}

func handleGetSession(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	return sessionSummary(s), nil
}

// sessionSummary is the wire shape returned for CREATE_SESSION/GET_SESSION:
// metadata plus a count of each catalogue, not a dump of live node state.
func sessionSummary(s *session.Session) map[string]any {
	return map[string]any{
		"id":           s.ID,
		"name":         s.Name,
		"description":  s.Description,
		"tags":         s.Tags,
		"createdAt":    s.CreatedAt,
		"nodeCount":    s.NodeCount(),
		"graphs":       s.ListGraphIDs(),
		"workflowIds":  s.ListWorkflowIDs(),
		"workflowRuns": s.ListWorkflowRunIDs(),
	}
}
