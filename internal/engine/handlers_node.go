package engine

import (
	"context"
	"time"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/event"
	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

// NodeLifecycleHandler: CREATE_NODE, DELETE_NODE, LIST_NODES, GET_NODE,
// FORK_NODE. Enforces name validation and duplicate detection through
// session.RegisterNode; provider-configured terminal nodes have their
// LLM proxy spun up by buildNode and torn down here via StopProxy.

func handleCreateNode(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}

	n, err := buildNode(ctx, e, s, id, params)
	if err != nil {
		return nil, err
	}
	if err := s.RegisterNode(n, id); err != nil {
		return nil, err
	}

	event.PublishSync(types.Event{
		Type:      types.EventNodeCreated,
		NodeID:    id,
		Timestamp: time.Now(),
		Data:      map[string]any{"sessionId": s.ID, "variant": n.Variant()},
	})
	return nodeMeta(n), nil
}

func handleDeleteNode(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	n, ok := s.UnregisterNode(id)
	if !ok {
		return nil, engineerr.NotFound("node %q not found", id)
	}
	_ = n.Stop(ctx)
	_ = s.StopProxy(ctx, id)

	event.PublishSync(types.Event{
		Type:      types.EventNodeDeleted,
		NodeID:    id,
		Timestamp: time.Now(),
		Data:      map[string]any{"sessionId": s.ID, "reason": "explicit"},
	})
	return nil, nil
}

func handleListNodes(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	return s.ListNodeNames(), nil
}

func handleGetNode(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	n, ok := s.GetNode(id)
	if !ok {
		return nil, engineerr.NotFound("node %q not found", id)
	}
	return nodeMeta(n), nil
}

// handleForkNode clones a chat node's conversation into a new node id,
// matching the teacher's session.fork() pattern generalized from "fork
// a session" to "fork a chat node" (conductor's forkable unit of
// conversation state is the node, not the whole session).
func handleForkNode(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	newID, err := requireString(params, "newId")
	if err != nil {
		return nil, err
	}
	n, ok := s.GetNode(id)
	if !ok {
		return nil, engineerr.NotFound("node %q not found", id)
	}
	chat, ok := n.(*node.ChatNode)
	if !ok {
		return nil, invalidInput("node %q does not support forking (only llm-chat nodes do)", id)
	}
	forked := chat.Fork(newID)
	if err := s.RegisterNode(forked, newID); err != nil {
		return nil, err
	}
	return nodeMeta(forked), nil
}

func nodeMeta(n node.Node) types.NodeMeta {
	_, toolCapable := n.(node.ToolCapable)
	_, forkable := n.(*node.ChatNode)
	return types.NodeMeta{
		ID:          n.ID(),
		Variant:     n.Variant(),
		Persistent:  node.IsPersistent(n),
		State:       n.State(),
		ToolCapable: toolCapable,
		Forkable:    forkable,
		CreatedAt:   time.Now(),
	}
}
