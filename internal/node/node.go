// Package node implements conductor's node variants: typed execution
// units that a session owns and a graph or workflow can invoke.
// Each variant composes the same Node interface; persistent variants
// additionally accept Interrupt and Stop.
package node

import (
	"context"

	"github.com/agentfleet/conductor/pkg/types"
)

// Node is the uniform executable unit. Ephemeral nodes are typically
// one-shot (execute once, then deregister); persistent nodes remain
// registered across many Execute calls.
type Node interface {
	ID() string
	Variant() types.Variant
	State() types.NodeState

	// Execute runs the node against ctx. Chat and terminal nodes reject
	// calls while the node is not READY and move it READY -> BUSY ->
	// READY around the call; function and bash nodes also mark
	// themselves BUSY during a call but do not reject overlapping calls.
	Execute(ctx context.Context, ectx types.ExecutionContext) (any, error)

	// Interrupt requests cooperative cancellation of an in-flight
	// Execute call. Safe to call multiple times and while idle.
	Interrupt() error

	// Stop releases any owned resources (subprocess, pty, conversation
	// state). Safe to call more than once.
	Stop(ctx context.Context) error
}

// ToolCapable is implemented by nodes that expose callable tools to a
// chat node's tool catalog (bash, MCP, function nodes wrapping a tool).
type ToolCapable interface {
	ListTools() []types.ToolDefinition
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Meta carries the identifying, non-behavioral fields every variant
// embeds, so state transitions and ID/Variant accessors aren't
// reimplemented per file.
type Meta struct {
	id      string
	variant types.Variant
	state   types.NodeState
}

func NewMeta(id string, variant types.Variant) Meta {
	return Meta{id: id, variant: variant, state: types.NodeCreated}
}

func (m *Meta) ID() string             { return m.id }
func (m *Meta) Variant() types.Variant { return m.variant }
func (m *Meta) State() types.NodeState { return m.state }
func (m *Meta) setState(s types.NodeState) { m.state = s }

// persistenceAware is implemented by variants whose ephemeral/persistent
// status isn't fixed by their Go type alone (FunctionNode serves both
// IdentityNode and one-shot transforms).
type persistenceAware interface {
	Persistent() bool
}

// IsPersistent reports whether a node should remain registered in its
// session after a successful or failed Execute call. Variants that don't
// implement Persistent() are treated as persistent, since that is the
// safer default — an ephemeral node wrongly treated as persistent just
// lingers; a persistent node wrongly auto-deleted loses state.
func IsPersistent(n Node) bool {
	if p, ok := n.(persistenceAware); ok {
		return p.Persistent()
	}
	return true
}
