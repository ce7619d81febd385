package node

import (
	"context"

	"github.com/agentfleet/conductor/pkg/types"
)

// NewIdentityNode builds the reserved echo node auto-created per
// session: it returns ctx.Input unchanged. Always persistent, since
// sessions rely on it remaining addressable for the lifetime of the
// session.
func NewIdentityNode(id string) *FunctionNode {
	return newFunctionNode(id, types.VariantIdentity, func(_ context.Context, ectx types.ExecutionContext) (any, error) {
		return ectx.Input, nil
	}, true)
}

// DefaultIdentityNodeID is the ID every session registers its identity
// node under during bootstrap.
const DefaultIdentityNodeID = "identity"
