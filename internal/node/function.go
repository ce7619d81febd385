package node

import (
	"context"
	"sync"

	"github.com/agentfleet/conductor/pkg/types"
)

// Func is the signature a FunctionNode wraps: a pure or async
// transform from an ExecutionContext to a result.
type Func func(ctx context.Context, ectx types.ExecutionContext) (any, error)

// FunctionNode wraps a Go function as a node. It is the substrate for
// IdentityNode, scripted transforms, and test fakes. Ephemeral unless
// persistent is set true at construction.
type FunctionNode struct {
	Meta

	fn         Func
	persistent bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	inFlight bool
}

// NewFunctionNode creates a function node. persistent controls whether
// the node stays registered after Execute returns; the engine layer
// consults this when deciding whether to deregister post-execution.
func NewFunctionNode(id string, fn Func, persistent bool) *FunctionNode {
	return newFunctionNode(id, types.VariantFunction, fn, persistent)
}

func newFunctionNode(id string, variant types.Variant, fn Func, persistent bool) *FunctionNode {
	n := &FunctionNode{
		Meta:       NewMeta(id, variant),
		fn:         fn,
		persistent: persistent,
	}
	n.setState(types.NodeReady)
	return n
}

func (n *FunctionNode) Persistent() bool { return n.persistent }

func (n *FunctionNode) Execute(ctx context.Context, ectx types.ExecutionContext) (any, error) {
	runCtx, cancel := context.WithCancel(ctx)

	n.mu.Lock()
	n.setState(types.NodeBusy)
	n.cancel = cancel
	n.inFlight = true
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.inFlight = false
		n.cancel = nil
		if n.State() != types.NodeStopped {
			n.setState(types.NodeReady)
		}
		n.mu.Unlock()
		cancel()
	}()

	return n.fn(runCtx, ectx)
}

// Interrupt cancels the context passed to the current invocation. A
// cooperative function must itself observe ctx.Done() to actually stop;
// Interrupt only requests it.
func (n *FunctionNode) Interrupt() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.inFlight && n.cancel != nil {
		n.cancel()
	}
	return nil
}

func (n *FunctionNode) Stop(ctx context.Context) error {
	n.Interrupt()
	n.mu.Lock()
	n.setState(types.NodeStopped)
	n.mu.Unlock()
	return nil
}

var _ Node = (*FunctionNode)(nil)
