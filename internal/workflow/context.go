package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/graph"
	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

// SessionResolver is what a running workflow body needs from its owning
// session: execute a node (with autoclean semantics already applied) and
// look up a graph or node by name. Nested workflow runs are started and
// tracked by the Runner, not through this interface.
// internal/session.Session satisfies this structurally.
type SessionResolver interface {
	ExecuteNode(ctx context.Context, name string, ectx types.ExecutionContext) (any, error)
	GetGraph(id string) (*types.Graph, bool)
	GetNode(name string) (node.Node, bool)
}

// Context is the value a workflow body runs over: the four operations
// named in the external interface (run, gate, emit, state/params/input)
// plus the plumbing the Runner needs to drive suspension and events.
type Context struct {
	Input  any
	Params map[string]any

	stateMu sync.Mutex
	state   map[string]any

	goCtx     context.Context
	session   SessionResolver
	run       *run
	runner    *Runner
	budget    *types.Budget
	usage     *types.ResourceUsage
	trace     *types.Trace
	sessionID string
}

// State returns a snapshot of the workflow's mutable state map. Callers
// that want to mutate it use StateSet/StateGet, which are safe under
// concurrent gate suspension (the body itself is single-goroutine, but
// GET_WORKFLOW_RUN may read state from another goroutine while waiting).
func (c *Context) State() map[string]any {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	out := make(map[string]any, len(c.state))
	for k, v := range c.state {
		out[k] = v
	}
	return out
}

// StateGet reads one key from the workflow's mutable state.
func (c *Context) StateGet(key string) (any, bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	v, ok := c.state[key]
	return v, ok
}

// StateSet writes one key into the workflow's mutable state.
func (c *Context) StateSet(key string, value any) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state[key] = value
}

// Run executes ref — a node name, a graph ID in the owning session, or a
// registered workflow ID — and returns its result wrapped as
// {"output": ...}. Equivalent to building and executing a one-step
// graph, but reusing ExecuteNode's autoclean semantics directly when ref
// is a plain node. A workflow ref runs as a nested run sharing the
// parent's cancellation, budget, and usage counters, per the external
// interface's "nested runs inherit cancellation and budget from their
// parent context" requirement.
func (c *Context) Run(ref string, input any) (map[string]any, error) {
	if c.goCtx.Err() != nil {
		return nil, engineerr.Cancelled("workflow run %q cancelled", c.run.id)
	}

	if _, ok := c.session.GetNode(ref); ok {
		c.emitNodeEvent(types.EventNodeStarted, ref, nil)
		out, err := c.session.ExecuteNode(c.goCtx, ref, types.ExecutionContext{
			SessionID: c.sessionID,
			Input:     input,
			Budget:    c.budget,
			Usage:     c.usage,
			Trace:     c.trace,
			RunID:     c.run.id,
		})
		if err != nil {
			c.emitNodeEvent(types.EventNodeError, ref, map[string]any{"error": err.Error()})
			return nil, err
		}
		c.emitNodeEvent(types.EventNodeCompleted, ref, map[string]any{"output": out})
		return map[string]any{"output": out}, nil
	}

	if g, ok := c.session.GetGraph(ref); ok {
		c.emit(types.EventGraphStarted, map[string]any{"graphId": ref})
		results, err := graph.NewExecutor(graph.DefaultMaxConcurrency).Run(c.goCtx, g, c.session, types.ExecutionContext{
			SessionID: c.sessionID,
			Input:     input,
			Budget:    c.budget,
			Usage:     c.usage,
			Trace:     c.trace,
			RunID:     c.run.id,
		})
		if err != nil {
			c.emit(types.EventGraphError, map[string]any{"graphId": ref, "error": err.Error()})
			return nil, err
		}
		c.emit(types.EventGraphCompleted, map[string]any{"graphId": ref})
		return map[string]any{"output": results, "results": results}, nil
	}

	if _, ok := Get(ref); ok {
		return c.runNested(ref, input)
	}

	return nil, engineerr.NotFound("workflow %q: %q is neither a node, a graph, nor a workflow in this session", c.run.workflowID, ref)
}

// runNested starts ref as a child workflow run sharing this Context's
// cancellation, budget, and usage, then blocks until it completes,
// mirroring Runner.Start's own WithCancel wiring so the child observes
// the same deadline/cancel signal as the parent.
func (c *Context) runNested(ref string, input any) (map[string]any, error) {
	nested, err := c.runner.Start(c.goCtx, c.session, ref, StartOptions{
		SessionID: c.sessionID,
		Input:     input,
		Budget:    c.budget,
		Usage:     c.usage,
		Trace:     c.trace,
	})
	if err != nil {
		return nil, err
	}

	c.emit(types.EventNestedWFStarted, map[string]any{"workflowId": ref, "runId": nested.RunID})

	result, err := c.runner.Wait(c.goCtx, nested.RunID)
	if err != nil {
		return nil, err
	}

	c.emit(types.EventNestedWFCompleted, map[string]any{"workflowId": ref, "runId": nested.RunID, "result": result})
	return map[string]any{"output": result}, nil
}

func (c *Context) emitNodeEvent(eventType, nodeID string, data map[string]any) {
	merged := map[string]any{"nodeId": nodeID}
	for k, v := range data {
		merged[k] = v
	}
	c.emit(eventType, merged)
}

// Gate suspends the workflow run until an external ANSWER_GATE command
// supplies an answer, the run is cancelled, or timeout elapses (zero
// means wait forever). The run transitions to "waiting" with a populated
// PendingGate for the duration.
func (c *Context) Gate(prompt string, choices []string, timeout time.Duration) (string, error) {
	return c.run.gate(c.goCtx, prompt, choices, timeout)
}

// Emit appends a custom event visible to observers, tagged with this
// run's ID and workflow ID.
func (c *Context) Emit(eventType string, data map[string]any) {
	c.emit(eventType, data)
}

func (c *Context) emit(eventType string, data map[string]any) {
	c.run.emit(eventType, data)
}
