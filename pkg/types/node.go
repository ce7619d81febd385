// Package types holds the data model shared across conductor's packages:
// nodes, sessions, graphs, workflows, budgets, and the wire shapes used by
// the command/event protocol.
package types

import "time"

// Variant tags the kind of node behind the common Node interface.
type Variant string

const (
	VariantFunction         Variant = "function"
	VariantTerminalPTY       Variant = "terminal-pty"
	VariantTerminalAttached  Variant = "terminal-attached"
	VariantLLMSingleShot     Variant = "llm-single-shot"
	VariantLLMChat           Variant = "llm-chat"
	VariantBash              Variant = "bash"
	VariantMCP               Variant = "mcp"
	VariantIdentity          Variant = "identity"
)

// NodeState is the node lifecycle state machine. Transitions are monotonic
// except READY<->BUSY and ERROR->READY on recovery.
type NodeState string

const (
	NodeCreated  NodeState = "CREATED"
	NodeStarting NodeState = "STARTING"
	NodeReady    NodeState = "READY"
	NodeBusy     NodeState = "BUSY"
	NodeError    NodeState = "ERROR"
	NodeStopping NodeState = "STOPPING"
	NodeStopped  NodeState = "STOPPED"
)

// NodeMeta is the identity and capability summary exposed by LIST_NODES /
// GET_NODE, independent of the concrete variant's internal state.
type NodeMeta struct {
	ID          string    `json:"id"`
	Variant     Variant   `json:"variant"`
	Persistent  bool      `json:"persistent"`
	State       NodeState `json:"state"`
	ToolCapable bool      `json:"toolCapable"`
	MultiTool   bool      `json:"multiTool"`
	Forkable    bool      `json:"forkable"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToolDefinition describes one tool a tool-capable node exposes.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  JSONSchema      `json:"parameters"`
	OwnerNodeID string          `json:"ownerNodeId"`
}

// JSONSchema is a raw JSON-schema document; kept untyped since the schema
// shape varies by tool and is only ever round-tripped, never introspected
// by conductor itself.
type JSONSchema = map[string]any

// ExecutionContext is the immutable snapshot passed into node execution.
// Every mutating helper (WithInput, WithTimeout, ...) returns a new value;
// callers never observe a context changing under them.
type ExecutionContext struct {
	SessionID         string
	Input             any
	UpstreamResults   map[string]any
	ParserOverride    string
	Timeout           time.Duration
	Budget            *Budget
	Usage             *ResourceUsage
	CancelToken       *CancelToken
	Trace             *Trace
	RunID             string
	ExecID            string
	CorrelationID     string
}

// WithInput returns a copy of ctx with Input replaced.
func (c ExecutionContext) WithInput(input any) ExecutionContext {
	c.Input = input
	return c
}

// WithUpstream returns a copy of ctx with UpstreamResults replaced.
func (c ExecutionContext) WithUpstream(upstream map[string]any) ExecutionContext {
	c.UpstreamResults = upstream
	return c
}

// WithTimeout returns a copy of ctx with Timeout replaced.
func (c ExecutionContext) WithTimeout(d time.Duration) ExecutionContext {
	c.Timeout = d
	return c
}

// WithExecID returns a copy of ctx with a fresh ExecID.
func (c ExecutionContext) WithExecID(id string) ExecutionContext {
	c.ExecID = id
	return c
}
