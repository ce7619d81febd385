package types

import "time"

// InputSpecKind tags how a step's input is produced.
type InputSpecKind string

const (
	InputLiteral  InputSpecKind = "literal"
	InputTemplate InputSpecKind = "template"
	InputFunc     InputSpecKind = "function"
)

// InputSpec describes how a step's execution input is derived.
type InputSpec struct {
	Kind     InputSpecKind
	Literal  any
	Template string
	Func     func(upstream map[string]any) any
}

// Step is one node in a Graph's DAG.
type Step struct {
	ID         string
	NodeRef    string
	Input      InputSpec
	DependsOn  []string
}

// Graph is a DAG of steps with upstream data flow, identified uniquely
// within its owning session.
type Graph struct {
	ID    string
	Steps []Step
}

// TaskStatus is the terminal disposition of one executed step.
type TaskStatus string

const (
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// TaskResult is the outcome of executing one graph step.
type TaskResult struct {
	Status     TaskStatus `json:"status"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"durationMs"`
}

// StepTrace records one step's execution for observability/explain().
type StepTrace struct {
	StepID     string        `json:"stepId"`
	NodeID     string        `json:"nodeId"`
	NodeType   Variant       `json:"nodeType"`
	Input      any           `json:"input"`
	Output     any           `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	DurationMs int64         `json:"durationMs"`
	TokensUsed int64         `json:"tokensUsed"`
	// ExecID correlates this step with the ExecutionContext.ExecID the
	// node's Execute call ran under, the same correlation key a
	// persistent node's history entries carry.
	ExecID string `json:"execId,omitempty"`
}
