package types

import (
	"fmt"
	"strings"
	"sync"
)

// Trace accumulates StepTrace records for one graph or workflow execution
// and can render a textual explain() dump.
type Trace struct {
	mu    sync.Mutex
	Steps []StepTrace
}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Record appends a step trace.
func (t *Trace) Record(st StepTrace) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Steps = append(t.Steps, st)
}

// TotalTokens sums TokensUsed across every recorded step.
func (t *Trace) TotalTokens() int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var total int64
	for _, s := range t.Steps {
		total += s.TokensUsed
	}
	return total
}

// Explain renders a human-readable summary of the recorded steps, in
// recorded order.
func (t *Trace) Explain() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	var total int64
	for _, s := range t.Steps {
		total += s.TokensUsed
		status := "ok"
		if s.Error != "" {
			status = "error: " + s.Error
		}
		fmt.Fprintf(&b, "[%s] node=%s type=%s duration=%dms tokens=%d %s\n",
			s.StepID, s.NodeID, s.NodeType, s.DurationMs, s.TokensUsed, status)
	}
	fmt.Fprintf(&b, "total tokens: %d\n", total)
	return b.String()
}
