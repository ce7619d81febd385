// Package workflow implements conductor's workflow engine: an imperative
// Go function running over a WorkflowContext that can invoke nodes and
// graphs, suspend on human gates, and emit custom events. Grounded on
// _examples/original_source/src/nerve/frontends/tui/commander/loop.py and
// frontends/cli/server/workflow.py for the suspend-on-gate shape, and on
// the teacher's (deleted, see DESIGN.md) internal/permission/checker.go
// for the gate suspend/resume pending-channel pattern.
package workflow

import (
	"fmt"
	"sync"
)

// Func is the body of a registered workflow: an imperative procedure over
// a WorkflowContext.
type Func func(ctx *Context) (any, error)

// Workflow pairs a registered id with its body.
type Workflow struct {
	ID   string
	Body Func
}

// registry is the static workflow registration table. The Python original
// loads workflow bodies from arbitrary user scripts at runtime
// (PythonExecutor); Go has no in-process sandboxed eval with the corpus's
// dependency set, so workflows are registered ahead of time by Go code
// that imports this package, per the external interface's explicit
// allowance for either rendering.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Workflow)
)

// Register adds a workflow under id, usually called from an init()
// function or a setup routine before the engine starts serving commands.
// Registering the same id twice is a programmer error and panics, the
// same way a duplicate route registration would.
func Register(id string, body Func) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("workflow: %q already registered", id))
	}
	registry[id] = &Workflow{ID: id, Body: body}
}

// Get looks up a registered workflow by id.
func Get(id string) (*Workflow, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	w, ok := registry[id]
	return w, ok
}

// List returns every registered workflow id.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	return out
}
