package graph

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/event"
	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// DefaultMaxConcurrency bounds per-level parallelism when a caller doesn't
// set Executor.MaxConcurrency.
const DefaultMaxConcurrency = 8

// Executor runs a validated Graph level by level, dispatching every step
// in a level concurrently (bounded by MaxConcurrency) and skipping any step
// whose dependencies didn't all complete. Grounded on executor.go's
// executeLevels/filterReadyNodes, adapted to conductor's Node/
// ExecutionContext contract instead of a generic task callback.
type Executor struct {
	MaxConcurrency int
}

// NewExecutor creates an Executor with the given level-parallelism bound;
// a non-positive value falls back to DefaultMaxConcurrency.
func NewExecutor(maxConcurrency int) *Executor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Executor{MaxConcurrency: maxConcurrency}
}

// Run validates g, computes its execution levels, and runs them to
// completion, returning every step's TaskResult keyed by step ID. ectx is
// the template execution context for every step; each step receives its
// own copy with Input and UpstreamResults filled in. If ectx.Trace is
// non-nil, one StepTrace is recorded per executed (non-skipped) step.
func (e *Executor) Run(ctx context.Context, g *types.Graph, resolver NodeResolver, ectx types.ExecutionContext) (map[string]types.TaskResult, error) {
	if err := Validate(g, resolver); err != nil {
		return nil, err
	}
	waves, err := levels(g)
	if err != nil {
		return nil, err
	}
	steps := stepByID(g)

	maxConcurrency := e.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	event.PublishSync(types.Event{
		Type:      types.EventGraphStarted,
		Timestamp: time.Now(),
		Data:      map[string]any{"sessionId": ectx.SessionID, "graphId": g.ID},
	})

	var mu sync.Mutex
	results := make(map[string]types.TaskResult, len(g.Steps))
	upstream := make(map[string]any, len(g.Steps))

	for _, wave := range waves {
		var wg sync.WaitGroup
		sem := make(chan struct{}, maxConcurrency)

		for _, stepID := range wave {
			step := steps[stepID]

			mu.Lock()
			skip := stepSkipped(step, results)
			if ctx.Err() != nil {
				skip = true
			}
			if ectx.CancelToken != nil && ectx.CancelToken.Cancelled() {
				skip = true
			}
			mu.Unlock()
			if skip {
				mu.Lock()
				results[step.ID] = types.TaskResult{Status: types.TaskSkipped}
				mu.Unlock()
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(step types.Step) {
				defer wg.Done()
				defer func() { <-sem }()
				res, trace := e.runStep(ctx, resolver, ectx, step, snapshot(upstream, &mu))
				mu.Lock()
				results[step.ID] = res
				if res.Status == types.TaskCompleted {
					upstream[step.ID] = res.Output
				}
				mu.Unlock()
				if ectx.Trace != nil {
					ectx.Trace.Record(trace)
				}
				publishStepEvent(ectx.SessionID, g.ID, step.ID, res)
			}(step)
		}
		wg.Wait()
	}

	event.PublishSync(types.Event{
		Type:      types.EventGraphCompleted,
		Timestamp: time.Now(),
		Data:      map[string]any{"sessionId": ectx.SessionID, "graphId": g.ID},
	})

	return results, nil
}

// stepSkipped reports whether step must be skipped because some dependency
// did not complete.
func stepSkipped(step types.Step, results map[string]types.TaskResult) bool {
	for _, dep := range step.DependsOn {
		if r, ok := results[dep]; !ok || r.Status != types.TaskCompleted {
			return true
		}
	}
	return false
}

func snapshot(upstream map[string]any, mu *sync.Mutex) map[string]any {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]any, len(upstream))
	for k, v := range upstream {
		out[k] = v
	}
	return out
}

// runStep executes one step against its resolved node, enforcing the
// session's budget before dispatch so an over-budget step is refused
// rather than started.
func (e *Executor) runStep(ctx context.Context, resolver NodeResolver, ectx types.ExecutionContext, step types.Step, upstream map[string]any) (types.TaskResult, types.StepTrace) {
	start := time.Now()
	execID := ulid.Make().String()
	trace := types.StepTrace{StepID: step.ID, NodeID: step.NodeRef, Start: start, ExecID: execID}

	if ectx.Usage != nil && ectx.Budget != nil {
		if counter, exceeded := ectx.Usage.Exceeds(ectx.Budget); exceeded {
			err := engineerr.BudgetExceeded(counter)
			trace.Error = err.Error()
			trace.End = time.Now()
			trace.DurationMs = trace.End.Sub(start).Milliseconds()
			return types.TaskResult{Status: types.TaskFailed, Error: err.Error(), DurationMs: trace.DurationMs}, trace
		}
	}

	n, ok := resolver.GetNode(step.NodeRef)
	if !ok {
		err := engineerr.NotFound("step %q references unknown node %q", step.ID, step.NodeRef)
		trace.Error = err.Error()
		trace.End = time.Now()
		return types.TaskResult{Status: types.TaskFailed, Error: err.Error()}, trace
	}
	trace.NodeType = n.Variant()

	input, err := resolveInput(step.Input, upstream)
	if err != nil {
		trace.Error = err.Error()
		trace.End = time.Now()
		return types.TaskResult{Status: types.TaskFailed, Error: err.Error()}, trace
	}
	trace.Input = input

	stepCtx := ectx.WithInput(input).WithUpstream(upstream)
	stepCtx.ExecID = execID
	output, execErr := n.Execute(ctx, stepCtx)

	trace.End = time.Now()
	trace.DurationMs = trace.End.Sub(start).Milliseconds()
	if execErr != nil {
		logging.Warn().Err(execErr).Str("step", step.ID).Str("node", step.NodeRef).Msg("graph step failed")
		trace.Error = execErr.Error()
		return types.TaskResult{Status: types.TaskFailed, Error: execErr.Error(), DurationMs: trace.DurationMs}, trace
	}
	trace.Output = output
	return types.TaskResult{Status: types.TaskCompleted, Output: output, DurationMs: trace.DurationMs}, trace
}

func publishStepEvent(sessionID, graphID, stepID string, res types.TaskResult) {
	eventType := types.EventTaskCompleted
	if res.Status == types.TaskFailed {
		eventType = types.EventTaskFailed
	}
	event.PublishSync(types.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data: map[string]any{
			"sessionId": sessionID,
			"graphId":   graphID,
			"stepId":    stepID,
			"status":    res.Status,
		},
	})
}
