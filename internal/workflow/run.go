package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/event"
	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// run is the live counterpart to a *types.WorkflowRun: the exported
// struct is the serializable snapshot handed to callers, run holds the
// goroutine-private machinery (cancellation, the pending gate channel,
// completion signaling).
type run struct {
	id         string
	workflowID string

	mu      sync.Mutex
	public  *types.WorkflowRun
	gateCh  chan string // non-nil only while state == waiting
	cancel  context.CancelFunc
	done    chan struct{}
	result  any
	err     error
}

// Snapshot returns a copy of the run's current public state, safe to read
// concurrently with the body goroutine.
func (r *run) Snapshot() types.WorkflowRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.public
}

func (r *run) setState(s types.RunState) {
	r.mu.Lock()
	r.public.State = s
	r.mu.Unlock()
}

func (r *run) emit(eventType string, data map[string]any) {
	event.PublishSync(types.Event{
		Type:      eventType,
		RunID:     r.id,
		Timestamp: time.Now(),
		Data:      mergeWorkflowID(r.workflowID, data),
	})
}

func mergeWorkflowID(workflowID string, data map[string]any) map[string]any {
	out := map[string]any{"workflowId": workflowID}
	for k, v := range data {
		out[k] = v
	}
	return out
}

// gate implements Context.Gate's suspend/resume mechanics: a request
// channel per pending gate, exactly the teacher's permission.Checker
// pending map pattern but keyed by run id (only one gate can be pending
// per run at a time, matching the "waiting has exactly one pending_gate"
// invariant).
func (r *run) gate(ctx context.Context, prompt string, choices []string, timeout time.Duration) (string, error) {
	ch := make(chan string, 1)

	r.mu.Lock()
	r.gateCh = ch
	r.public.State = types.RunWaiting
	r.public.PendingGate = &types.Gate{Prompt: prompt, Choices: choices}
	if timeout > 0 {
		r.public.PendingGate.Timeout = &timeout
	}
	r.mu.Unlock()

	r.emit(types.EventGateWaiting, map[string]any{"prompt": prompt, "choices": choices})

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var answer string
	var err error
	select {
	case <-ctx.Done():
		r.emit(types.EventGateCancelled, map[string]any{"prompt": prompt})
		err = engineerr.Cancelled("workflow run %q cancelled while waiting on gate", r.id)
	case <-timeoutCh:
		r.emit(types.EventGateTimeout, map[string]any{"prompt": prompt})
		err = engineerr.Timeout("gate %q timed out after %s", prompt, timeout)
	case answer = <-ch:
		r.emit(types.EventGateAnswered, map[string]any{"prompt": prompt, "answer": answer})
	}

	r.mu.Lock()
	r.gateCh = nil
	r.public.PendingGate = nil
	if err == nil {
		r.public.State = types.RunRunning
	}
	r.mu.Unlock()

	return answer, err
}

// answer delivers an external ANSWER_GATE answer to a pending gate.
// Returns an error ("no gate pending") if the run isn't currently
// waiting, matching the external interface's required failure mode, and
// an invalid-input error if the gate has choices and answer is not one.
func (r *run) answer(answer string) error {
	r.mu.Lock()
	ch := r.gateCh
	state := r.public.State
	var choices []string
	if r.public.PendingGate != nil {
		choices = r.public.PendingGate.Choices
	}
	r.mu.Unlock()

	if state != types.RunWaiting || ch == nil {
		return engineerr.InvalidState("run %q: no gate pending (state: %s)", r.id, state)
	}
	if choices != nil {
		valid := false
		for _, c := range choices {
			valid = valid || c == answer
		}
		if !valid {
			return engineerr.InvalidInput("run %q: answer %q is not one of %v", r.id, answer, choices)
		}
	}
	ch <- answer
	return nil
}

// Runner drives workflow executions: starting runs, routing ANSWER_GATE
// to the right pending gate, and cancellation.
type Runner struct {
	mu   sync.Mutex
	runs map[string]*run
}

// NewRunner creates an empty Runner.
func NewRunner() *Runner {
	return &Runner{runs: make(map[string]*run)}
}

// StartOptions configures one workflow execution.
type StartOptions struct {
	SessionID string
	Input     any
	Params    map[string]any
	Budget    *types.Budget
	Usage     *types.ResourceUsage
	Trace     *types.Trace
}

// Start instantiates a WorkflowRun for the workflow registered under
// workflowID, registers it, and begins executing its body on its own
// goroutine. Returns immediately with the run in "pending" (about to
// transition to "running"); callers that want synchronous completion call
// Wait on the returned run id.
func (rn *Runner) Start(parent context.Context, session SessionResolver, workflowID string, opts StartOptions) (*types.WorkflowRun, error) {
	wf, ok := Get(workflowID)
	if !ok {
		return nil, engineerr.NotFound("workflow %q not registered", workflowID)
	}

	runID := uuid.NewString()
	goCtx, cancel := context.WithCancel(parent)

	r := &run{
		id:         runID,
		workflowID: workflowID,
		public: &types.WorkflowRun{
			RunID:      runID,
			WorkflowID: workflowID,
			State:      types.RunPending,
			StartedAt:  time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	rn.mu.Lock()
	rn.runs[runID] = r
	rn.mu.Unlock()

	wctx := &Context{
		Input:     opts.Input,
		Params:    opts.Params,
		state:     make(map[string]any),
		goCtx:     goCtx,
		session:   session,
		run:       r,
		runner:    rn,
		budget:    opts.Budget,
		usage:     opts.Usage,
		trace:     opts.Trace,
		sessionID: opts.SessionID,
	}
	if wctx.Params == nil {
		wctx.Params = make(map[string]any)
	}

	go rn.execute(goCtx, r, wf, wctx)

	return r.public, nil
}

func (rn *Runner) execute(ctx context.Context, r *run, wf *Workflow, wctx *Context) {
	r.setState(types.RunRunning)
	r.emit(types.EventWorkflowStarted, map[string]any{"input": wctx.Input})

	result, err := wf.Body(wctx)

	now := time.Now()
	r.mu.Lock()
	r.public.EndedAt = &now
	r.result = result
	r.err = err
	switch {
	case ctx.Err() != nil:
		r.public.State = types.RunCancelled
	case err != nil:
		r.public.State = types.RunFailed
		r.public.Error = err.Error()
	default:
		r.public.State = types.RunCompleted
		r.public.Result = result
	}
	state := r.public.State
	r.mu.Unlock()

	switch state {
	case types.RunCancelled:
		r.emit(types.EventWorkflowCancelled, nil)
	case types.RunFailed:
		logging.Warn().Err(err).Str("runId", r.id).Str("workflowId", r.workflowID).Msg("workflow run failed")
		r.emit(types.EventWorkflowFailed, map[string]any{"error": err.Error()})
	default:
		r.emit(types.EventWorkflowCompleted, map[string]any{"result": result})
	}

	close(r.done)
}

// Get returns the current snapshot of a run.
func (rn *Runner) Get(runID string) (types.WorkflowRun, bool) {
	rn.mu.Lock()
	r, ok := rn.runs[runID]
	rn.mu.Unlock()
	if !ok {
		return types.WorkflowRun{}, false
	}
	return r.Snapshot(), true
}

// AnswerGate delivers answer to runID's pending gate.
func (rn *Runner) AnswerGate(runID, answer string) error {
	rn.mu.Lock()
	r, ok := rn.runs[runID]
	rn.mu.Unlock()
	if !ok {
		return engineerr.NotFound("workflow run %q not found", runID)
	}
	return r.answer(answer)
}

// Cancel signals cooperative cancellation of a run. A body blocked in
// Context.Run or Context.Gate observes this the next time it checks its
// context.
func (rn *Runner) Cancel(runID string) error {
	rn.mu.Lock()
	r, ok := rn.runs[runID]
	rn.mu.Unlock()
	if !ok {
		return engineerr.NotFound("workflow run %q not found", runID)
	}
	r.cancel()
	return nil
}

// Wait blocks until runID's body returns (or ctx is done) and reports its
// result.
func (rn *Runner) Wait(ctx context.Context, runID string) (any, error) {
	rn.mu.Lock()
	r, ok := rn.runs[runID]
	rn.mu.Unlock()
	if !ok {
		return nil, engineerr.NotFound("workflow run %q not found", runID)
	}
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
