package engine

import (
	"context"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/workflow"
	"github.com/agentfleet/conductor/pkg/types"
)

// WorkflowHandler: CREATE_WORKFLOW, EXECUTE_WORKFLOW, LIST_WORKFLOWS,
// GET_WORKFLOW_RUN, ANSWER_GATE, CANCEL_WORKFLOW.

// handleCreateWorkflow binds a statically-registered internal/workflow
// id to a session, matching spec.md's CREATE_WORKFLOW command but,
// per the REDESIGN FLAGS guidance carried into SPEC_FULL.md §4.12, the
// workflow body itself is supplied by process-startup registration
// (internal/workflow.Register), not by this command.
func handleCreateWorkflow(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "workflowId")
	if err != nil {
		return nil, err
	}
	if _, ok := workflow.Get(id); !ok {
		return nil, engineerr.NotFound("workflow %q is not registered", id)
	}
	if err := s.BindWorkflow(id); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleListWorkflows(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	return s.ListWorkflowIDs(), nil
}

func handleExecuteWorkflow(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "workflowId")
	if err != nil {
		return nil, err
	}
	if !s.HasWorkflow(id) {
		return nil, engineerr.NotFound("workflow %q not bound to session %q", id, s.ID)
	}

	run, err := e.Workflows.Start(ctx, s, id, workflow.StartOptions{
		SessionID: s.ID,
		Input:     params["input"],
		Params:    optionalStringMap(params, "params"),
		Budget:    decodeBudget(optionalStringMap(params, "budget")),
		Usage:     types.NewUsage(nil),
	})
	if err != nil {
		return nil, err
	}
	if err := s.RegisterWorkflowRun(run); err != nil {
		return nil, err
	}

	if optionalBool(params, "await", true) {
		result, err := e.Workflows.Wait(ctx, run.RunID)
		if err != nil {
			return nil, err
		}
		snap, _ := e.Workflows.Get(run.RunID)
		return map[string]any{"runId": run.RunID, "state": snap.State, "result": result}, nil
	}
	return map[string]any{"runId": run.RunID, "state": run.State}, nil
}

func handleGetWorkflowRun(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	runID, err := requireString(params, "runId")
	if err != nil {
		return nil, err
	}
	snap, ok := e.Workflows.Get(runID)
	if !ok {
		return nil, engineerr.NotFound("workflow run %q not found", runID)
	}
	return snap, nil
}

func handleAnswerGate(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	runID, err := requireString(params, "runId")
	if err != nil {
		return nil, err
	}
	answer, err := requireString(params, "answer")
	if err != nil {
		return nil, err
	}
	return nil, e.Workflows.AnswerGate(runID, answer)
}

func handleCancelWorkflow(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	runID, err := requireString(params, "runId")
	if err != nil {
		return nil, err
	}
	return nil, e.Workflows.Cancel(runID)
}
