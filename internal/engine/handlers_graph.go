package engine

import (
	"context"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/graph"
	"github.com/agentfleet/conductor/pkg/types"
)

// GraphHandler: CREATE_GRAPH, DELETE_GRAPH, LIST_GRAPHS, EXECUTE_GRAPH.
// session.Session satisfies internal/graph's NodeResolver (GetNode)
// structurally, so graph.Validate/Executor.Run take *session.Session
// directly without graph importing session.

func handleCreateGraph(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	g, err := decodeGraph(params)
	if err != nil {
		return nil, err
	}
	if err := graph.Validate(g, s); err != nil {
		return nil, err
	}
	if err := s.CreateGraph(g); err != nil {
		return nil, err
	}
	return g, nil
}

func handleDeleteGraph(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	if !s.DeleteGraph(id) {
		return nil, engineerr.NotFound("graph %q not found", id)
	}
	return nil, nil
}

func handleListGraphs(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	return s.ListGraphIDs(), nil
}

func handleExecuteGraph(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	g, ok := s.GetGraph(id)
	if !ok {
		return nil, engineerr.NotFound("graph %q not found", id)
	}

	ectx := types.ExecutionContext{
		SessionID: s.ID,
		Budget:    decodeBudget(optionalStringMap(params, "budget")),
		Usage:     types.NewUsage(nil),
	}
	if recordTrace := optionalBool(params, "trace", false); recordTrace {
		ectx.Trace = types.NewTrace()
	}

	exec := graph.NewExecutor(optionalInt(params, "maxConcurrency", graph.DefaultMaxConcurrency))
	results, err := exec.Run(ctx, g, s, ectx)
	if err != nil {
		return nil, err
	}
	if ectx.Trace != nil {
		return map[string]any{"results": results, "trace": ectx.Trace.Explain()}, nil
	}
	return results, nil
}

// decodeGraph builds a *types.Graph from CREATE_GRAPH params: {id,
// steps: [{id, nodeRef, dependsOn, input: {kind, literal|template}}]}.
// Function-kind InputSpecs aren't expressible over the wire and so
// aren't supported here.
func decodeGraph(params map[string]any) (*types.Graph, error) {
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	rawSteps, ok := params["steps"].([]any)
	if !ok || len(rawSteps) == 0 {
		return nil, invalidInput("param %q must be a non-empty array", "steps")
	}

	steps := make([]types.Step, 0, len(rawSteps))
	for i, raw := range rawSteps {
		stepMap, ok := raw.(map[string]any)
		if !ok {
			return nil, invalidInput("steps[%d] must be an object", i)
		}
		stepID, err := requireString(stepMap, "id")
		if err != nil {
			return nil, err
		}
		nodeRef, err := requireString(stepMap, "nodeRef")
		if err != nil {
			return nil, err
		}
		steps = append(steps, types.Step{
			ID:        stepID,
			NodeRef:   nodeRef,
			DependsOn: optionalStringSlice(stepMap, "dependsOn"),
			Input:     decodeInputSpec(optionalStringMap(stepMap, "input")),
		})
	}
	return &types.Graph{ID: id, Steps: steps}, nil
}

func decodeInputSpec(spec map[string]any) types.InputSpec {
	switch optionalString(spec, "kind", "literal") {
	case "template":
		return types.InputSpec{Kind: types.InputTemplate, Template: optionalString(spec, "template", "")}
	default:
		return types.InputSpec{Kind: types.InputLiteral, Literal: spec["literal"]}
	}
}

func decodeBudget(spec map[string]any) *types.Budget {
	if spec == nil {
		return nil
	}
	return &types.Budget{
		MaxTokens:      int64(optionalInt(spec, "maxTokens", 0)),
		MaxSteps:       int64(optionalInt(spec, "maxSteps", 0)),
		MaxAPICalls:    int64(optionalInt(spec, "maxApiCalls", 0)),
		MaxTimeSeconds: float64(optionalInt(spec, "maxTimeSeconds", 0)),
		MaxCostDollars: float64(optionalInt(spec, "maxCostDollars", 0)),
	}
}
