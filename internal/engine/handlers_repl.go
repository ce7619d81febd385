package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/graph"
	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

// ReplCommandHandler: read-only introspection commands, grounded on
// frontends/cli/repl/commands.py's show/validate/dry/read handlers.
// Unlike every other handler domain these never mutate session state.

func handleReplShow(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	g, err := requireGraph(e, params)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "graph %q (%d steps)\n", g.ID, len(g.Steps))
	for _, st := range g.Steps {
		deps := "none"
		if len(st.DependsOn) > 0 {
			deps = strings.Join(st.DependsOn, ", ")
		}
		fmt.Fprintf(&b, "  [%s] -> node %q (depends on: %s)\n", st.ID, st.NodeRef, deps)
	}
	return b.String(), nil
}

func handleReplValidate(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	g, err := requireGraph(e, params)
	if err != nil {
		return nil, err
	}
	if err := graph.Validate(g, s); err != nil {
		return map[string]any{"valid": false, "error": err.Error()}, nil
	}
	return map[string]any{"valid": true}, nil
}

func handleReplDry(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	g, err := requireGraph(e, params)
	if err != nil {
		return nil, err
	}
	if err := graph.Validate(g, s); err != nil {
		return nil, err
	}
	return graph.ExecutionOrder(g), nil
}

func handleReplList(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"nodes":     s.ListNodeNames(),
		"graphs":    s.ListGraphIDs(),
		"workflows": s.ListWorkflowIDs(),
	}, nil
}

func handleReplRead(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	n, ok := s.GetNode(id)
	if !ok {
		return nil, engineerr.NotFound("node %q not found", id)
	}
	term, ok := n.(*node.TerminalNode)
	if !ok {
		return "", invalidInput("node %q does not support read (only terminal nodes do)", id)
	}
	return string(term.Buffer()), nil
}

// handleReplQuery runs a jq filter over a node's recorded history,
// letting an operator slice a long-running trace down to the fields
// they care about instead of reading the whole ndjson log.
func handleReplQuery(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	filter, err := requireString(params, "filter")
	if err != nil {
		return nil, err
	}

	if e.History == nil {
		return []any{}, nil
	}
	entries, err := e.History.Read(s.ID, id)
	if err != nil {
		return nil, engineerr.BackendError(err)
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}

	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, invalidInput("query: invalid jq filter: %v", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, invalidInput("query: invalid jq filter: %v", err)
	}

	// entries is []types.HistoryEntry; gojq only runs over
	// interface{}-shaped data, so round-trip it through JSON the same
	// way the struct was serialized to ndjson in the first place.
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, engineerr.BackendError(err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, engineerr.BackendError(err)
	}

	var results []any
	iter := code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if queryErr, ok := v.(error); ok {
			return nil, invalidInput("query: %v", queryErr)
		}
		results = append(results, v)
	}
	return results, nil
}

func requireGraph(e *Engine, params map[string]any) (*types.Graph, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "graphId")
	if err != nil {
		return nil, err
	}
	g, ok := s.GetGraph(id)
	if !ok {
		return nil, engineerr.NotFound("graph %q not found", id)
	}
	return g, nil
}
