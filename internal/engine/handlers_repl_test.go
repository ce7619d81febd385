package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

func newTestEngineWithHistory(t *testing.T) *Engine {
	t.Helper()
	return New(types.Config{HistoryDir: t.TempDir()})
}

func echoFunctionNode(id string) *node.FunctionNode {
	return node.NewFunctionNode(id, func(_ context.Context, ectx types.ExecutionContext) (any, error) {
		return ectx.Input, nil
	}, true)
}

// TestReplQueryFiltersHistoryWithJq runs a function node a few times so
// its history accumulates entries, then checks a jq filter can pull a
// single field back out across all of them.
func TestReplQueryFiltersHistoryWithJq(t *testing.T) {
	e := newTestEngineWithHistory(t)
	ctx := context.Background()
	s, ok := e.Sessions.Resolve("")
	require.True(t, ok)

	require.NoError(t, s.RegisterNode(echoFunctionNode("counter"), "counter"))

	for i := 0; i < 3; i++ {
		result := e.Dispatch(ctx, types.Command{Type: types.ExecuteInput, Params: map[string]any{
			"id":    "counter",
			"input": "ping",
		}})
		require.True(t, result.Success, result.Message)
	}

	queried := e.Dispatch(ctx, types.Command{Type: types.ReplQuery, Params: map[string]any{
		"id":     "counter",
		"filter": ".[].op",
	}})
	require.True(t, queried.Success, queried.Message)
	ops, ok := queried.Data.([]any)
	require.True(t, ok, "expected []any, got %T", queried.Data)
	assert.Len(t, ops, 3)
}

func TestReplQueryRejectsMalformedFilter(t *testing.T) {
	e := newTestEngineWithHistory(t)
	ctx := context.Background()
	s, ok := e.Sessions.Resolve("")
	require.True(t, ok)
	require.NoError(t, s.RegisterNode(echoFunctionNode("counter"), "counter"))

	result := e.Dispatch(ctx, types.Command{Type: types.ReplQuery, Params: map[string]any{
		"id":     "counter",
		"filter": "not a valid jq filter (((",
	}})
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrInvalidInput, result.Error)
}

func TestReplQueryOnNodeWithNoHistoryReturnsEmpty(t *testing.T) {
	e := newTestEngineWithHistory(t)
	ctx := context.Background()
	s, ok := e.Sessions.Resolve("")
	require.True(t, ok)
	require.NoError(t, s.RegisterNode(echoFunctionNode("idle"), "idle"))

	result := e.Dispatch(ctx, types.Command{Type: types.ReplQuery, Params: map[string]any{
		"id":     "idle",
		"filter": ".[]",
	}})
	require.True(t, result.Success, result.Message)
	ops, ok := result.Data.([]any)
	require.True(t, ok)
	assert.Empty(t, ops)
}
