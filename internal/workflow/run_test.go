package workflow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

type fakeSession struct {
	nodes  map[string]node.Node
	graphs map[string]*types.Graph
}

func (f *fakeSession) ExecuteNode(ctx context.Context, name string, ectx types.ExecutionContext) (any, error) {
	n, ok := f.nodes[name]
	if !ok {
		return nil, fmt.Errorf("node %q not found", name)
	}
	return n.Execute(ctx, ectx)
}

func (f *fakeSession) GetGraph(id string) (*types.Graph, bool) {
	g, ok := f.graphs[id]
	return g, ok
}

func (f *fakeSession) GetNode(name string) (node.Node, bool) {
	n, ok := f.nodes[name]
	return n, ok
}

func upperNode(id string) *node.FunctionNode {
	return node.NewFunctionNode(id, func(ctx context.Context, ectx types.ExecutionContext) (any, error) {
		return strings.ToUpper(fmt.Sprintf("%v", ectx.Input)), nil
	}, true)
}

func waitForState(t *testing.T, rn *Runner, runID string, want types.RunState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := rn.Get(runID)
		require.True(t, ok)
		if snap.State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("run %q never reached state %q", runID, want)
}

func TestRunnerExecutesSimpleWorkflow(t *testing.T) {
	Register("test.simple", func(c *Context) (any, error) {
		result, err := c.Run("upper", c.Input)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("Processed: %v", result["output"]), nil
	})

	session := &fakeSession{nodes: map[string]node.Node{"upper": upperNode("upper")}}
	rn := NewRunner()
	r, err := rn.Start(context.Background(), session, "test.simple", StartOptions{Input: "hello"})
	require.NoError(t, err)

	result, err := rn.Wait(context.Background(), r.RunID)
	require.NoError(t, err)
	assert.Equal(t, "Processed: HELLO", result)

	snap, ok := rn.Get(r.RunID)
	require.True(t, ok)
	assert.Equal(t, types.RunCompleted, snap.State)
}

func TestRunnerGateSuspendsAndResumes(t *testing.T) {
	Register("test.gate", func(c *Context) (any, error) {
		answer, err := c.Gate("Approve?", []string{"yes", "no"}, 0)
		if err != nil {
			return nil, err
		}
		return answer, nil
	})

	session := &fakeSession{}
	rn := NewRunner()
	r, err := rn.Start(context.Background(), session, "test.gate", StartOptions{})
	require.NoError(t, err)

	waitForState(t, rn, r.RunID, types.RunWaiting)

	snap, _ := rn.Get(r.RunID)
	require.NotNil(t, snap.PendingGate)
	assert.Equal(t, "Approve?", snap.PendingGate.Prompt)
	assert.Equal(t, []string{"yes", "no"}, snap.PendingGate.Choices)

	require.NoError(t, rn.AnswerGate(r.RunID, "yes"))

	result, err := rn.Wait(context.Background(), r.RunID)
	require.NoError(t, err)
	assert.Equal(t, "yes", result)
}

func TestAnswerGateFailsWhenNotWaiting(t *testing.T) {
	Register("test.nogate", func(c *Context) (any, error) {
		return "done", nil
	})

	session := &fakeSession{}
	rn := NewRunner()
	r, err := rn.Start(context.Background(), session, "test.nogate", StartOptions{})
	require.NoError(t, err)

	_, err = rn.Wait(context.Background(), r.RunID)
	require.NoError(t, err)

	err = rn.AnswerGate(r.RunID, "yes")
	assert.Error(t, err)
}

func TestCancelDuringGateEndsRunCancelled(t *testing.T) {
	Register("test.cancelgate", func(c *Context) (any, error) {
		_, err := c.Gate("Approve?", nil, 0)
		return nil, err
	})

	session := &fakeSession{}
	rn := NewRunner()
	r, err := rn.Start(context.Background(), session, "test.cancelgate", StartOptions{})
	require.NoError(t, err)

	waitForState(t, rn, r.RunID, types.RunWaiting)
	require.NoError(t, rn.Cancel(r.RunID))

	_, err = rn.Wait(context.Background(), r.RunID)
	assert.Error(t, err)

	snap, _ := rn.Get(r.RunID)
	assert.Equal(t, types.RunCancelled, snap.State)
}

func TestRunnerStartUnknownWorkflowErrors(t *testing.T) {
	rn := NewRunner()
	_, err := rn.Start(context.Background(), &fakeSession{}, "does.not.exist", StartOptions{})
	assert.Error(t, err)
}

func TestContextRunExecutesGraph(t *testing.T) {
	Register("test.graphrun", func(c *Context) (any, error) {
		return c.Run("g1", "in")
	})

	g := &types.Graph{ID: "g1", Steps: []types.Step{
		{ID: "s1", NodeRef: "upper", Input: types.InputSpec{Kind: types.InputLiteral, Literal: "abc"}},
	}}
	session := &fakeSession{
		nodes:  map[string]node.Node{"upper": upperNode("upper")},
		graphs: map[string]*types.Graph{"g1": g},
	}
	rn := NewRunner()
	r, err := rn.Start(context.Background(), session, "test.graphrun", StartOptions{})
	require.NoError(t, err)

	result, err := rn.Wait(context.Background(), r.RunID)
	require.NoError(t, err)
	m := result.(map[string]any)
	results := m["results"].(map[string]types.TaskResult)
	assert.Equal(t, types.TaskCompleted, results["s1"].Status)
	assert.Equal(t, "ABC", results["s1"].Output)
}

func TestContextRunExecutesNestedWorkflow(t *testing.T) {
	Register("test.child", func(c *Context) (any, error) {
		return c.Run("upper", c.Input)
	})
	Register("test.parent", func(c *Context) (any, error) {
		return c.Run("test.child", "abc")
	})

	session := &fakeSession{nodes: map[string]node.Node{"upper": upperNode("upper")}}
	rn := NewRunner()
	r, err := rn.Start(context.Background(), session, "test.parent", StartOptions{})
	require.NoError(t, err)

	result, err := rn.Wait(context.Background(), r.RunID)
	require.NoError(t, err)
	m := result.(map[string]any)
	inner := m["output"].(map[string]any)
	assert.Equal(t, "ABC", inner["output"])
}

func TestContextRunNestedWorkflowInheritsCancellation(t *testing.T) {
	Register("test.child.cancel", func(c *Context) (any, error) {
		<-c.goCtx.Done()
		return nil, c.goCtx.Err()
	})
	Register("test.parent.cancel", func(c *Context) (any, error) {
		return c.Run("test.child.cancel", nil)
	})

	session := &fakeSession{}
	rn := NewRunner()
	r, err := rn.Start(context.Background(), session, "test.parent.cancel", StartOptions{})
	require.NoError(t, err)

	waitForState(t, rn, r.RunID, types.RunRunning)
	require.NoError(t, rn.Cancel(r.RunID))

	_, err = rn.Wait(context.Background(), r.RunID)
	assert.Error(t, err)
}

func TestStateSetAndGet(t *testing.T) {
	c := &Context{state: make(map[string]any)}
	c.StateSet("count", 1)
	v, ok := c.StateGet("count")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, map[string]any{"count": 1}, c.State())
}
