package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

func TestNewSessionAutoCreatesIdentityNode(t *testing.T) {
	s := New("s1", "")
	n, ok := s.GetNode(node.DefaultIdentityNodeID)
	require.True(t, ok)
	assert.Equal(t, types.VariantIdentity, n.Variant())
}

func TestRegisterNodeRejectsDuplicateName(t *testing.T) {
	s := New("s1", "")
	n1 := node.NewBashNode("b", "", "", nil)
	require.NoError(t, s.RegisterNode(n1, "b"))

	n2 := node.NewBashNode("b2", "", "", nil)
	err := s.RegisterNode(n2, "b")
	assert.Error(t, err)
}

func TestRegisterNodeRejectsInvalidName(t *testing.T) {
	s := New("s1", "")
	n := node.NewBashNode("b", "", "", nil)
	err := s.RegisterNode(n, "has space")
	assert.Error(t, err)
}

func TestExecuteNodeAutocleansEphemeralNode(t *testing.T) {
	s := New("s1", "")
	b := node.NewBashNode("b", "", "", nil)
	require.NoError(t, s.RegisterNode(b, "b"))

	out, err := s.ExecuteNode(context.Background(), "b", types.ExecutionContext{Input: "echo hi"})
	require.NoError(t, err)
	res := out.(node.BashResult)
	assert.True(t, res.Success)

	_, ok := s.GetNode("b")
	assert.False(t, ok, "ephemeral node must be deregistered after execution")
}

func TestExecuteNodeAutocleansOnFailureToo(t *testing.T) {
	s := New("s1", "")
	b := node.NewBashNode("b", "", "", nil)
	require.NoError(t, s.RegisterNode(b, "b"))

	_, err := s.ExecuteNode(context.Background(), "b", types.ExecutionContext{Input: "exit 3"})
	require.NoError(t, err) // bash node reports failure in BashResult, not as a Go error

	_, ok := s.GetNode("b")
	assert.False(t, ok)
}

func TestExecuteNodeKeepsPersistentNodeRegistered(t *testing.T) {
	s := New("s1", "")
	fn := node.NewFunctionNode("f", func(ctx context.Context, ectx types.ExecutionContext) (any, error) {
		return ectx.Input, nil
	}, true)
	require.NoError(t, s.RegisterNode(fn, "f"))

	_, err := s.ExecuteNode(context.Background(), "f", types.ExecutionContext{Input: "x"})
	require.NoError(t, err)

	_, ok := s.GetNode("f")
	assert.True(t, ok)
}

func TestExecuteNodeNotFound(t *testing.T) {
	s := New("s1", "")
	_, err := s.ExecuteNode(context.Background(), "missing", types.ExecutionContext{})
	assert.Error(t, err)
}

func TestGraphCatalogueCRUD(t *testing.T) {
	s := New("s1", "")
	g := &types.Graph{ID: "g1", Steps: []types.Step{{ID: "step1", NodeRef: "identity"}}}
	require.NoError(t, s.CreateGraph(g))

	got, ok := s.GetGraph("g1")
	require.True(t, ok)
	assert.Equal(t, "g1", got.ID)

	assert.Contains(t, s.ListGraphIDs(), "g1")
	assert.True(t, s.DeleteGraph("g1"))
	_, ok = s.GetGraph("g1")
	assert.False(t, ok)
}

func TestBindWorkflowCatalogue(t *testing.T) {
	s := New("s1", "")
	require.NoError(t, s.BindWorkflow("greet"))
	assert.True(t, s.HasWorkflow("greet"))
	assert.Contains(t, s.ListWorkflowIDs(), "greet")
	assert.Error(t, s.BindWorkflow("greet"))
}

func TestCreateGraphRejectsDuplicate(t *testing.T) {
	s := New("s1", "")
	g := &types.Graph{ID: "g1"}
	require.NoError(t, s.CreateGraph(g))
	assert.Error(t, s.CreateGraph(&types.Graph{ID: "g1"}))
}

type fakeProxy struct {
	url     string
	stopped bool
}

func (f *fakeProxy) URL() string { return f.url }
func (f *fakeProxy) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

func TestCloseStopsPersistentNodesAndProxies(t *testing.T) {
	s := New("s1", "")
	fn := node.NewFunctionNode("f", func(ctx context.Context, ectx types.ExecutionContext) (any, error) {
		return nil, nil
	}, true)
	require.NoError(t, s.RegisterNode(fn, "f"))

	proxy := &fakeProxy{url: "http://127.0.0.1:9"}
	s.RegisterProxy("f", proxy)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, types.NodeStopped, fn.State())
	assert.True(t, proxy.stopped)
}
