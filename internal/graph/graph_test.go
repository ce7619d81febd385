package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

type fakeResolver map[string]node.Node

func (f fakeResolver) GetNode(name string) (node.Node, bool) {
	n, ok := f[name]
	return n, ok
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	g := &types.Graph{ID: "g1", Steps: []types.Step{
		{ID: "a", NodeRef: "identity", DependsOn: []string{"ghost"}},
	}}
	err := Validate(g, nil)
	assert.Error(t, err)
}

func TestValidateRejectsCycle(t *testing.T) {
	g := &types.Graph{ID: "g1", Steps: []types.Step{
		{ID: "a", NodeRef: "identity", DependsOn: []string{"b"}},
		{ID: "b", NodeRef: "identity", DependsOn: []string{"a"}},
	}}
	err := Validate(g, nil)
	assert.Error(t, err)
}

func TestValidateRejectsUnresolvedNodeRef(t *testing.T) {
	g := &types.Graph{ID: "g1", Steps: []types.Step{
		{ID: "a", NodeRef: "missing"},
	}}
	resolver := fakeResolver{"identity": node.NewIdentityNode("identity")}
	err := Validate(g, resolver)
	assert.Error(t, err)
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	g := &types.Graph{ID: "g1", Steps: []types.Step{
		{ID: "a", NodeRef: "identity"},
		{ID: "b", NodeRef: "identity", DependsOn: []string{"a"}},
	}}
	resolver := fakeResolver{"identity": node.NewIdentityNode("identity")}
	require.NoError(t, Validate(g, resolver))
}

func TestLevelsOrdersByDependencyWaves(t *testing.T) {
	g := &types.Graph{ID: "g1", Steps: []types.Step{
		{ID: "a", NodeRef: "identity"},
		{ID: "b", NodeRef: "identity", DependsOn: []string{"a"}},
		{ID: "c", NodeRef: "identity", DependsOn: []string{"a"}},
		{ID: "d", NodeRef: "identity", DependsOn: []string{"b", "c"}},
	}}
	waves, err := levels(g)
	require.NoError(t, err)
	require.Len(t, waves, 3)
	assert.ElementsMatch(t, []string{"a"}, waves[0])
	assert.ElementsMatch(t, []string{"b", "c"}, waves[1])
	assert.ElementsMatch(t, []string{"d"}, waves[2])
}

func TestLevelsIsDeterministicForTies(t *testing.T) {
	g := &types.Graph{ID: "g1", Steps: []types.Step{
		{ID: "x", NodeRef: "identity"},
		{ID: "y", NodeRef: "identity"},
		{ID: "z", NodeRef: "identity"},
	}}
	waves, err := levels(g)
	require.NoError(t, err)
	require.Len(t, waves, 1)
	assert.Equal(t, []string{"x", "y", "z"}, waves[0])
}

func TestExecutionOrderFlattensWaves(t *testing.T) {
	g := &types.Graph{ID: "g1", Steps: []types.Step{
		{ID: "a", NodeRef: "identity"},
		{ID: "b", NodeRef: "identity", DependsOn: []string{"a"}},
	}}
	assert.Equal(t, []string{"a", "b"}, ExecutionOrder(g))
}
