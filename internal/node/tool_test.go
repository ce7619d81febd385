package node

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/pkg/types"
)

func TestNamespaceAndSplitRoundTrip(t *testing.T) {
	prefixed := Namespace("fs-mcp", "read_file")
	assert.Equal(t, "fs-mcp.read_file", prefixed)

	owner, name, ok := SplitNamespace(prefixed)
	require.True(t, ok)
	assert.Equal(t, "fs-mcp", owner)
	assert.Equal(t, "read_file", name)
}

func TestSplitNamespaceRejectsUnprefixed(t *testing.T) {
	_, _, ok := SplitNamespace("bareword")
	assert.False(t, ok)
}

func TestBuildCatalogNamespacesEachTool(t *testing.T) {
	b := NewBashNode("bash", "", "", nil)
	catalog := BuildCatalog(b)

	require.Len(t, catalog, 1)
	assert.Equal(t, "bash.bash", catalog[0].Name)
	assert.Equal(t, "bash", catalog[0].OwnerNodeID)
}

func TestExecutorDispatchesToOwner(t *testing.T) {
	b := NewBashNode("bash", "", "", nil)
	exec := NewExecutor(map[string]ToolCapable{"bash": b})

	out, err := exec(context.Background(), "bash.bash", map[string]any{"command": "echo hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
}

func TestExecutorReturnsDiagnosticForUnknownTool(t *testing.T) {
	exec := NewExecutor(map[string]ToolCapable{})

	out, err := exec(context.Background(), "nope.nope", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "unknown tool")
}

func TestExecutorReturnsDiagnosticForMissingPrefix(t *testing.T) {
	exec := NewExecutor(map[string]ToolCapable{})

	out, err := exec(context.Background(), "noprefix", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "missing owner prefix")
}

func TestTruncateAddsMarkerBeyondLimit(t *testing.T) {
	big := strings.Repeat("x", MaxToolResultBytes+100)
	out := truncate(big)
	assert.Contains(t, out, "truncated")
	assert.Contains(t, out, "original length")
}
