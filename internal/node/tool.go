package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentfleet/conductor/pkg/types"
)

// MaxToolResultBytes bounds a single tool result; results beyond this
// are truncated with a marker noting the original length, per the tool
// protocol's truncation contract.
const MaxToolResultBytes = 16 * 1024

// ToolExecutor dispatches a namespaced tool call. Unknown tool names
// yield a diagnostic string, never an exception, so a calling LLM can
// recover mid-conversation instead of the round trip hard-failing.
type ToolExecutor func(ctx context.Context, prefixedName string, args map[string]any) (string, error)

// BuildCatalog composes the tool catalog a chat node exposes from a set
// of tool-capable nodes, namespacing each tool by its owner node's id
// ("bash.bash", "fs-mcp.read_file") and resolving collisions by
// preferring the earliest-registered owner and skipping later
// duplicates under the same prefixed name.
func BuildCatalog(nodes ...ToolCapable) []types.ToolDefinition {
	seen := make(map[string]bool)
	var catalog []types.ToolDefinition
	for _, n := range nodes {
		for _, def := range n.ListTools() {
			prefixed := def
			prefixed.Name = Namespace(def.OwnerNodeID, def.Name)
			if seen[prefixed.Name] {
				continue
			}
			seen[prefixed.Name] = true
			catalog = append(catalog, prefixed)
		}
	}
	return catalog
}

// Namespace joins an owner node id and a bare tool name the way a chat
// node's catalog prefixes every contributed tool.
func Namespace(ownerNodeID, name string) string {
	return ownerNodeID + "." + name
}

// SplitNamespace reverses Namespace, splitting on the first '.'.
func SplitNamespace(prefixed string) (owner, name string, ok bool) {
	idx := strings.Index(prefixed, ".")
	if idx < 0 {
		return "", "", false
	}
	return prefixed[:idx], prefixed[idx+1:], true
}

// NewExecutor builds a ToolExecutor that dispatches a prefixed call to
// the owning tool-capable node, truncating oversized results.
func NewExecutor(nodesByID map[string]ToolCapable) ToolExecutor {
	return func(ctx context.Context, prefixedName string, args map[string]any) (string, error) {
		owner, name, ok := SplitNamespace(prefixedName)
		if !ok {
			return fmt.Sprintf("unknown tool %q: missing owner prefix", prefixedName), nil
		}
		tc, ok := nodesByID[owner]
		if !ok {
			return fmt.Sprintf("unknown tool %q: no node %q", prefixedName, owner), nil
		}

		result, err := tc.CallTool(ctx, name, args)
		if err != nil {
			return fmt.Sprintf("tool %q failed: %s", prefixedName, err.Error()), nil
		}
		return truncate(result), nil
	}
}

func truncate(s string) string {
	if len(s) <= MaxToolResultBytes {
		return s
	}
	return fmt.Sprintf("%s\n...[truncated, original length %d bytes]", s[:MaxToolResultBytes], len(s))
}
