package node

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/agentfleet/conductor/pkg/types"
)

// BashResult is the structured return value of a bash node execution.
type BashResult struct {
	Success     bool   `json:"success"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	ExitCode    int    `json:"exitCode"`
	Command     string `json:"command"`
	Error       string `json:"error,omitempty"`
	Interrupted bool   `json:"interrupted"`
	DurationMs  int64  `json:"durationMs"`
}

// BashNode runs a single shell command per Execute call via os/exec,
// capturing stdout/stderr separately. Always ephemeral: one node,
// one command, then deregistered by the caller.
type BashNode struct {
	Meta

	shell string // defaults to "/bin/sh" if empty
	dir   string
	env   []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewBashNode(id string, shell, dir string, env []string) *BashNode {
	n := &BashNode{
		Meta:  NewMeta(id, types.VariantBash),
		shell: shell,
		dir:   dir,
		env:   env,
	}
	if n.shell == "" {
		n.shell = "/bin/sh"
	}
	n.setState(types.NodeReady)
	return n
}

// Execute expects ctx.Input to be the command string. ctx.Timeout, if
// set, bounds execution strictly — the subprocess is killed on expiry
// and the result reports interrupted=true rather than returning a bare
// timeout error, so callers still get partial stdout/stderr.
func (n *BashNode) Execute(ctx context.Context, ectx types.ExecutionContext) (any, error) {
	command, _ := ectx.Input.(string)

	runCtx := ctx
	var cancel context.CancelFunc
	if ectx.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, ectx.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	n.mu.Lock()
	n.setState(types.NodeBusy)
	n.cancel = cancel
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.cancel = nil
		if n.State() != types.NodeStopped {
			n.setState(types.NodeReady)
		}
		n.mu.Unlock()
		cancel()
	}()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, n.shell, "-c", command)
	if n.dir != "" {
		cmd.Dir = n.dir
	}
	if len(n.env) > 0 {
		cmd.Env = n.env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	result := BashResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Command:    command,
		DurationMs: duration.Milliseconds(),
	}

	if runCtx.Err() == context.DeadlineExceeded || runCtx.Err() == context.Canceled {
		result.Interrupted = true
		result.Error = runCtx.Err().Error()
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		result.Error = err.Error()
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result, nil
	}

	result.Success = true
	result.ExitCode = 0
	return result, nil
}

// Persistent always reports false: a bash node runs one command and is
// meant to be deregistered by the caller once Execute returns.
func (n *BashNode) Persistent() bool { return false }

func (n *BashNode) Interrupt() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
	}
	return nil
}

func (n *BashNode) Stop(ctx context.Context) error {
	n.Interrupt()
	n.mu.Lock()
	n.setState(types.NodeStopped)
	n.mu.Unlock()
	return nil
}

// ListTools exposes a single "bash" tool so a chat node's catalog can
// dispatch shell commands through the same node a human operator can
// also drive directly.
func (n *BashNode) ListTools() []types.ToolDefinition {
	return []types.ToolDefinition{{
		Name:        "bash",
		Description: "Run a shell command and return its stdout, stderr, and exit code.",
		Parameters: types.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string"},
			},
			"required": []string{"command"},
		},
		OwnerNodeID: n.ID(),
	}}
}

func (n *BashNode) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if name != "bash" {
		return "", fmt.Errorf("bash node: unknown tool %q", name)
	}
	command, _ := args["command"].(string)
	out, err := n.Execute(ctx, types.ExecutionContext{Input: command})
	if err != nil {
		return "", err
	}
	res := out.(BashResult)
	if res.Success {
		return res.Stdout, nil
	}
	return fmt.Sprintf("exit %d\nstdout: %s\nstderr: %s", res.ExitCode, res.Stdout, res.Stderr), nil
}

var (
	_ Node        = (*BashNode)(nil)
	_ ToolCapable = (*BashNode)(nil)
)
