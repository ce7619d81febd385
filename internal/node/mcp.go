package node

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// mcpProtocolVersion is the fixed JSON-RPC protocol version string sent
// in the initialize handshake.
const mcpProtocolVersion = "2024-11-05"

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type mcpContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type mcpToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema types.JSONSchema `json:"inputSchema"`
}

// MCPNode speaks newline-delimited JSON-RPC 2.0 over a subprocess's
// stdio to an external MCP tool server. Operations are serialized: one
// call is ever in flight, matching the hand-rolled transport this is
// grounded on (as opposed to a connection-pooled client).
type MCPNode struct {
	Meta

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner

	nextID   int64
	mu       sync.Mutex // serializes one in-flight call at a time
	pending  map[int64]chan jsonrpcResponse
	pendMu   sync.Mutex
	readDone chan struct{}

	tools   []types.ToolDefinition
	errText string
}

// StartMCPNode launches name with args, performs the initialize
// handshake, and caches the server's tool list. On handshake failure
// the node is returned in ERROR state with errText set rather than as
// a Go error, so callers can still register it and inspect why.
func StartMCPNode(id string, name string, args []string) (*MCPNode, error) {
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	n := &MCPNode{
		Meta:     NewMeta(id, types.VariantMCP),
		cmd:      cmd,
		stdin:    stdin,
		stdout:   bufio.NewScanner(stdout),
		pending:  make(map[int64]chan jsonrpcResponse),
		readDone: make(chan struct{}),
	}
	n.stdout.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n.setState(types.NodeStarting)
	go n.readLoop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := n.handshake(ctx); err != nil {
		n.errText = err.Error()
		n.killChild()
		n.setState(types.NodeError)
		return n, nil
	}

	if err := n.refreshTools(ctx); err != nil {
		n.errText = err.Error()
		n.killChild()
		n.setState(types.NodeError)
		return n, nil
	}

	n.setState(types.NodeReady)
	return n, nil
}

func (n *MCPNode) readLoop() {
	defer close(n.readDone)
	for n.stdout.Scan() {
		line := n.stdout.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp jsonrpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			logging.Warn().Err(err).Str("node", n.ID()).Msg("mcp node: malformed response line")
			continue
		}
		n.pendMu.Lock()
		ch, ok := n.pending[resp.ID]
		if ok {
			delete(n.pending, resp.ID)
		}
		n.pendMu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (n *MCPNode) nextRequestID() int64 {
	return atomic.AddInt64(&n.nextID, 1)
}

func (n *MCPNode) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextRequestID()
	reqLine, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	replyCh := make(chan jsonrpcResponse, 1)
	n.pendMu.Lock()
	n.pending[id] = replyCh
	n.pendMu.Unlock()

	if _, err := n.stdin.Write(append(reqLine, '\n')); err != nil {
		n.pendMu.Lock()
		delete(n.pending, id)
		n.pendMu.Unlock()
		return nil, err
	}

	select {
	case resp := <-replyCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("mcp: %s: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
		}
		return resp.Result, nil
	case <-ctx.Done():
		n.pendMu.Lock()
		delete(n.pending, id)
		n.pendMu.Unlock()
		return nil, ctx.Err()
	}
}

func (n *MCPNode) notify(method string, params any) error {
	line, err := json.Marshal(jsonrpcNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return err
	}
	_, err = n.stdin.Write(append(line, '\n'))
	return err
}

func (n *MCPNode) handshake(ctx context.Context) error {
	_, err := n.call(ctx, "initialize", map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"clientInfo":      map[string]string{"name": "conductor", "version": "0.1"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("mcp: initialize failed: %w", err)
	}
	return n.notify("notifications/initialized", nil)
}

func (n *MCPNode) refreshTools(ctx context.Context) error {
	raw, err := n.call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}
	var parsed struct {
		Tools []mcpToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return err
	}

	tools := make([]types.ToolDefinition, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		tools = append(tools, types.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
			OwnerNodeID: n.ID(),
		})
	}
	n.tools = tools
	return nil
}

// ListTools returns the cached tool catalog obtained during startup.
func (n *MCPNode) ListTools() []types.ToolDefinition { return n.tools }

// CallTool sends tools/call and concatenates any text content blocks in
// the response into a single string. Fails fast without I/O to the
// child if the node is not READY.
func (n *MCPNode) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if n.State() != types.NodeReady && n.State() != types.NodeBusy {
		return "", fmt.Errorf("mcp node %q: not ready (state=%s)", n.ID(), n.State())
	}

	raw, err := n.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Content []mcpContentBlock `json:"content"`
		IsError bool              `json:"isError"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}

	var out string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

// Execute satisfies Node by dispatching ctx.Input as {name, args} to
// CallTool, for use when an MCP node is invoked directly from a graph
// step rather than through a chat node's tool catalog.
func (n *MCPNode) Execute(ctx context.Context, ectx types.ExecutionContext) (any, error) {
	call, ok := ectx.Input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("mcp node %q: expected map input with name/args", n.ID())
	}
	name, _ := call["name"].(string)
	args, _ := call["args"].(map[string]any)
	return n.CallTool(ctx, name, args)
}

// Persistent always reports true: an MCP node owns a live subprocess
// that serves many tool calls across its lifetime.
func (n *MCPNode) Persistent() bool { return true }

func (n *MCPNode) Interrupt() error { return nil }

// killChild closes the writer and force-terminates the subprocess
// without touching node state, for use during a failed startup where
// the visible state must remain ERROR, not STOPPED.
func (n *MCPNode) killChild() {
	_ = n.stdin.Close()
	if n.cmd.Process != nil {
		_ = n.cmd.Process.Signal(syscall.SIGTERM)
	}
	done := make(chan struct{})
	go func() {
		_ = n.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		if n.cmd.Process != nil {
			_ = n.cmd.Process.Kill()
		}
		<-done
	}
}

// Stop closes the writer, sends SIGTERM, awaits up to 5s, then SIGKILLs.
func (n *MCPNode) Stop(ctx context.Context) error {
	n.setState(types.NodeStopping)
	n.killChild()
	n.setState(types.NodeStopped)
	return nil
}

var (
	_ Node        = (*MCPNode)(nil)
	_ ToolCapable = (*MCPNode)(nil)
)
