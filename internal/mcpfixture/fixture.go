// Package mcpfixture is a small, real MCP server built on the official
// modelcontextprotocol/go-sdk, used to exercise conductor's MCP surface
// end to end in tests without depending on an external MCP server
// binary. internal/node's own MCP node talks a hand-rolled stdio
// JSON-RPC transport instead (grounded on the handshake/serialization
// requirements conductor's protocol names); this package exists
// specifically so the SDK's client/server pair, not the hand-rolled
// one, gets wired and exercised somewhere in the repo.
package mcpfixture

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var echoSchema = json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)

var sumSchema = json.RawMessage(`{"type":"object","properties":{"numbers":{"type":"array","items":{"type":"number"}}},"required":["numbers"]}`)

// NewServer builds an in-process MCP server exposing two tools: "echo"
// (returns its text argument verbatim) and "sum" (adds a list of
// numbers), the same pair of trivial-but-real tool shapes the
// teacher's own calculator fixture exercises (string passthrough,
// numeric reduction).
func NewServer(name string) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    name,
		Version: "1.0.0",
	}, nil)

	server.AddTool(&sdkmcp.Tool{
		Name:        "echo",
		Description: "echoes back the given text",
		InputSchema: echoSchema,
	}, handleEcho)

	server.AddTool(&sdkmcp.Tool{
		Name:        "sum",
		Description: "sums a list of numbers",
		InputSchema: sumSchema,
	}, handleSum)

	return server
}

func handleEcho(_ context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("parse error: " + err.Error()), nil
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: args.Text}},
	}, nil
}

func handleSum(_ context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
	var args struct {
		Numbers []float64 `json:"numbers"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("parse error: " + err.Error()), nil
	}
	var total float64
	for _, n := range args.Numbers {
		total += n
	}
	data, _ := json.Marshal(total)
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(msg string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// Dial starts server running over an in-memory transport and connects
// a fresh SDK client to it, returning the live session and a close
// function tearing both ends down.
func Dial(ctx context.Context, server *sdkmcp.Server) (*sdkmcp.ClientSession, func(), error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()

	runCtx, cancel := context.WithCancel(ctx)
	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "conductor-mcpfixture-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	closeFn := func() {
		_ = session.Close()
		cancel()
	}
	return session, closeFn, nil
}
