package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// SingleShotNode performs one provider request per Execute call and
// holds no conversation state. Always ephemeral.
type SingleShotNode struct {
	Meta
	client SingleShotClient
	tools  []types.ToolDefinition
}

func NewSingleShotNode(id string, client SingleShotClient, tools []types.ToolDefinition) *SingleShotNode {
	n := &SingleShotNode{Meta: NewMeta(id, types.VariantLLMSingleShot), client: client, tools: tools}
	n.setState(types.NodeReady)
	return n
}

// Execute expects ctx.Input to be []types.ChatMessage (or a single
// types.ChatMessage, wrapped).
func (n *SingleShotNode) Execute(ctx context.Context, ectx types.ExecutionContext) (any, error) {
	n.setState(types.NodeBusy)
	defer n.setState(types.NodeReady)

	var messages []types.ChatMessage
	switch v := ectx.Input.(type) {
	case []types.ChatMessage:
		messages = v
	case types.ChatMessage:
		messages = []types.ChatMessage{v}
	case string:
		messages = []types.ChatMessage{{Role: types.RoleUser, Content: v}}
	default:
		return nil, fmt.Errorf("single-shot node %q: unsupported input type %T", n.ID(), ectx.Input)
	}

	result, err := n.client.Complete(ctx, SingleShotRequest{Messages: messages, Tools: n.tools})
	if ectx.Usage != nil {
		total := result.Usage.TotalTokens
		if total == 0 {
			total = estimateMessagesTokens(messages) + estimateTokens(result.Content)
		}
		ectx.Usage.Increment("tokens", float64(total))
		ectx.Usage.Increment("api_calls", 1)
	}
	return result, err
}

// Persistent always reports false: a single-shot node holds no
// conversation state across calls and is meant to be one-shot.
func (n *SingleShotNode) Persistent() bool { return false }

func (n *SingleShotNode) Interrupt() error { return nil }
func (n *SingleShotNode) Stop(ctx context.Context) error {
	n.setState(types.NodeStopped)
	return nil
}

var _ Node = (*SingleShotNode)(nil)

// MaxToolRounds bounds the tool-call round trip a chat node will run
// before returning, regardless of how many tool calls the model keeps
// requesting.
const MaxToolRounds = 25

// ChatNode is a persistent node owning an ordered conversation. A
// system prompt, tool catalog, tool-choice policy, and parallel-tools
// flag are held once per node; forks deep-copy the conversation so
// later mutation on either side is isolated.
type ChatNode struct {
	Meta

	inner             SingleShotClient
	systemPrompt      string
	toolChoice        string
	parallelToolCalls bool
	toolExecutor      ToolExecutor
	tools             []types.ToolDefinition

	mu         sync.Mutex
	messages   []types.ChatMessage
	forkedFrom string
	forkedAt   time.Time
}

func NewChatNode(id string, client SingleShotClient, systemPrompt string, tools []types.ToolDefinition, executor ToolExecutor) *ChatNode {
	n := &ChatNode{
		Meta:              NewMeta(id, types.VariantLLMChat),
		inner:             client,
		systemPrompt:      systemPrompt,
		toolChoice:        "auto",
		parallelToolCalls: true,
		toolExecutor:      executor,
		tools:             tools,
	}
	n.setState(types.NodeReady)
	return n
}

// Execute appends ctx.Input as a user message, then loops calling the
// inner single-shot client and dispatching any requested tool calls
// until a tool-call-free response arrives or MaxToolRounds is reached.
func (n *ChatNode) Execute(ctx context.Context, ectx types.ExecutionContext) (any, error) {
	n.mu.Lock()
	if n.State() != types.NodeReady {
		n.mu.Unlock()
		return nil, fmt.Errorf("chat node %q: not ready (state=%s)", n.ID(), n.State())
	}
	n.setState(types.NodeBusy)
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		if n.State() != types.NodeStopped {
			n.setState(types.NodeReady)
		}
		n.mu.Unlock()
	}()

	input, _ := ectx.Input.(string)
	n.mu.Lock()
	n.messages = append(n.messages, types.ChatMessage{Role: types.RoleUser, Content: input})
	n.mu.Unlock()

	for round := 0; round < MaxToolRounds; round++ {
		n.mu.Lock()
		snapshot := append([]types.ChatMessage(nil), n.messages...)
		n.mu.Unlock()

		result, err := n.inner.Complete(ctx, SingleShotRequest{
			SystemPrompt:      n.systemPrompt,
			Messages:          snapshot,
			Tools:             n.tools,
			ToolChoice:        n.toolChoice,
			ParallelToolCalls: n.parallelToolCalls,
		})
		if ectx.Usage != nil {
			total := result.Usage.TotalTokens
			if total == 0 {
				total = estimateMessagesTokens(snapshot) + estimateTokens(result.Content)
			}
			ectx.Usage.Increment("tokens", float64(total))
			ectx.Usage.Increment("api_calls", 1)
		}
		if err != nil {
			return types.ChatResult{Success: false, Error: err.Error()}, err
		}

		n.mu.Lock()
		n.messages = append(n.messages, types.ChatMessage{
			Role:      types.RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})
		n.mu.Unlock()

		if len(result.ToolCalls) == 0 {
			n.mu.Lock()
			count := len(n.messages)
			n.mu.Unlock()
			return types.ChatResult{
				Content:       result.Content,
				Usage:         result.Usage,
				MessagesCount: count,
				Success:       true,
			}, nil
		}

		n.dispatchToolCalls(ctx, result.ToolCalls)
	}

	return types.ChatResult{Success: false, Error: "max tool rounds exceeded"}, fmt.Errorf("chat node %q: exceeded %d tool rounds", n.ID(), MaxToolRounds)
}

func (n *ChatNode) dispatchToolCalls(ctx context.Context, calls []types.ToolCall) {
	if n.toolExecutor == nil {
		for _, tc := range calls {
			n.appendToolResult(tc.ID, "no tool executor configured")
		}
		return
	}

	if !n.parallelToolCalls {
		for _, tc := range calls {
			out, err := n.toolExecutor(ctx, tc.Name, tc.Arguments)
			if err != nil {
				out = err.Error()
			}
			n.appendToolResult(tc.ID, out)
		}
		return
	}

	var wg sync.WaitGroup
	results := make([]string, len(calls))
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc types.ToolCall) {
			defer wg.Done()
			out, err := n.toolExecutor(ctx, tc.Name, tc.Arguments)
			if err != nil {
				out = err.Error()
			}
			results[i] = out
		}(i, tc)
	}
	wg.Wait()
	for i, tc := range calls {
		n.appendToolResult(tc.ID, results[i])
	}
}

func (n *ChatNode) appendToolResult(toolCallID, content string) {
	n.mu.Lock()
	n.messages = append(n.messages, types.ChatMessage{
		Role:       types.RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
	})
	n.mu.Unlock()
}

// Clear empties the message list; the system prompt persists.
func (n *ChatNode) Clear() {
	n.mu.Lock()
	n.messages = nil
	n.mu.Unlock()
}

// Fork produces an independent chat node in the same session that deep-
// copies the message list and tool-call structures, so later mutation
// on either side is isolated.
func (n *ChatNode) Fork(newID string) *ChatNode {
	n.mu.Lock()
	defer n.mu.Unlock()

	copied := make([]types.ChatMessage, len(n.messages))
	for i, m := range n.messages {
		cm := m
		if m.ToolCalls != nil {
			cm.ToolCalls = append([]types.ToolCall(nil), m.ToolCalls...)
			for j, tc := range cm.ToolCalls {
				argsCopy := make(map[string]any, len(tc.Arguments))
				for k, v := range tc.Arguments {
					argsCopy[k] = v
				}
				cm.ToolCalls[j].Arguments = argsCopy
			}
		}
		copied[i] = cm
	}

	fork := NewChatNode(newID, n.inner, n.systemPrompt, n.tools, n.toolExecutor)
	fork.toolChoice = n.toolChoice
	fork.parallelToolCalls = n.parallelToolCalls
	fork.messages = copied
	fork.forkedFrom = n.ID()
	fork.forkedAt = time.Now()
	return fork
}

// Persistent always reports true: a chat node owns an ordered
// conversation that callers expect to survive across many Execute calls.
func (n *ChatNode) Persistent() bool { return true }

func (n *ChatNode) Interrupt() error {
	logging.Debug().Str("node", n.ID()).Msg("chat node: interrupt requested")
	return nil
}

func (n *ChatNode) Stop(ctx context.Context) error {
	n.mu.Lock()
	n.setState(types.NodeStopped)
	n.mu.Unlock()
	return nil
}

var _ Node = (*ChatNode)(nil)
