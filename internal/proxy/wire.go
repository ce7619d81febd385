package proxy

// This file defines the wire-level JSON shapes the proxy's /v1/messages
// endpoint accepts and returns. These are the proxy's own inbound/
// outbound contract (a caller posts Anthropic Messages API JSON), kept
// separate from anthropic-sdk-go's client-side param types, which are
// built for constructing outbound SDK requests rather than decoding an
// arbitrary inbound HTTP body.

// anthropicRequest is the body shape a conversation partner posts to
// /v1/messages.
type anthropicRequest struct {
	Model     string              `json:"model"`
	MaxTokens int64               `json:"max_tokens"`
	System    string              `json:"system,omitempty"`
	Messages  []anthropicMessage  `json:"messages"`
	Tools     []anthropicTool     `json:"tools,omitempty"`
	Stream    bool                `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

// anthropicContent is a tagged union over Anthropic's content block
// kinds; only the fields relevant to each Type are populated.
type anthropicContent struct {
	Type string `json:"type"` // "text", "tool_use", "tool_result"

	Text string `json:"text,omitempty"`

	ID    string `json:"id,omitempty"`    // tool_use
	Name  string `json:"name,omitempty"`  // tool_use
	Input any    `json:"input,omitempty"` // tool_use

	ToolUseID string `json:"tool_use_id,omitempty"` // tool_result
	Content   string `json:"content,omitempty"`     // tool_result
	IsError   bool   `json:"is_error,omitempty"`    // tool_result
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// anthropicResponse is the non-streaming response shape, and also the
// shape an error is surfaced in (Type == "error").
type anthropicResponse struct {
	ID         string             `json:"id,omitempty"`
	Type       string             `json:"type"`
	Role       string             `json:"role,omitempty"`
	Model      string             `json:"model,omitempty"`
	Content    []anthropicContent `json:"content,omitempty"`
	StopReason string             `json:"stop_reason,omitempty"`
	Usage      *anthropicUsage    `json:"usage,omitempty"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorResponse(errType, message string) anthropicResponse {
	return anthropicResponse{Type: "error", Error: &anthropicError{Type: errType, Message: message}}
}
