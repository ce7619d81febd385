package proxy

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// transformHandler terminates Anthropic Messages API requests and
// replays them against an OpenAI-dialect upstream, translating both the
// request and the response (or SSE stream) back across the wire
// boundary. One ToolIDMapper per request keeps a request's own
// tool_use/tool_result ids consistent between the two dialects; it does
// not need to survive across requests since a conversation always
// replays its whole history each turn.
type transformHandler struct {
	spec   types.ProviderSpec
	client *openai.Client
}

func newTransformHandler(spec types.ProviderSpec, b *breaker) http.Handler {
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(spec.APIKey),
		openaioption.WithHTTPClient(b.httpClient()),
	}
	if spec.BaseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(spec.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &transformHandler{spec: spec, client: &client}
}

func (h *transformHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, errorResponse("invalid_request_error", err.Error()))
		return
	}

	var req anthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, errorResponse("invalid_request_error", err.Error()))
		return
	}

	model := req.Model
	if h.spec.Model != "" {
		model = h.spec.Model
	}
	mapper := NewToolIDMapper()
	params := toTransformParams(req, model)

	if req.Stream {
		h.serveStreaming(w, r, params, model, mapper)
		return
	}
	h.serveNonStreaming(w, r, params, model, mapper)
}

func (h *transformHandler) serveNonStreaming(w http.ResponseWriter, r *http.Request, params openai.ChatCompletionNewParams, model string, mapper *ToolIDMapper) {
	completion, err := h.client.Chat.Completions.New(r.Context(), params)
	if err != nil {
		writeCircuitOrBackendError(w, err)
		return
	}
	resp := fromTransformCompletion(completion, model, mapper)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// serveStreaming relays an OpenAI chat-completion-chunk stream as an
// Anthropic-shaped SSE sequence: message_start, one content_block_start/
// delta/stop trio per block the chunks accumulate, message_delta, then
// message_stop — the order spec.md §6 requires regardless of upstream
// dialect.
func (h *transformHandler) serveStreaming(w http.ResponseWriter, r *http.Request, params openai.ChatCompletionNewParams, model string, mapper *ToolIDMapper) {
	stream := h.client.Chat.Completions.NewStreaming(r.Context(), params)
	defer stream.Close()

	sw, err := newSSEWriter(w)
	if err != nil {
		logging.Warn().Err(err).Msg("transform proxy: streaming not supported by response writer")
		return
	}

	msgID := "msg_" + uuid.NewString()
	_ = sw.writeEvent("message_start", map[string]any{
		"type": "message_start",
		"message": anthropicResponse{
			ID: msgID, Type: "message", Role: "assistant", Model: model,
			Content: []anthropicContent{},
		},
	})

	acc := newStreamAccumulator(sw, mapper)
	for stream.Next() {
		acc.handle(stream.Current())
	}
	if err := stream.Err(); err != nil {
		_ = sw.writeEvent("error", errorResponse("api_error", err.Error()))
		return
	}
	acc.finish()
}

// toTransformParams builds an OpenAI chat params from an inbound
// Anthropic request. Tool-call ids replay verbatim (OpenAI's tool_call
// id and Anthropic's tool_use id are both opaque strings; only internal
// consistency within the request matters, not their format) — only the
// response path mints fresh toolu_ ids via ToolIDMapper, since that's
// the direction spec.md's wire contract actually constrains.
func toTransformParams(req anthropicRequest, model string) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		messages = append(messages, toTransformMessage(m)...)
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if len(req.Tools) > 0 {
		params.Tools = toTransformTools(req.Tools)
	}
	return params
}

// toTransformMessage may expand to more than one OpenAI message: a
// single Anthropic "user" message carrying both a tool_result block and
// plain text splits into a tool message plus a user message, since
// OpenAI's dialect has no mixed-content equivalent.
func toTransformMessage(m anthropicMessage) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion

	switch m.Role {
	case "user":
		var text string
		for _, c := range m.Content {
			switch c.Type {
			case "tool_result":
				out = append(out, openai.ToolMessage(c.Content, c.ToolUseID))
			case "text":
				text += c.Text
			}
		}
		if text != "" {
			out = append(out, openai.UserMessage(text))
		}
	case "assistant":
		var text string
		var calls []openai.ChatCompletionMessageToolCallParam
		for _, c := range m.Content {
			switch c.Type {
			case "text":
				text += c.Text
			case "tool_use":
				args, _ := json.Marshal(c.Input)
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID: c.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: string(args),
					},
				})
			}
		}
		if len(calls) == 0 {
			out = append(out, openai.AssistantMessage(text))
		} else {
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)},
					ToolCalls: calls,
				},
			})
		}
	}
	return out
}

func toTransformTools(tools []anthropicTool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.InputSchema),
			},
		})
	}
	return out
}

// fromTransformCompletion translates a non-streaming OpenAI completion
// into the Anthropic response shape, minting toolu_ ids for any tool
// calls the model produced.
func fromTransformCompletion(c *openai.ChatCompletion, model string, mapper *ToolIDMapper) anthropicResponse {
	resp := anthropicResponse{
		ID: "msg_" + uuid.NewString(), Type: "message", Role: "assistant", Model: model,
	}
	if len(c.Choices) == 0 {
		resp.Content = []anthropicContent{}
		resp.StopReason = "end_turn"
		return resp
	}
	choice := c.Choices[0]
	if choice.Message.Content != "" {
		resp.Content = append(resp.Content, anthropicContent{Type: "text", Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		var input any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		resp.Content = append(resp.Content, anthropicContent{
			Type: "tool_use", ID: mapper.AnthropicID(tc.ID), Name: tc.Function.Name, Input: input,
		})
	}

	switch choice.FinishReason {
	case "tool_calls":
		resp.StopReason = "tool_use"
	case "length":
		resp.StopReason = "max_tokens"
	default:
		resp.StopReason = "end_turn"
	}
	resp.Usage = &anthropicUsage{
		InputTokens:  c.Usage.PromptTokens,
		OutputTokens: c.Usage.CompletionTokens,
	}
	return resp
}
