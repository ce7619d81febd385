package proxy

import "github.com/openai/openai-go"

// streamAccumulator turns a sequence of OpenAI chat-completion-chunk
// deltas into the Anthropic content_block_start/delta/stop sequence,
// tracking which Anthropic block index is currently open (text, or one
// per tool call) since OpenAI interleaves a single delta stream where
// Anthropic expects explicit block boundaries.
type streamAccumulator struct {
	sw     *sseWriter
	mapper *ToolIDMapper

	blockOpen  bool
	blockIndex int
	blockKind  string // "text" or "tool_use"

	toolBlockByCallIndex map[int64]int
	stopReason           string
}

func newStreamAccumulator(sw *sseWriter, mapper *ToolIDMapper) *streamAccumulator {
	return &streamAccumulator{sw: sw, mapper: mapper, blockIndex: -1, toolBlockByCallIndex: make(map[int64]int)}
}

func (a *streamAccumulator) handle(chunk openai.ChatCompletionChunk) {
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		a.stopReason = choice.FinishReason
	}

	if choice.Delta.Content != "" {
		a.ensureBlock("text", -1)
		_ = a.sw.writeEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": a.blockIndex,
			"delta": map[string]any{"type": "text_delta", "text": choice.Delta.Content},
		})
	}

	for _, tc := range choice.Delta.ToolCalls {
		a.handleToolCallDelta(tc)
	}
}

func (a *streamAccumulator) handleToolCallDelta(tc openai.ChatCompletionChunkChoiceDeltaToolCall) {
	idx, seen := a.toolBlockByCallIndex[tc.Index]
	if !seen {
		a.closeBlock()
		a.blockIndex++
		idx = a.blockIndex
		a.toolBlockByCallIndex[tc.Index] = idx
		a.blockOpen = true
		a.blockKind = "tool_use"
		_ = a.sw.writeEvent("content_block_start", map[string]any{
			"type":  "content_block_start",
			"index": idx,
			"content_block": anthropicContent{
				Type: "tool_use", ID: a.mapper.AnthropicID(tc.ID), Name: tc.Function.Name,
			},
		})
	}
	if tc.Function.Arguments != "" {
		_ = a.sw.writeEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": idx,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": tc.Function.Arguments},
		})
	}
}

// ensureBlock opens a new content block of kind if none is open or the
// open one is a different kind. toolCallIndex is unused for text blocks.
func (a *streamAccumulator) ensureBlock(kind string, _ int64) {
	if a.blockOpen && a.blockKind == kind {
		return
	}
	a.closeBlock()
	a.blockIndex++
	a.blockOpen = true
	a.blockKind = kind
	_ = a.sw.writeEvent("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         a.blockIndex,
		"content_block": anthropicContent{Type: "text", Text: ""},
	})
}

func (a *streamAccumulator) closeBlock() {
	if !a.blockOpen {
		return
	}
	_ = a.sw.writeEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": a.blockIndex})
	a.blockOpen = false
}

func (a *streamAccumulator) finish() {
	a.closeBlock()
	stopReason := "end_turn"
	switch a.stopReason {
	case "tool_calls":
		stopReason = "tool_use"
	case "length":
		stopReason = "max_tokens"
	}
	_ = a.sw.writeEvent("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stopReason},
	})
	_ = a.sw.writeEvent("message_stop", map[string]any{"type": "message_stop"})
}
