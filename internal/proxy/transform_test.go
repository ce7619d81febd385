package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/pkg/types"
)

func fakeOpenAIUpstream(t *testing.T, completionJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON))
	}))
}

func TestTransformTranslatesNonStreamingCompletionToAnthropicShape(t *testing.T) {
	upstream := fakeOpenAIUpstream(t, `{
		"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4o",
		"choices": [{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello there"}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
	}`)
	defer upstream.Close()

	handler := newTransformHandler(types.ProviderSpec{APIFormat: types.FormatOpenAI, BaseURL: upstream.URL, APIKey: "k"}, testBreaker(5, time.Minute))
	rec := httptest.NewRecorder()
	body := `{"model":"claude-x","max_tokens":100,"messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp anthropicResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hello there", resp.Content[0].Text)
	assert.Equal(t, int64(10), resp.Usage.InputTokens)
}

func TestTransformTranslatesToolCallsAndMintsAnthropicIDs(t *testing.T) {
	upstream := fakeOpenAIUpstream(t, `{
		"id": "chatcmpl-2", "object": "chat.completion", "model": "gpt-4o",
		"choices": [{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
			"tool_calls":[{"id":"call_abc","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"nyc\"}"}}]}}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 5, "total_tokens": 10}
	}`)
	defer upstream.Close()

	handler := newTransformHandler(types.ProviderSpec{APIFormat: types.FormatOpenAI, BaseURL: upstream.URL, APIKey: "k"}, testBreaker(5, time.Minute))
	rec := httptest.NewRecorder()
	body := `{"model":"claude-x","max_tokens":100,"messages":[{"role":"user","content":[{"type":"text","text":"weather?"}]}],
		"tools":[{"name":"get_weather","input_schema":{"type":"object"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp anthropicResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "tool_use", resp.Content[0].Type)
	assert.Equal(t, "get_weather", resp.Content[0].Name)
	assert.Contains(t, resp.Content[0].ID, "toolu_")
}

func TestToTransformMessageSplitsToolResultFromText(t *testing.T) {
	msgs := toTransformMessage(anthropicMessage{
		Role: "user",
		Content: []anthropicContent{
			{Type: "tool_result", ToolUseID: "toolu_1", Content: "42"},
			{Type: "text", Text: "thanks"},
		},
	})
	require.Len(t, msgs, 2)
}
