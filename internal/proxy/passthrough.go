package proxy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// passthroughHandler forwards /v1/messages verbatim to an Anthropic-
// compatible upstream, rewriting the model field when the node's
// provider spec names one, and streaming SSE through unchanged.
type passthroughHandler struct {
	spec    types.ProviderSpec
	breaker *breaker
	client  *http.Client
}

func newPassthroughHandler(spec types.ProviderSpec, b *breaker) http.Handler {
	return &passthroughHandler{spec: spec, breaker: b, client: &http.Client{}}
}

func (h *passthroughHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, errorResponse("invalid_request_error", err.Error()))
		return
	}

	if h.spec.Model != "" {
		body = rewriteModel(body, h.spec.Model)
	}

	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.spec.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, errorResponse("api_error", err.Error()))
		return
	}
	upstream.Header.Set("Content-Type", "application/json")
	upstream.Header.Set("x-api-key", h.spec.APIKey)
	upstream.Header.Set("anthropic-version", "2023-06-01")

	resp, err := h.breaker.do(func() (*http.Response, error) {
		if err := rewindBody(upstream); err != nil {
			return nil, err
		}
		return h.client.Do(upstream)
	})
	if err != nil {
		writeCircuitOrBackendError(w, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		forwardUpstreamError(w, resp)
		return
	}

	if ct := resp.Header.Get("Content-Type"); isEventStream(ct) {
		streamThrough(w, resp.Body)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}

// rewriteModel patches the top-level "model" field in an Anthropic
// request body, leaving every other field untouched. Falls back to the
// original body if it isn't well-formed JSON — the upstream will report
// that error itself rather than the proxy masking it.
func rewriteModel(body []byte, model string) []byte {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return body
	}
	raw["model"] = model
	patched, err := json.Marshal(raw)
	if err != nil {
		return body
	}
	return patched
}

func isEventStream(contentType string) bool {
	return len(contentType) >= 17 && contentType[:17] == "text/event-stream"
}

// streamThrough copies an upstream SSE body to the client line by line so
// each event is flushed as it arrives rather than buffered until EOF.
// Unlike transform's sseWriter, passthrough's events are already framed
// by the upstream — there is nothing to re-encode, only to relay.
func streamThrough(w http.ResponseWriter, body io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		logging.Warn().Msg("passthrough proxy: streaming not supported by response writer")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if _, err := w.Write(append(scanner.Bytes(), '\n')); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeJSONError(w http.ResponseWriter, status int, body anthropicResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeCircuitOrBackendError(w http.ResponseWriter, err error) {
	if isCircuitOpen(err) {
		writeJSONError(w, http.StatusServiceUnavailable, errorResponse("overloaded_error", "circuit breaker open"))
		return
	}
	writeJSONError(w, http.StatusBadGateway, errorResponse("api_error", err.Error()))
}

func forwardUpstreamError(w http.ResponseWriter, resp *http.Response) {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}
