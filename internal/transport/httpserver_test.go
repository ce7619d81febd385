package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/internal/event"
	"github.com/agentfleet/conductor/pkg/types"
)

func TestHandleHealthReportsOK(t *testing.T) {
	srv := NewHTTPServer(DefaultHTTPConfig(":0"), testEngine())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCommandDispatchesAndReturnsSuccess(t *testing.T) {
	srv := NewHTTPServer(DefaultHTTPConfig(":0"), testEngine())

	cmd := types.Command{Type: types.CreateSession, Params: map[string]any{"id": "s1"}}
	body, err := json.Marshal(cmd)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result types.CommandResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.True(t, result.Success)
}

func TestHandleCommandMapsKindedErrorToHTTPStatus(t *testing.T) {
	srv := NewHTTPServer(DefaultHTTPConfig(":0"), testEngine())

	cmd := types.Command{Type: types.GetSession, Params: map[string]any{"sessionId": "missing"}}
	body, err := json.Marshal(cmd)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var result types.CommandResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrNotFound, result.Error)
}

func TestHandleCommandRejectsMalformedBody(t *testing.T) {
	srv := NewHTTPServer(DefaultHTTPConfig(":0"), testEngine())

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader("{not json}"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleShutdownSignalsChannel(t *testing.T) {
	srv := NewHTTPServer(DefaultHTTPConfig(":0"), testEngine())

	req := httptest.NewRequest(http.MethodPost, "/api/shutdown", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case <-srv.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("expected shutdown signal")
	}
}

func TestHandleEventsStreamsPublishedEvents(t *testing.T) {
	event.Reset()
	defer event.Reset()

	srv := NewHTTPServer(DefaultHTTPConfig(":0"), testEngine())
	httpSrv := httptest.NewServer(srv.Router())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine a moment to subscribe before publishing,
	// same race the teacher's own SSE test waits out with a short sleep.
	time.Sleep(20 * time.Millisecond)
	event.PublishSync(types.Event{Type: types.EventSessionCreated, Data: map[string]any{"id": "s1"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got types.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, types.EventSessionCreated, got.Type)
}
