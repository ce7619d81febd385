package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/pkg/types"
)

func fakeAnthropicUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"message","role":"assistant","content":[{"type":"text","text":"hi"}]}`))
	}))
}

func TestStartProxyBindsLoopbackAndHealthChecks(t *testing.T) {
	upstream := fakeAnthropicUpstream(t)
	defer upstream.Close()

	m := NewManager()
	inst, err := m.StartProxy(context.Background(), "node-1", types.ProviderSpec{
		APIFormat: types.FormatAnthropic,
		BaseURL:   upstream.URL,
		APIKey:    "test-key",
	})
	require.NoError(t, err)
	defer m.StopAll(context.Background())

	assert.Contains(t, inst.URL(), "http://127.0.0.1:")

	got, ok := m.Get("node-1")
	require.True(t, ok)
	assert.Same(t, inst, got)
}

func TestStartProxyForAlreadyRegisteredNodeConflicts(t *testing.T) {
	upstream := fakeAnthropicUpstream(t)
	defer upstream.Close()

	m := NewManager()
	spec := types.ProviderSpec{APIFormat: types.FormatAnthropic, BaseURL: upstream.URL, APIKey: "k"}
	_, err := m.StartProxy(context.Background(), "node-1", spec)
	require.NoError(t, err)
	defer m.StopAll(context.Background())

	_, err = m.StartProxy(context.Background(), "node-1", spec)
	require.Error(t, err)
}

func TestStopProxyRemovesInstance(t *testing.T) {
	upstream := fakeAnthropicUpstream(t)
	defer upstream.Close()

	m := NewManager()
	spec := types.ProviderSpec{APIFormat: types.FormatAnthropic, BaseURL: upstream.URL, APIKey: "k"}
	_, err := m.StartProxy(context.Background(), "node-1", spec)
	require.NoError(t, err)

	require.NoError(t, m.StopProxy(context.Background(), "node-1"))
	_, ok := m.Get("node-1")
	assert.False(t, ok)

	// stopping an unknown node is a no-op, not an error
	require.NoError(t, m.StopProxy(context.Background(), "node-1"))
}

func TestStopAllTearsDownEveryInstance(t *testing.T) {
	upstream := fakeAnthropicUpstream(t)
	defer upstream.Close()

	m := NewManager()
	spec := types.ProviderSpec{APIFormat: types.FormatAnthropic, BaseURL: upstream.URL, APIKey: "k"}
	_, err := m.StartProxy(context.Background(), "node-1", spec)
	require.NoError(t, err)
	_, err = m.StartProxy(context.Background(), "node-2", spec)
	require.NoError(t, err)

	require.NoError(t, m.StopAll(context.Background()))
	_, ok1 := m.Get("node-1")
	_, ok2 := m.Get("node-2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestPassthroughProxyForwardsRequestToUpstream(t *testing.T) {
	upstream := fakeAnthropicUpstream(t)
	defer upstream.Close()

	m := NewManager()
	inst, err := m.StartProxy(context.Background(), "node-1", types.ProviderSpec{
		APIFormat: types.FormatAnthropic, BaseURL: upstream.URL, APIKey: "k",
	})
	require.NoError(t, err)
	defer m.StopAll(context.Background())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Post(inst.URL()+"/v1/messages", "application/json", strings.NewReader(`{"model":"claude-x","messages":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
