// Package proxy implements the per-node LLM proxy manager: spec.md
// §4.13's loopback HTTP server that sits between a persistent terminal
// node and its configured LLM provider. Grounded on
// _examples/original_source/src/nerve/core/channels/ for the
// passthrough/transform split, generalized to the two wire dialects
// actually wired in the pack (anthropic-sdk-go inbound,
// openai-go outbound for the transform case).
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// Instance is one running proxy: an HTTP server bound to an ephemeral
// loopback port, fronting a single node's configured provider. Satisfies
// internal/session.ProxyHandle so a session can stop it without
// importing this package.
type Instance struct {
	NodeID string
	Spec   types.ProviderSpec

	srv      *http.Server
	listener net.Listener
	url      string
}

// URL is the loopback base URL a node's client should be pointed at
// instead of talking to the real upstream directly.
func (i *Instance) URL() string { return i.url }

// Stop shuts the instance's HTTP server down, freeing its port.
func (i *Instance) Stop(ctx context.Context) error {
	return i.srv.Shutdown(ctx)
}

// Manager owns every running proxy instance, keyed by the node id it was
// started for. Grounded on spec.md §5's "Proxy manager maintains a
// mapping node_id -> proxy_instance guarded by the single-threaded
// invariant" — conductor's dispatcher is single-writer per session, but
// Manager itself still guards its map since StopAll and a concurrent
// StartProxy can race across sessions.
type Manager struct {
	mu        sync.Mutex
	instances map[string]*Instance
}

// NewManager creates an empty proxy manager.
func NewManager() *Manager {
	return &Manager{instances: make(map[string]*Instance)}
}

// StartProxy binds a loopback listener, starts serving, and performs a
// health check against the new instance's own /health endpoint before
// registering it. Starting a proxy for an
// already-registered node id is a conflict, matching "Starting a proxy
// for an already-registered node raises."
func (m *Manager) StartProxy(ctx context.Context, nodeID string, spec types.ProviderSpec) (*Instance, error) {
	m.mu.Lock()
	if _, exists := m.instances[nodeID]; exists {
		m.mu.Unlock()
		return nil, engineerr.Conflict("proxy already running for node %q", nodeID)
	}
	m.mu.Unlock()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, engineerr.BackendError(err)
	}

	breaker := newBreaker(5, 30*time.Second)
	var handler http.Handler
	switch spec.APIFormat {
	case types.FormatOpenAI:
		handler = newTransformHandler(spec, breaker)
	default:
		handler = newPassthroughHandler(spec, breaker)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/messages", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/api/event_logging/batch", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Handler: mux}
	inst := &Instance{
		NodeID:   nodeID,
		Spec:     spec,
		srv:      srv,
		listener: listener,
		url:      "http://" + listener.Addr().String(),
	}

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Warn().Err(err).Str("node", nodeID).Msg("proxy instance stopped serving")
		}
	}()

	if err := healthCheck(ctx, inst.url); err != nil {
		_ = inst.Stop(ctx)
		return nil, engineerr.BackendError(err)
	}

	m.mu.Lock()
	m.instances[nodeID] = inst
	m.mu.Unlock()
	return inst, nil
}

// StopProxy tears down the proxy registered for nodeID, if any.
func (m *Manager) StopProxy(ctx context.Context, nodeID string) error {
	m.mu.Lock()
	inst, ok := m.instances[nodeID]
	if ok {
		delete(m.instances, nodeID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return inst.Stop(ctx)
}

// StopAll tears down every running proxy, called on engine shutdown.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	instances := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.instances = make(map[string]*Instance)
	m.mu.Unlock()

	var firstErr error
	for _, inst := range instances {
		if err := inst.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Get returns the running instance for nodeID, if any.
func (m *Manager) Get(nodeID string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[nodeID]
	return inst, ok
}

func healthCheck(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}
