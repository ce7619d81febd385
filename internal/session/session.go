// Package session implements the session registry: the central mutable
// table of sessions, each owning the four catalogues a session addresses
// by name — nodes, graphs, workflow runs, and the LLM proxies spun up on
// behalf of its terminal nodes. Grounded on
// _examples/original_source/src/nerve/core/session/{session,manager}.py.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/event"
	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

// ProxyHandle is the minimal surface a session needs from an LLM proxy
// instance to tear it down on node deletion or session close. internal/
// proxy's concrete type satisfies this without session importing proxy.
type ProxyHandle interface {
	URL() string
	Stop(ctx context.Context) error
}

// Session is a registry and lifecycle manager for one fleet of nodes,
// graphs, workflow runs, and proxies. Named lookup mirrors the Python
// original's register/get/unregister trio; the zero value is not usable,
// construct with New.
type Session struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	CreatedAt   time.Time
	Metadata    map[string]any

	mu           sync.RWMutex
	nodes        map[string]node.Node
	graphs       map[string]*types.Graph
	workflows    map[string]bool // ids bound visible to this session (bodies live in internal/workflow's global registry)
	workflowRuns map[string]*types.WorkflowRun
	proxies      map[string]ProxyHandle // keyed by the node id that owns the proxy
}

// New creates a session and auto-registers the reserved identity node,
// matching SessionHandler's CREATE_SESSION behavior.
func New(id, name string) *Session {
	if name == "" {
		name = id
	}
	s := &Session{
		ID:           id,
		Name:         name,
		CreatedAt:    time.Now(),
		Metadata:     make(map[string]any),
		nodes:        make(map[string]node.Node),
		graphs:       make(map[string]*types.Graph),
		workflows:    make(map[string]bool),
		workflowRuns: make(map[string]*types.WorkflowRun),
		proxies:      make(map[string]ProxyHandle),
	}
	s.nodes[node.DefaultIdentityNodeID] = node.NewIdentityNode(node.DefaultIdentityNodeID)
	return s
}

// --- node catalogue ---

// RegisterNode adds n under name (defaulting to n.ID()). Enforces name
// validation and duplicate detection per the session's name-uniqueness
// invariant.
func (s *Session) RegisterNode(n node.Node, name string) error {
	if name == "" {
		name = n.ID()
	}
	if err := node.ValidateName(name, "node"); err != nil {
		return engineerr.Wrap(types.ErrInvalidInput, "invalid node id", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[name]; exists {
		return engineerr.Conflict("node %q already exists in session %q", name, s.ID)
	}
	s.nodes[name] = n
	return nil
}

// UnregisterNode removes a node from the registry without stopping it.
func (s *Session) UnregisterNode(name string) (node.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[name]
	if ok {
		delete(s.nodes, name)
	}
	return n, ok
}

// GetNode looks up a node by name.
func (s *Session) GetNode(name string) (node.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[name]
	return n, ok
}

// ListNodeNames returns every registered node name.
func (s *Session) ListNodeNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		out = append(out, name)
	}
	return out
}

// ListReadyNodeNames returns names of nodes in a non-stopped, non-error
// state (READY, BUSY, STARTING, CREATED, STOPPING).
func (s *Session) ListReadyNodeNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.nodes))
	for name, n := range s.nodes {
		switch n.State() {
		case types.NodeStopped, types.NodeError:
		default:
			out = append(out, name)
		}
	}
	return out
}

// NodeCount reports how many nodes are currently registered.
func (s *Session) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// ExecuteNode runs the named node's Execute and, if the node is
// ephemeral (node.IsPersistent reports false), deregisters it
// regardless of outcome and publishes NODE_DELETED — the "ephemeral
// autoclean" invariant in spec.md §8.
func (s *Session) ExecuteNode(ctx context.Context, name string, ectx types.ExecutionContext) (any, error) {
	n, ok := s.GetNode(name)
	if !ok {
		return nil, engineerr.NotFound("node %q not found in session %q", name, s.ID)
	}

	result, err := n.Execute(ctx, ectx)

	if !node.IsPersistent(n) {
		s.mu.Lock()
		delete(s.nodes, name)
		s.mu.Unlock()
		event.Publish(types.Event{
			Type:      types.EventNodeDeleted,
			NodeID:    name,
			Timestamp: time.Now(),
			Data:      map[string]any{"sessionId": s.ID, "reason": "ephemeral"},
		})
	}

	return result, err
}

// --- graph catalogue ---

// CreateGraph registers g under its own ID, enforcing name validation
// and duplicate detection the same way nodes are.
func (s *Session) CreateGraph(g *types.Graph) error {
	if err := node.ValidateName(g.ID, "graph"); err != nil {
		return engineerr.Wrap(types.ErrInvalidInput, "invalid graph id", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.graphs[g.ID]; exists {
		return engineerr.Conflict("graph %q already exists in session %q", g.ID, s.ID)
	}
	s.graphs[g.ID] = g
	return nil
}

func (s *Session) GetGraph(id string) (*types.Graph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[id]
	return g, ok
}

func (s *Session) DeleteGraph(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[id]; !ok {
		return false
	}
	delete(s.graphs, id)
	return true
}

func (s *Session) ListGraphIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.graphs))
	for id := range s.graphs {
		out = append(out, id)
	}
	return out
}

// --- workflow catalogue ---
//
// A session only tracks which statically-registered workflow ids are
// visible to it (CREATE_WORKFLOW binds one); the Go closures behind
// those ids live in internal/workflow's global registry, not here, so
// session never needs to import internal/workflow.

// BindWorkflow makes workflowID visible to LIST_WORKFLOWS/EXECUTE_WORKFLOW
// for this session. The caller (internal/engine) is responsible for
// checking the id is actually registered before binding it.
func (s *Session) BindWorkflow(workflowID string) error {
	if err := node.ValidateName(workflowID, "workflow"); err != nil {
		return engineerr.Wrap(types.ErrInvalidInput, "invalid workflow id", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflows[workflowID] {
		return engineerr.Conflict("workflow %q already bound in session %q", workflowID, s.ID)
	}
	s.workflows[workflowID] = true
	return nil
}

// HasWorkflow reports whether workflowID is bound to this session.
func (s *Session) HasWorkflow(workflowID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workflows[workflowID]
}

// ListWorkflowIDs returns every workflow id bound to this session.
func (s *Session) ListWorkflowIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.workflows))
	for id := range s.workflows {
		out = append(out, id)
	}
	return out
}

// --- workflow run catalogue ---

// RegisterWorkflowRun tracks an in-flight or completed WorkflowRun by its
// RunID, so GET_WORKFLOW_RUN/ANSWER_GATE/CANCEL_WORKFLOW can find it.
func (s *Session) RegisterWorkflowRun(run *types.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workflowRuns[run.RunID]; exists {
		return engineerr.Conflict("workflow run %q already registered", run.RunID)
	}
	s.workflowRuns[run.RunID] = run
	return nil
}

func (s *Session) GetWorkflowRun(runID string) (*types.WorkflowRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.workflowRuns[runID]
	return run, ok
}

func (s *Session) ListWorkflowRunIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.workflowRuns))
	for id := range s.workflowRuns {
		out = append(out, id)
	}
	return out
}

// --- proxy catalogue ---

// RegisterProxy associates a running LLM proxy with the node it was
// spun up for, so deleting the node or closing the session also stops
// the proxy.
func (s *Session) RegisterProxy(nodeID string, handle ProxyHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proxies[nodeID] = handle
}

// StopProxy stops and forgets the proxy owned by nodeID, if any.
func (s *Session) StopProxy(ctx context.Context, nodeID string) error {
	s.mu.Lock()
	handle, ok := s.proxies[nodeID]
	if ok {
		delete(s.proxies, nodeID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return handle.Stop(ctx)
}

// --- lifecycle ---

// Close stops every persistent node and every live proxy in the session.
// Errors are logged and collected but don't stop the sweep — a session
// close should make a best effort at tearing everything down.
func (s *Session) Close(ctx context.Context) error {
	s.mu.RLock()
	nodes := make([]node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	proxies := make([]ProxyHandle, 0, len(s.proxies))
	for _, p := range s.proxies {
		proxies = append(proxies, p)
	}
	s.mu.RUnlock()

	var firstErr error
	for _, n := range nodes {
		if !node.IsPersistent(n) {
			continue
		}
		if err := n.Stop(ctx); err != nil {
			logging.Warn().Err(err).Str("session", s.ID).Str("node", n.ID()).Msg("session close: node stop failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for _, p := range proxies {
		if err := p.Stop(ctx); err != nil {
			logging.Warn().Err(err).Str("session", s.ID).Msg("session close: proxy stop failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.mu.Lock()
	s.proxies = make(map[string]ProxyHandle)
	s.mu.Unlock()

	return firstErr
}

func (s *Session) String() string {
	return fmt.Sprintf("Session(id=%q, name=%q, nodes=%d)", s.ID, s.Name, s.NodeCount())
}
