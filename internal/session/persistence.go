package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

// NodeDescriptor is the serializable shell of a registered node: enough
// to know it existed and what it was, not enough to resurrect it — the
// live process/conversation/backend is never serialized. Grounded on
// session/persistence.py's SessionMetadata, generalized from "one CLI
// command" to every node variant.
type NodeDescriptor struct {
	Name       string      `json:"name"`
	ID         string      `json:"id"`
	Variant    types.Variant `json:"variant"`
	Persistent bool        `json:"persistent"`
}

// Snapshot is a session's exported catalogue: metadata, node shells, and
// graphs (graphs are pure data and round-trip exactly). Workflow runs
// are intentionally absent — a WorkflowRun's body is a registered Go
// closure, not serializable state, matching session/persistence.py's own
// note that this saves metadata, not live process state.
type Snapshot struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	CreatedAt   time.Time      `json:"createdAt"`
	Metadata    map[string]any `json:"metadata"`
	Nodes       []NodeDescriptor `json:"nodes"`
	Graphs      []*types.Graph `json:"graphs"`
	Workflows   []string         `json:"workflows"`
}

// Export captures the session's current node/graph catalogue as a
// Snapshot.
func (s *Session) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Tags:        append([]string(nil), s.Tags...),
		CreatedAt:   s.CreatedAt,
		Metadata:    make(map[string]any, len(s.Metadata)),
		Nodes:       make([]NodeDescriptor, 0, len(s.nodes)),
		Graphs:      make([]*types.Graph, 0, len(s.graphs)),
	}
	for k, v := range s.Metadata {
		snap.Metadata[k] = v
	}
	for name, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, NodeDescriptor{
			Name:       name,
			ID:         n.ID(),
			Variant:    n.Variant(),
			Persistent: node.IsPersistent(n),
		})
	}
	for _, g := range s.graphs {
		snap.Graphs = append(snap.Graphs, g)
	}
	for id := range s.workflows {
		snap.Workflows = append(snap.Workflows, id)
	}
	return snap
}

// ExportJSON marshals Export's result to JSON.
func (s *Session) ExportJSON() ([]byte, error) {
	return json.Marshal(s.Export())
}

// NodeFactory reconstructs a live node from its descriptor. Terminal,
// LLM, and MCP nodes need backend-specific construction parameters
// (command, provider spec, ...) that a descriptor alone can't carry, so
// the caller — normally internal/engine, which holds the original
// CREATE_NODE params — supplies the factory; descriptors it doesn't
// recognize may be skipped by returning a nil node and nil error.
type NodeFactory func(NodeDescriptor) (node.Node, error)

// ImportSession rebuilds a session from a Snapshot: graphs are restored
// directly (pure data), nodes are rebuilt through factory. This is the
// other half of the "session export/import round-trip" property in
// spec.md §8 — subject to its documented exception for workflow bodies.
func ImportSession(snap Snapshot, factory NodeFactory) (*Session, error) {
	s := New(snap.ID, snap.Name)
	s.Description = snap.Description
	s.Tags = append([]string(nil), snap.Tags...)
	for k, v := range snap.Metadata {
		s.Metadata[k] = v
	}

	for _, desc := range snap.Nodes {
		if desc.Name == node.DefaultIdentityNodeID {
			continue // already created by New
		}
		n, err := factory(desc)
		if err != nil {
			return nil, fmt.Errorf("import session %q: rebuild node %q: %w", snap.ID, desc.Name, err)
		}
		if n == nil {
			continue
		}
		if err := s.RegisterNode(n, desc.Name); err != nil {
			return nil, fmt.Errorf("import session %q: register node %q: %w", snap.ID, desc.Name, err)
		}
	}

	for _, g := range snap.Graphs {
		if err := s.CreateGraph(g); err != nil {
			return nil, fmt.Errorf("import session %q: register graph %q: %w", snap.ID, g.ID, err)
		}
	}

	for _, id := range snap.Workflows {
		if err := s.BindWorkflow(id); err != nil {
			return nil, fmt.Errorf("import session %q: bind workflow %q: %w", snap.ID, id, err)
		}
	}

	return s, nil
}

// ImportSessionJSON unmarshals data as a Snapshot and calls ImportSession.
func ImportSessionJSON(data []byte, factory NodeFactory) (*Session, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("import session: unmarshal snapshot: %w", err)
	}
	return ImportSession(snap, factory)
}
