// Package graph implements the DAG executor: validating a session's Graph,
// leveling it into waves of independent steps, and running those waves with
// bounded concurrency. Grounded on
// _examples/original_source/src/nerve/core/dag/graph.py's DAG.validate()/
// execution_order(), generalized with the Kahn's-algorithm leveling and
// skip-on-upstream-failure scheduling shown in
// _examples/leofalp-aigo/patterns/graph/{builder,executor}.go.
package graph

import (
	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

// NodeResolver looks up a node by name within the owning session. Declared
// locally (rather than importing internal/session) so graph has no
// dependency on session; internal/session.Session satisfies this today.
type NodeResolver interface {
	GetNode(name string) (node.Node, bool)
}

// Validate checks g in the order the external interface requires:
// depends_on existence, then acyclicity, then (if resolver is non-nil)
// node_ref resolution against the owning session's node catalogue. Returns
// the first violation found, matching graph.py's validate() which raises on
// the first problem rather than collecting all of them.
func Validate(g *types.Graph, resolver NodeResolver) error {
	if len(g.Steps) == 0 {
		return engineerr.InvalidInput("graph %q has no steps", g.ID)
	}

	ids := make(map[string]bool, len(g.Steps))
	for _, st := range g.Steps {
		if st.ID == "" {
			return engineerr.InvalidInput("graph %q has a step with an empty id", g.ID)
		}
		if ids[st.ID] {
			return engineerr.InvalidInput("graph %q has duplicate step id %q", g.ID, st.ID)
		}
		ids[st.ID] = true
	}

	for _, st := range g.Steps {
		for _, dep := range st.DependsOn {
			if !ids[dep] {
				return engineerr.InvalidInput("graph %q: step %q depends on unknown step %q", g.ID, st.ID, dep)
			}
		}
	}

	if _, err := levels(g); err != nil {
		return err
	}

	if resolver != nil {
		for _, st := range g.Steps {
			if _, ok := resolver.GetNode(st.NodeRef); !ok {
				return engineerr.InvalidInput("graph %q: step %q references unknown node %q", g.ID, st.ID, st.NodeRef)
			}
		}
	}

	return nil
}

// levels topologically sorts g's steps into waves via Kahn's algorithm:
// each wave holds every step whose dependencies are all in prior waves.
// Ties within a wave are broken by g.Steps insertion order, so repeated
// runs over the same Graph value always produce the same schedule.
func levels(g *types.Graph) ([][]string, error) {
	indegree := make(map[string]int, len(g.Steps))
	dependents := make(map[string][]string, len(g.Steps))
	for _, st := range g.Steps {
		indegree[st.ID] = len(st.DependsOn)
		for _, dep := range st.DependsOn {
			dependents[dep] = append(dependents[dep], st.ID)
		}
	}

	remaining := len(g.Steps)
	var out [][]string
	for remaining > 0 {
		var wave []string
		for _, st := range g.Steps {
			if indegree[st.ID] == 0 {
				wave = append(wave, st.ID)
			}
		}
		if len(wave) == 0 {
			return nil, engineerr.InvalidInput("graph %q has a dependency cycle", g.ID)
		}

		out = append(out, wave)
		for _, id := range wave {
			indegree[id] = -1 // consumed, never re-selected
			remaining--
			for _, dep := range dependents[id] {
				indegree[dep]--
			}
		}
	}
	return out, nil
}

// ExecutionOrder flattens g's levels into one ordered list of step ids,
// for introspection only (REPL_DRY) — the executor itself schedules by
// level, not this flattened order. g must already have passed Validate.
func ExecutionOrder(g *types.Graph) []string {
	waves, err := levels(g)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(g.Steps))
	for _, wave := range waves {
		out = append(out, wave...)
	}
	return out
}

func stepByID(g *types.Graph) map[string]types.Step {
	m := make(map[string]types.Step, len(g.Steps))
	for _, st := range g.Steps {
		m[st.ID] = st
	}
	return m
}
