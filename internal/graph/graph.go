// ABOUTME: extracts task dependencies and builds the execution graph
// ABOUTME: Kahn's-algorithm topological sort with deterministic, level-stable ordering

package graph

import (
	"fmt"
	"sort"

	"github.com/ritualflow/engine/internal/template"
	"github.com/ritualflow/engine/pkg/types"
)

// Node is one top-level task step in the execution graph. Steps nested
// inside a condition/switch/forEach (then/else/cases/body) are dispatched
// dynamically by the task executor and are not themselves graph nodes:
// their body is expanded at runtime, not in the static graph.
type Node struct {
	ID           string
	Step         types.Step
	Dependencies []string
	Dependents   []string
	Level        int
}

// ParallelGroup is the set of task ids sharing a level, when that set has
// size > 1.
type ParallelGroup struct {
	Level   int
	TaskIDs []string
}

// Graph is the output of building a workflow's execution plan.
type Graph struct {
	Nodes          map[string]*Node
	Levels         map[string]int
	ParallelGroups []ParallelGroup
	ExecutionOrder []string
}

// Build constructs the execution graph for a workflow. Returns a
// *types.GraphError (never a partial Graph) on cycle, unknown ref,
// duplicate id, or invalid step.
func Build(wf *types.WorkflowResource) (*Graph, error) {
	steps, err := types.BuildSteps(wf.Tasks)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*Node, len(steps))
	for i, s := range steps {
		id := s.Header().ID
		if id == "" {
			return nil, types.NewGraphError(types.CodeInvalidStep, "", fmt.Sprintf("task at index %d has no id", i))
		}
		if _, dup := nodes[id]; dup {
			return nil, types.NewGraphError(types.CodeDuplicateTaskID, id, "duplicate task id")
		}
		nodes[id] = &Node{ID: id, Step: s, Level: -1}
	}

	for id, n := range nodes {
		deps, err := dependenciesOf(n.Step, nodes)
		if err != nil {
			return nil, err
		}
		n.Dependencies = deps
		for _, d := range deps {
			nodes[d].Dependents = append(nodes[d].Dependents, id)
		}
	}

	for _, n := range nodes {
		sort.Strings(n.Dependents)
	}

	if witness := findCycle(nodes); witness != nil {
		return nil, types.NewCycleError(witness)
	}

	g := &Graph{Nodes: nodes, Levels: make(map[string]int)}
	if err := computeLevels(g); err != nil {
		return nil, err
	}
	buildGroupsAndOrder(g)

	return g, nil
}

// dependenciesOf unions explicit dependsOn with implicit tasks.<id> refs
// found in the step's own input/control-flow expressions, and validates
// every referenced id exists among the workflow's task ids.
func dependenciesOf(s types.Step, nodes map[string]*Node) ([]string, error) {
	seen := make(map[string]bool)
	var deps []string

	add := func(id string) error {
		if id == s.Header().ID {
			return types.NewCycleError([]string{id, id}) // a self-reference is a one-step cycle
		}
		if _, ok := nodes[id]; !ok {
			return types.NewGraphError(types.CodeUnknownTaskRef, s.Header().ID, fmt.Sprintf("references unknown task %q", id))
		}
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
		return nil
	}

	for _, id := range s.Header().DependsOn {
		if err := add(id); err != nil {
			return nil, err
		}
	}

	for _, id := range template.ExtractAllTaskRefs(stepExpressions(s)) {
		if err := add(id); err != nil {
			return nil, err
		}
	}

	sort.Strings(deps)
	return deps, nil
}

// stepExpressions collects every template expression a step's own (not
// nested body's) input/control-flow values carry.
func stepExpressions(s types.Step) []string {
	switch t := s.(type) {
	case *types.TaskRefStep:
		return mapValues(t.Input)
	case *types.WorkflowRefStep:
		return mapValues(t.Input)
	case *types.ConditionStep:
		return []string{t.When}
	case *types.SwitchStep:
		return []string{t.On}
	case *types.ForEachStep:
		return []string{t.Items}
	}
	return nil
}

func mapValues(m map[string]string) []string {
	vals := make([]string, 0, len(m))
	for _, v := range m {
		vals = append(vals, v)
	}
	return vals
}

// findCycle runs DFS cycle detection from ids in sorted order, returning the
// first cycle it meets (a slice ending where it begins, e.g.
// ["a","b","c","a"]) or nil if acyclic. That cycle is not necessarily the
// shortest one in the graph.
func findCycle(nodes map[string]*Node) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var path []string
	var cycle []string

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		path = append(path, id)

		deps := append([]string(nil), nodes[id].Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case gray:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string(nil), path[start:]...), dep)
				return true
			case white:
				if dfs(dep) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white {
			if dfs(id) {
				return cycle
			}
		}
	}
	return nil
}

// computeLevels assigns level(t) = 1+max(level(dep)), 0 for roots, via
// Kahn's algorithm. Presence of a remaining positive in-degree after the
// pass indicates a cycle findCycle should already have caught; treated as
// an internal invariant violation here.
func computeLevels(g *Graph) error {
	inDegree := make(map[string]int, len(g.Nodes))
	for id, n := range g.Nodes {
		inDegree[id] = len(n.Dependencies)
	}

	var queue []string
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
			g.Nodes[id].Level = 0
		}
	}
	sort.Strings(queue)

	processed := 0
	for len(queue) > 0 {
		sort.Strings(queue)
		id := queue[0]
		queue = queue[1:]
		processed++

		n := g.Nodes[id]
		for _, dep := range n.Dependents {
			inDegree[dep]--
			if lvl := n.Level + 1; lvl > g.Nodes[dep].Level {
				g.Nodes[dep].Level = lvl
			}
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if processed != len(g.Nodes) {
		return types.NewGraphError(types.CodeGraphCycle, "", "internal: cycle survived acyclicity check")
	}
	for id, n := range g.Nodes {
		g.Levels[id] = n.Level
	}
	return nil
}

// buildGroupsAndOrder derives ParallelGroups and a deterministic,
// level-stable ExecutionOrder (within a level, ascending by id).
func buildGroupsAndOrder(g *Graph) {
	byLevel := make(map[int][]string)
	maxLevel := -1
	for id, lvl := range g.Levels {
		byLevel[lvl] = append(byLevel[lvl], id)
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	for lvl := 0; lvl <= maxLevel; lvl++ {
		ids := byLevel[lvl]
		sort.Strings(ids)
		g.ExecutionOrder = append(g.ExecutionOrder, ids...)
		if len(ids) > 1 {
			g.ParallelGroups = append(g.ParallelGroups, ParallelGroup{Level: lvl, TaskIDs: ids})
		}
	}
}
