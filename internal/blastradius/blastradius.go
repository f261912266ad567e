// ABOUTME: reverse-dependency BFS from a task name over the workflow
// ABOUTME: corpus, depth-limited and cycle-safe

package blastradius

import (
	"fmt"
	"sort"

	"github.com/ritualflow/engine/pkg/types"
)

// NodeKind tags whether a blast-radius graph node names a task or a workflow.
type NodeKind string

const (
	NodeTask     NodeKind = "task"
	NodeWorkflow NodeKind = "workflow"
)

// Node is one entry in the blast-radius graph. The source task is the single
// node with IsSource=true and Depth=0.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	IsSource bool     `json:"isSource,omitempty"`
	Depth    int      `json:"depth"`
}

// Edge records a reverse-dependency edge: From is the node whose change
// propagates to To (a task used by a workflow, or a sub-workflow used by a
// parent workflow via workflowRef).
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the node/edge set discovered by Analyze.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Summary tallies what Analyze found.
type Summary struct {
	AffectedWorkflows int         `json:"affectedWorkflows"`
	AffectedTasks     int         `json:"affectedTasks"`
	ByDepth           map[int]int `json:"byDepth"`
}

// Result is the full Analyze output.
type Result struct {
	Summary          Summary `json:"summary"`
	Graph            Graph   `json:"graph"`
	TruncatedAtDepth bool    `json:"truncatedAtDepth"`
}

// index is the reverse-dependency corpus built once per Analyze call from
// every workflow the provider knows about.
type index struct {
	// taskUsers[taskName] is the set of workflow names containing a taskRef step for taskName.
	taskUsers map[string]map[string]bool
	// workflowUsers[workflowName] is the set of parent workflow names containing a workflowRef step for workflowName.
	workflowUsers map[string]map[string]bool
	// workflowTasks[workflowName] is the sorted, de-duplicated set of task names the workflow references anywhere.
	workflowTasks map[string][]string
}

func buildIndex(provider types.WorkflowProvider) (*index, error) {
	names, err := provider.ListWorkflows()
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}

	idx := &index{
		taskUsers:     make(map[string]map[string]bool),
		workflowUsers: make(map[string]map[string]bool),
		workflowTasks: make(map[string][]string),
	}

	for _, name := range names {
		wf, err := provider.GetWorkflow(name)
		if err != nil {
			return nil, fmt.Errorf("loading workflow %q: %w", name, err)
		}

		taskSet := make(map[string]bool)
		walkRaw(wf.Tasks, func(taskRef string) {
			taskSet[taskRef] = true
			if idx.taskUsers[taskRef] == nil {
				idx.taskUsers[taskRef] = make(map[string]bool)
			}
			idx.taskUsers[taskRef][name] = true
		}, func(workflowRef string) {
			if idx.workflowUsers[workflowRef] == nil {
				idx.workflowUsers[workflowRef] = make(map[string]bool)
			}
			idx.workflowUsers[workflowRef][name] = true
		})

		tasks := make([]string, 0, len(taskSet))
		for t := range taskSet {
			tasks = append(tasks, t)
		}
		sort.Strings(tasks)
		idx.workflowTasks[name] = tasks
	}

	return idx, nil
}

// walkRaw recurses through a workflow's task tree, including steps nested
// inside condition/switch/forEach bodies, invoking onTask/onWorkflowRef for
// every taskRef/workflowRef step encountered.
func walkRaw(steps []types.RawTaskStep, onTask, onWorkflowRef func(string)) {
	for _, s := range steps {
		switch {
		case s.TaskRef != "":
			onTask(s.TaskRef)
		case s.WorkflowRef != "":
			onWorkflowRef(s.WorkflowRef)
		case s.When != "":
			walkRaw(s.Then, onTask, onWorkflowRef)
			walkRaw(s.Else, onTask, onWorkflowRef)
		case s.On != "":
			for _, c := range s.Cases {
				walkRaw(c.Steps, onTask, onWorkflowRef)
			}
			walkRaw(s.Default, onTask, onWorkflowRef)
		case s.Items != "":
			walkRaw(s.Body, onTask, onWorkflowRef)
		}
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type frontierItem struct {
	id    string
	kind  NodeKind
	depth int
}

// Analyze computes the blast radius of taskName: every workflow that uses it
// (directly, or transitively via workflowRef chains up to maxDepth), and
// every sibling task in each affected workflow.
func Analyze(provider types.WorkflowProvider, taskName string, maxDepth int) (*Result, error) {
	idx, err := buildIndex(provider)
	if err != nil {
		return nil, err
	}

	visitedWorkflows := make(map[string]bool)
	visitedTasks := map[string]bool{taskName: true}
	byDepth := map[int]int{0: 1}
	truncated := false

	nodes := []Node{{ID: taskName, Kind: NodeTask, IsSource: true, Depth: 0}}
	var edges []Edge
	queue := []frontierItem{{id: taskName, kind: NodeTask, depth: 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		nextDepth := item.depth + 1

		switch item.kind {
		case NodeTask:
			for _, wfName := range sortedKeys(idx.taskUsers[item.id]) {
				edges = append(edges, Edge{From: item.id, To: wfName})
				if visitedWorkflows[wfName] {
					continue
				}
				if nextDepth > maxDepth {
					truncated = true
					continue
				}
				visitedWorkflows[wfName] = true
				nodes = append(nodes, Node{ID: wfName, Kind: NodeWorkflow, Depth: nextDepth})
				byDepth[nextDepth]++
				queue = append(queue, frontierItem{id: wfName, kind: NodeWorkflow, depth: nextDepth})
			}

		case NodeWorkflow:
			for _, sibling := range idx.workflowTasks[item.id] {
				if sibling == taskName {
					continue
				}
				edges = append(edges, Edge{From: item.id, To: sibling})
				if visitedTasks[sibling] {
					continue
				}
				if nextDepth > maxDepth {
					truncated = true
					continue
				}
				visitedTasks[sibling] = true
				nodes = append(nodes, Node{ID: sibling, Kind: NodeTask, Depth: nextDepth})
				byDepth[nextDepth]++
			}

			for _, parentWf := range sortedKeys(idx.workflowUsers[item.id]) {
				edges = append(edges, Edge{From: item.id, To: parentWf})
				if visitedWorkflows[parentWf] {
					continue
				}
				if nextDepth > maxDepth {
					truncated = true
					continue
				}
				visitedWorkflows[parentWf] = true
				nodes = append(nodes, Node{ID: parentWf, Kind: NodeWorkflow, Depth: nextDepth})
				byDepth[nextDepth]++
				queue = append(queue, frontierItem{id: parentWf, kind: NodeWorkflow, depth: nextDepth})
			}
		}
	}

	return &Result{
		Summary: Summary{
			AffectedWorkflows: len(visitedWorkflows),
			AffectedTasks:     len(visitedTasks) - 1,
			ByDepth:           byDepth,
		},
		Graph:            Graph{Nodes: nodes, Edges: edges},
		TruncatedAtDepth: truncated,
	}, nil
}
