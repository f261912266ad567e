// ABOUTME: WorkflowRef grammar: name | name@version | namespace/name | namespace/name@version
// ABOUTME: Parse tie-breaks: first "/" splits namespace, last "@" splits version

package workflowref

import (
	"strings"

	"github.com/ritualflow/engine/pkg/types"
)

// Ref is a parsed workflowRef reference.
type Ref struct {
	Namespace string // empty means "inherit the caller's namespace"
	Name      string
	Version   string // empty means "any version"
}

// ParseRef parses the grammar `name | name@version | namespace/name | namespace/name@version`.
func ParseRef(raw string) (Ref, error) {
	if raw == "" {
		return Ref{}, types.NewSubworkflowError(types.CodeSubworkflowMissing, raw, "empty workflowRef", nil)
	}

	rest := raw
	var namespace string
	if i := strings.Index(rest, "/"); i >= 0 {
		namespace = rest[:i]
		rest = rest[i+1:]
	}

	var version string
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		version = rest[i+1:]
		rest = rest[:i]
	}

	if rest == "" {
		return Ref{}, types.NewSubworkflowError(types.CodeSubworkflowMissing, raw, "missing workflow name", nil)
	}

	return Ref{Namespace: namespace, Name: rest, Version: version}, nil
}

func splitQualified(id string) (namespace, name string) {
	if i := strings.Index(id, "/"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "default", id
}

// Resolve resolves a workflowRef string against the set of workflows a
// WorkflowProvider currently knows about, defaulting an omitted namespace to
// the calling workflow's own namespace.
func Resolve(raw, callerNamespace string, provider types.WorkflowProvider) (*types.WorkflowResource, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return nil, err
	}
	namespace := ref.Namespace
	if namespace == "" {
		namespace = callerNamespace
	}
	if namespace == "" {
		namespace = "default"
	}

	ids, err := provider.ListWorkflows()
	if err != nil {
		return nil, types.NewSubworkflowError(types.CodeSubworkflowMissing, raw, "listing workflows: "+err.Error(), nil)
	}

	var matches []*types.WorkflowResource
	for _, id := range ids {
		idNamespace, idName := splitQualified(id)
		if idName != ref.Name || idNamespace != namespace {
			continue
		}
		wf, err := provider.GetWorkflow(id)
		if err != nil {
			continue
		}
		if ref.Version != "" && wf.Metadata.Version != ref.Version {
			continue
		}
		matches = append(matches, wf)
	}

	switch len(matches) {
	case 0:
		return nil, types.NewSubworkflowError(types.CodeSubworkflowMissing, raw, "no matching workflow", nil)
	case 1:
		return matches[0], nil
	default:
		return nil, types.NewSubworkflowError(types.CodeSubworkflowAmbiguous, raw, "multiple matching workflows", nil)
	}
}

// CheckCycle fails with SUBWORKFLOW_CYCLIC, carrying the witness cycle, when
// childWorkflow already appears in the caller's call stack.
func CheckCycle(callStack []string, childWorkflow string) error {
	for i, name := range callStack {
		if name == childWorkflow {
			witness := append(append([]string(nil), callStack[i:]...), childWorkflow)
			return types.NewSubworkflowError(types.CodeSubworkflowCyclic, childWorkflow, "cyclic sub-workflow invocation", witness)
		}
	}
	return nil
}

// QualifiedName formats a workflow's identifier for use as a ListWorkflows
// entry and as a call-stack frame: "namespace/name".
func QualifiedName(wf *types.WorkflowResource) string {
	return wf.Namespace() + "/" + wf.Name()
}
