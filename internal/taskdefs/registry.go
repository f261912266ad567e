// ABOUTME: In-memory TaskDefinition registry
// ABOUTME: Backs the task executor's lookups and the CLI/REST task catalog views

package taskdefs

import (
	"sort"
	"sync"

	"github.com/ritualflow/engine/pkg/types"
)

// Registry is a concrete types.TaskDefinitionProvider: a name-keyed catalog
// of registered TaskDefinitions, loaded once at startup (from config/YAML)
// and read concurrently by the executor, the CLI `list-tasks` command, and
// the `/api/v1/tasks` REST resource. Its Register/lookup shape is
// generalized from concrete TaskExecutor implementations to the
// declarative types.TaskDefinition model the executor dispatches against.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*types.TaskDefinition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*types.TaskDefinition)}
}

// Register adds or replaces a TaskDefinition under its own Name.
func (r *Registry) Register(def *types.TaskDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
}

// GetTaskDefinition implements types.TaskDefinitionProvider.
func (r *Registry) GetTaskDefinition(name string) (*types.TaskDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	if !ok {
		return nil, types.NewTaskError("", name, types.CodeUnknownTaskRef, "not registered", nil)
	}
	return d, nil
}

// ListTaskDefinitions implements types.TaskDefinitionProvider, returning the
// catalog sorted by name for a stable CLI/REST listing.
func (r *Registry) ListTaskDefinitions() ([]*types.TaskDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]*types.TaskDefinition, 0, len(names))
	for _, n := range names {
		out = append(out, r.defs[n])
	}
	return out, nil
}
