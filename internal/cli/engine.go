// ABOUTME: Shared collaborator wiring for CLI commands: provider, persistence, orchestrator, executor
// ABOUTME: One construction path so run/dry-run/serve/versions/blast-radius see the same engine

package cli

import (
	"fmt"

	"github.com/ritualflow/engine/internal/events"
	"github.com/ritualflow/engine/internal/executor"
	"github.com/ritualflow/engine/internal/filesystem"
	"github.com/ritualflow/engine/internal/metrics"
	"github.com/ritualflow/engine/internal/orchestrator"
	"github.com/ritualflow/engine/internal/persistence/memstore"
	"github.com/ritualflow/engine/internal/retry"
	"github.com/ritualflow/engine/internal/taskdefs"
	"github.com/ritualflow/engine/internal/template"
	"github.com/ritualflow/engine/internal/versioning"
	"github.com/ritualflow/engine/internal/workflowprovider"
	"github.com/ritualflow/engine/pkg/types"
)

// engine bundles the collaborators every command needs: a workflow source,
// an orchestrator ready to Execute/Plan, and the persistence/versioning
// stores backing `versions`/`list-tasks`/`serve`.
type engine struct {
	provider     types.WorkflowProvider
	store        *memstore.Store
	taskDefs     *taskdefs.Registry
	publisher    *events.Publisher
	versioning   *versioning.Service
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Registry
	stopMetrics  func()
}

// buildEngine wires one engine from the process's global flags. Every
// command that needs to run or inspect a workflow calls this first.
func buildEngine() (*engine, error) {
	provider, err := workflowprovider.New(workflowsDir, &filesystem.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening workflow source %q: %w", workflowsDir, err)
	}

	store := memstore.New()
	pub := events.New()
	defRegistry := taskdefs.New()
	if taskDefsFile != "" {
		if err := taskdefs.LoadFile(defRegistry, taskDefsFile); err != nil {
			return nil, err
		}
	}

	vsvc := versioning.New(store, nil)

	o, err := orchestrator.New(orchestrator.Config{
		WorkflowProvider:       provider,
		ExecutionRepo:          store,
		TaskExecutionRepo:      store,
		Versioning:             vsvc,
		Publisher:              pub,
		Resolver:               template.New(),
		MaxWorkflowConcurrency: 32,
		Logger:                 GetLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("constructing orchestrator: %w", err)
	}

	breakers := retry.NewManager()
	mreg := metrics.New()
	breakers.SetTripHook(mreg.RecordCircuitBreakerTrip)
	stopMetrics := metrics.Watch(mreg, pub)

	exec := executor.New(executor.Config{
		Resolver:  template.New(),
		TaskDefs:  defRegistry,
		Breakers:  breakers,
		Subrunner: o,
		Logger:    GetLogger(),
	})
	o.SetExecutor(exec)

	return &engine{
		provider:     provider,
		store:        store,
		taskDefs:     defRegistry,
		publisher:    pub,
		versioning:   vsvc,
		orchestrator: o,
		metrics:      mreg,
		stopMetrics:  stopMetrics,
	}, nil
}
