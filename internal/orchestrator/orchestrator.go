// ABOUTME: drives a workflow's dependency graph level by level, owns the
// ABOUTME: ExecutionContext for one run, and implements executor.SubworkflowRunner
// ABOUTME: for workflowRef recursion

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ritualflow/engine/internal/executor"
	"github.com/ritualflow/engine/internal/graph"
	"github.com/ritualflow/engine/internal/template"
	"github.com/ritualflow/engine/internal/workflowref"
	"github.com/ritualflow/engine/pkg/types"
)

// VersionRecorder is the versioning collaborator the orchestrator calls
// best-effort after persisting the Running record. versioning.Service
// satisfies this.
type VersionRecorder interface {
	CreateVersionIfChanged(wf *types.WorkflowResource) (bool, *types.WorkflowVersion, error)
}

// Config bundles the orchestrator's collaborators.
type Config struct {
	Executor               *executor.Executor
	WorkflowProvider       types.WorkflowProvider
	ExecutionRepo          types.ExecutionRepository
	TaskExecutionRepo      types.TaskExecutionRepository
	Versioning             VersionRecorder
	Publisher              types.EventPublisher
	Resolver               *template.Resolver
	MaxWorkflowConcurrency int
	Clock                  types.Clock
	Logger                 types.Logger
}

// Orchestrator executes one WorkflowResource to completion, including
// recursive workflowRef sub-workflow invocations.
type Orchestrator struct {
	executor    *executor.Executor
	provider    types.WorkflowProvider
	execRepo    types.ExecutionRepository
	taskRepo    types.TaskExecutionRepository
	versioning  VersionRecorder
	publisher   types.EventPublisher
	resolver    *template.Resolver
	maxConc     int
	clock       types.Clock
	logger      types.Logger
}

// New builds an Orchestrator. The Orchestrator and its Executor are
// mutually dependent (the executor recurses into the orchestrator for
// workflowRef steps): callers typically leave cfg.Executor nil, call New,
// construct the executor with Subrunner set to the returned *Orchestrator,
// then call SetExecutor.
func New(cfg Config) (*Orchestrator, error) {
	maxConc, err := types.ValidateConcurrency(cfg.MaxWorkflowConcurrency, types.DefaultWorkflowConcurrency)
	if err != nil {
		return nil, fmt.Errorf("invalid orchestrator configuration: %w", err)
	}

	o := &Orchestrator{
		provider:   cfg.WorkflowProvider,
		execRepo:   cfg.ExecutionRepo,
		taskRepo:   cfg.TaskExecutionRepo,
		versioning: cfg.Versioning,
		publisher:  cfg.Publisher,
		resolver:   cfg.Resolver,
		maxConc:    maxConc,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	if o.resolver == nil {
		o.resolver = template.New()
	}
	o.executor = cfg.Executor
	return o, nil
}

// SetExecutor completes two-phase construction (see New) once the Executor
// has been built with this Orchestrator wired in as its SubworkflowRunner.
func (o *Orchestrator) SetExecutor(e *executor.Executor) { o.executor = e }

func (o *Orchestrator) now() time.Time {
	if o.clock != nil {
		return o.clock.Now()
	}
	return time.Now()
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Info().Msgf(format, args...)
	}
}

func newExecutionID() string { return uuid.NewString() }

// Execute runs wf to completion against input.
func (o *Orchestrator) Execute(ctx context.Context, wf *types.WorkflowResource, input map[string]any) (*types.ExecutionRecord, error) {
	return o.execute(ctx, wf, input, "", nil)
}

// RunChild implements executor.SubworkflowRunner: it resolves ref against
// the WorkflowProvider relative to parent's namespace, enforces the cycle
// guard against parent's call stack, and recurses into execute with a
// derived ExecutionContext that extends that call stack (so a grandchild
// cycle is still caught).
func (o *Orchestrator) RunChild(ctx context.Context, parent *types.ExecutionContext, ref string, input map[string]any) (*types.ExecutionRecord, error) {
	callerNamespace := "default"
	if len(parent.CallStack) > 0 {
		callerNamespace = namespaceOf(parent.CallStack[len(parent.CallStack)-1])
	}

	child, err := workflowref.Resolve(ref, callerNamespace, o.provider)
	if err != nil {
		return nil, err
	}

	qualified := workflowref.QualifiedName(child)
	if err := workflowref.CheckCycle(parent.CallStack, qualified); err != nil {
		return nil, err
	}

	return o.execute(ctx, child, input, parent.ExecutionID, parent)
}

func namespaceOf(qualified string) string {
	if i := strings.Index(qualified, "/"); i >= 0 {
		return qualified[:i]
	}
	return "default"
}

// execute is the shared root/child execution path. parentExecutionID and
// parentCtx are both zero-valued for a root invocation; a workflowRef
// recursion supplies both so the child's call stack extends the parent's.
func (o *Orchestrator) execute(ctx context.Context, wf *types.WorkflowResource, input map[string]any, parentExecutionID string, parentCtx *types.ExecutionContext) (*types.ExecutionRecord, error) {
	executionID := newExecutionID()
	startedAt := o.now()

	if err := validateInput(wf.InputSchema, input); err != nil {
		rec := o.failedRecord(executionID, wf, input, parentExecutionID, startedAt, "input validation: "+err.Error())
		o.persistExecution(rec)
		return rec, err
	}

	g, err := graph.Build(wf)
	if err != nil {
		rec := o.failedRecord(executionID, wf, input, parentExecutionID, startedAt, "graph build: "+err.Error())
		o.persistExecution(rec)
		return rec, err
	}

	rec := &types.ExecutionRecord{
		ID:                executionID,
		WorkflowName:      wf.Name(),
		ParentExecutionID: parentExecutionID,
		Status:            types.ExecutionRunning,
		Input:             input,
		StartedAt:         startedAt,
	}
	o.persistExecution(rec)
	o.emit(types.Event{Kind: types.EventWorkflowStarted, ExecutionID: executionID, WorkflowName: wf.Name(), Timestamp: startedAt})

	if o.versioning != nil {
		if _, _, err := o.versioning.CreateVersionIfChanged(wf); err != nil {
			o.logf("versioning: best-effort update failed for %q: %v", wf.Name(), err)
		}
	}

	var ectx *types.ExecutionContext
	if parentCtx != nil {
		ectx = parentCtx.ChildContext(executionID, workflowref.QualifiedName(wf), input)
	} else {
		ectx = types.NewExecutionContext(executionID, input, nil, workflowref.QualifiedName(wf))
	}

	taskErrs := o.runLevels(ctx, g, ectx, executionID, wf.Name())

	finishedAt := o.now()
	rec.FinishedAt = &finishedAt

	if ctx.Err() != nil {
		rec.Status = types.ExecutionCancelled
		rec.Error = "cancelled"
		o.persistExecution(rec)
		o.emit(types.Event{Kind: types.EventWorkflowCompleted, ExecutionID: executionID, WorkflowName: wf.Name(), Timestamp: finishedAt, Detail: map[string]any{"status": string(rec.Status)}})
		return rec, nil
	}

	if len(taskErrs) > 0 {
		rec.Status = types.ExecutionFailed
		rec.Error = joinErrors(taskErrs)
		o.persistExecution(rec)
		o.emit(types.Event{Kind: types.EventWorkflowCompleted, ExecutionID: executionID, WorkflowName: wf.Name(), Timestamp: finishedAt, Detail: map[string]any{"status": string(rec.Status)}})
		return rec, fmt.Errorf("workflow failed: %s", rec.Error)
	}

	output, err := o.resolver.EvaluateAll(wf.Output, template.NewScope(ectx))
	if err != nil {
		rec.Status = types.ExecutionFailed
		rec.Error = "output rendering: " + err.Error()
		o.persistExecution(rec)
		o.emit(types.Event{Kind: types.EventWorkflowCompleted, ExecutionID: executionID, WorkflowName: wf.Name(), Timestamp: finishedAt, Detail: map[string]any{"status": string(rec.Status)}})
		return rec, err
	}

	rec.Status = types.ExecutionSucceeded
	rec.Output = output
	o.persistExecution(rec)
	o.emit(types.Event{Kind: types.EventWorkflowCompleted, ExecutionID: executionID, WorkflowName: wf.Name(), Timestamp: finishedAt, Detail: map[string]any{"status": string(rec.Status)}})
	return rec, nil
}

// runLevels drives the graph level by level, fanning each level's ready
// tasks out under a shared maxWorkflowConcurrency semaphore and joining
// before advancing. It implements fail-fast: once any non-skipped task in a
// level fails, already-scheduled tasks at that level still run to
// completion, but no further level is scheduled.
func (o *Orchestrator) runLevels(ctx context.Context, g *graph.Graph, ectx *types.ExecutionContext, executionID, workflowName string) []string {
	byLevel := make(map[int][]string)
	maxLevel := -1
	for id, n := range g.Nodes {
		byLevel[n.Level] = append(byLevel[n.Level], id)
		if n.Level > maxLevel {
			maxLevel = n.Level
		}
	}

	sem := make(chan struct{}, o.maxConc)
	var mu sync.Mutex
	var errs []string

	for lvl := 0; lvl <= maxLevel; lvl++ {
		if ctx.Err() != nil {
			break
		}
		ids := byLevel[lvl]
		if len(ids) == 0 {
			continue
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			node := g.Nodes[id]
			wg.Add(1)
			go func(node *graph.Node) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				errMsg := o.runTask(ctx, node, ectx, executionID, workflowName)
				if errMsg != "" {
					mu.Lock()
					errs = append(errs, errMsg)
					mu.Unlock()
				}
			}(node)
		}
		wg.Wait()

		mu.Lock()
		hasFailure := len(errs) > 0
		mu.Unlock()
		if hasFailure {
			break
		}
	}

	return errs
}

// runTask executes one graph node's step to completion, updating ectx,
// persisting its TaskExecutionRecord, and emitting TaskStarted/TaskCompleted/
// SignalFlow. Returns a non-empty error message on non-skipped failure.
func (o *Orchestrator) runTask(ctx context.Context, node *graph.Node, ectx *types.ExecutionContext, executionID, workflowName string) string {
	taskID := node.ID
	startedAt := o.now()

	o.emit(types.Event{Kind: types.EventTaskStarted, ExecutionID: executionID, WorkflowName: workflowName, TaskID: taskID, Timestamp: startedAt})

	scope := template.NewScope(ectx)
	result := o.executor.Execute(ctx, node.Step, scope)

	finishedAt := o.now()
	status := types.TaskSucceeded
	switch {
	case result.Skipped:
		status = types.TaskSkipped
	case !result.Success:
		status = types.TaskFailed
	}

	taskRef := ""
	if tr, ok := node.Step.(*types.TaskRefStep); ok {
		taskRef = tr.TaskRef
	}

	o.persistTask(&types.TaskExecutionRecord{
		ID:          executionID + ":" + taskID,
		ExecutionID: executionID,
		TaskID:      taskID,
		TaskRef:     taskRef,
		Status:      status,
		Attempt:     result.RetryCount + 1,
		Output:      result.Output,
		Error:       result.Error,
		StartedAt:   startedAt,
		FinishedAt:  &finishedAt,
	})

	ectx.Tasks[taskID] = types.TaskState{Status: status, Output: result.Output, Error: result.Error}

	o.emit(types.Event{
		Kind: types.EventTaskCompleted, ExecutionID: executionID, WorkflowName: workflowName, TaskID: taskID, Timestamp: finishedAt,
		Detail: map[string]any{"status": string(status), "durationMs": result.DurationMs},
	})
	for _, dep := range node.Dependents {
		o.emit(types.Event{Kind: types.EventSignalFlow, ExecutionID: executionID, WorkflowName: workflowName, Timestamp: finishedAt, Detail: map[string]any{"from": taskID, "to": dep}})
	}

	if status == types.TaskFailed {
		msg := result.Error
		if msg == "" {
			msg = "task failed"
		}
		return fmt.Sprintf("%s: %s", taskID, msg)
	}
	return ""
}

func (o *Orchestrator) failedRecord(executionID string, wf *types.WorkflowResource, input map[string]any, parentExecutionID string, startedAt time.Time, errMsg string) *types.ExecutionRecord {
	finishedAt := o.now()
	return &types.ExecutionRecord{
		ID:                executionID,
		WorkflowName:      wf.Name(),
		ParentExecutionID: parentExecutionID,
		Status:            types.ExecutionFailed,
		Input:             input,
		Error:             errMsg,
		StartedAt:         startedAt,
		FinishedAt:        &finishedAt,
	}
}

func (o *Orchestrator) persistExecution(rec *types.ExecutionRecord) {
	if o.execRepo == nil {
		return
	}
	if err := o.execRepo.SaveExecution(rec); err != nil {
		o.logf("persistence: failed to save execution %q: %v", rec.ID, err)
	}
}

func (o *Orchestrator) persistTask(rec *types.TaskExecutionRecord) {
	if o.taskRepo == nil {
		return
	}
	if err := o.taskRepo.SaveTaskExecution(rec); err != nil {
		o.logf("persistence: failed to save task execution %q: %v", rec.ID, err)
	}
}

func (o *Orchestrator) emit(evt types.Event) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(evt)
}

func joinErrors(errs []string) string {
	return strings.Join(errs, "; ")
}

// Plan renders a non-executing dry-run view of wf: the deterministic task
// order and, for each taskRef/workflowRef step, its Input map rendered in
// preview mode (unresolved task outputs and missing input leaves become
// placeholder text rather than failing). No task is actually invoked.
func (o *Orchestrator) Plan(wf *types.WorkflowResource, input map[string]any) (*types.ExecutionPlan, error) {
	g, err := graph.Build(wf)
	if err != nil {
		return nil, err
	}

	ectx := types.NewExecutionContext("preview", input, nil, workflowref.QualifiedName(wf))
	scope := template.NewScope(ectx)

	resolved := make(map[string]map[string]any, len(g.Nodes))
	for id, node := range g.Nodes {
		var stepInput map[string]string
		switch s := node.Step.(type) {
		case *types.TaskRefStep:
			stepInput = s.Input
		case *types.WorkflowRefStep:
			stepInput = s.Input
		default:
			continue
		}
		rendered := make(map[string]any, len(stepInput))
		for k, expr := range stepInput {
			rendered[k] = o.resolver.ResolvePreview(expr, scope)
		}
		resolved[id] = rendered
	}

	return &types.ExecutionPlan{
		WorkflowName:   wf.Name(),
		Order:          g.ExecutionOrder,
		ResolvedInputs: resolved,
	}, nil
}
