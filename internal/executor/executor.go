// ABOUTME: dispatches a step by variant: taskRef, workflowRef, condition, switch, forEach
// ABOUTME: generalized from a single Executor shape to the tagged-sum Step model

package executor

import (
	"context"
	"net/http"
	"time"

	"github.com/ritualflow/engine/internal/retry"
	"github.com/ritualflow/engine/internal/template"
	"github.com/ritualflow/engine/pkg/types"
)

// SubworkflowRunner lets the executor recurse into the orchestrator for a
// workflowRef step without an import cycle (orchestrator already depends on
// executor). The orchestrator implements this interface.
type SubworkflowRunner interface {
	RunChild(ctx context.Context, parent *types.ExecutionContext, ref string, input map[string]any) (*types.ExecutionRecord, error)
}

// Executor dispatches one step to completion, including nested
// condition/switch/forEach bodies.
type Executor struct {
	resolver   *template.Resolver
	taskDefs   types.TaskDefinitionProvider
	httpClient *http.Client
	breakers   *retry.Manager
	subrunner  SubworkflowRunner
	clock      types.Clock
	logger     types.Logger
}

// Config bundles Executor collaborators.
type Config struct {
	Resolver   *template.Resolver
	TaskDefs   types.TaskDefinitionProvider
	HTTPClient *http.Client
	Breakers   *retry.Manager
	Subrunner  SubworkflowRunner
	Clock      types.Clock
	Logger     types.Logger
}

// New creates an Executor from the given collaborators, defaulting an HTTP
// client with a bounded transport when none is supplied.
func New(cfg Config) *Executor {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 32},
		}
	}
	return &Executor{
		resolver:   cfg.Resolver,
		taskDefs:   cfg.TaskDefs,
		httpClient: client,
		breakers:   cfg.Breakers,
		subrunner:  cfg.Subrunner,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
}

// Execute dispatches step against scope. A taskRef invocation runs under
// step.Header().Timeout (or the task definition's, or the 30s default) as a
// context deadline; a workflowRef invocation runs under ctx as given, with
// no deadline of its own.
func (e *Executor) Execute(ctx context.Context, step types.Step, scope template.Scope) Result {
	switch s := step.(type) {
	case *types.TaskRefStep:
		return e.executeTaskRef(ctx, s, scope)
	case *types.WorkflowRefStep:
		return e.executeWorkflowRef(ctx, s, scope)
	case *types.ConditionStep:
		return e.executeCondition(ctx, s, scope)
	case *types.SwitchStep:
		return e.executeSwitch(ctx, s, scope)
	case *types.ForEachStep:
		return e.executeForEach(ctx, s, scope)
	}
	return Result{Success: false, Error: "unknown step variant", ErrorCode: string(types.CodeInvalidStep)}
}

func (e *Executor) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Info().Msgf(format, args...)
	}
}

func (e *Executor) executeTaskRef(ctx context.Context, s *types.TaskRefStep, scope template.Scope) Result {
	def, err := e.taskDefs.GetTaskDefinition(s.TaskRef)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: string(types.CodeUnknownTaskRef)}
	}

	timeout := types.EffectiveTimeout(s.Timeout, def.Timeout)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.logf("executing taskRef %q (%s)", s.ID, s.TaskRef)
	result := e.invokeHTTP(reqCtx, s, def, scope)
	if reqCtx.Err() == context.DeadlineExceeded && !result.Success {
		result.ErrorCode = string(types.CodeTaskTimeout)
		result.Error = "task timed out after " + timeout.String()
	}
	return result
}

func (e *Executor) executeWorkflowRef(ctx context.Context, s *types.WorkflowRefStep, scope template.Scope) Result {
	start := time.Now()
	input, err := e.resolver.EvaluateAll(s.Input, scope)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: string(types.CodeTemplateError), DurationMs: ms(start)}
	}

	rec, err := e.subrunner.RunChild(ctx, scope.Ctx, s.WorkflowRef, input)
	if err != nil {
		code := types.CodeSubworkflowMissing
		if classified, ok := err.(types.Classified); ok {
			code = classified.Code()
		}
		return Result{Success: false, Error: err.Error(), ErrorCode: string(code), DurationMs: ms(start)}
	}

	switch rec.Status {
	case types.ExecutionSucceeded:
		return Result{Success: true, Output: rec.Output, DurationMs: ms(start)}
	case types.ExecutionCancelled:
		return Result{Success: false, Error: "cancelled", ErrorCode: string(types.CodeCancelled), DurationMs: ms(start)}
	default:
		errMsg := rec.Error
		if errMsg == "" {
			errMsg = "sub-workflow failed"
		}
		return Result{Success: false, Error: errMsg, ErrorCode: string(types.CodeTaskFailed), DurationMs: ms(start)}
	}
}

func (e *Executor) executeCondition(ctx context.Context, s *types.ConditionStep, scope template.Scope) Result {
	start := time.Now()
	v, err := e.resolver.Resolve(s.When, scope)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: string(types.CodeTemplateError), DurationMs: ms(start)}
	}

	branch := s.Else
	if Truthy(v) {
		branch = s.Then
	}
	if len(branch) == 0 {
		return Result{Success: true, Skipped: true, DurationMs: ms(start)}
	}
	return e.executeSequence(ctx, branch, scope)
}

func (e *Executor) executeSwitch(ctx context.Context, s *types.SwitchStep, scope template.Scope) Result {
	start := time.Now()
	v, err := e.resolver.ResolveString(s.On, scope)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: string(types.CodeTemplateError), DurationMs: ms(start)}
	}

	for _, c := range s.Cases {
		if c.Value == v {
			if len(c.Steps) == 0 {
				return Result{Success: true, Skipped: true, DurationMs: ms(start)}
			}
			return e.executeSequence(ctx, c.Steps, scope)
		}
	}
	if len(s.Default) == 0 {
		return Result{Success: true, Skipped: true, DurationMs: ms(start)}
	}
	return e.executeSequence(ctx, s.Default, scope)
}

// executeSequence runs a nested raw step list in order, short-circuiting on
// the first failure; its Output is the last step's Output when there is
// exactly one, or a map keyed by step id when there are several.
func (e *Executor) executeSequence(ctx context.Context, raw []types.RawTaskStep, scope template.Scope) Result {
	steps, err := types.BuildSteps(raw)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: string(types.CodeInvalidStep)}
	}

	if len(steps) == 1 {
		return e.Execute(ctx, steps[0], scope)
	}

	outputs := make(map[string]any, len(steps))
	var total int64
	for _, step := range steps {
		r := e.Execute(ctx, step, scope)
		total += r.DurationMs
		if !r.Success {
			r.DurationMs = total
			return r
		}
		outputs[step.Header().ID] = r.Output
	}
	return Result{Success: true, Output: outputs, DurationMs: total}
}
