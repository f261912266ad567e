// ABOUTME: Execution-time records: ExecutionContext scope, ExecutionRecord/TaskExecutionRecord
// ABOUTME: persisted history, and the status enums driving orchestration transitions

package types

import "time"

// ExecutionStatus is the lifecycle state of a whole workflow execution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// TaskStatus is the lifecycle state of a single task within an execution.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
	TaskCancelled TaskStatus = "cancelled"
)

// ExecutionContext is the mutable scope threaded through one workflow run:
// the rendered input, each completed task's output keyed by task id, and the
// environment snapshot visible to `{{env.*}}`. WorkflowRef calls push a new
// CallStack frame rather than mutating the parent's.
type ExecutionContext struct {
	ExecutionID string
	Input       map[string]any
	Env         map[string]string
	Tasks       map[string]TaskState
	CallStack   []string // workflow names from root to current, cycle-guard witness
}

// TaskState is the resolved output of a completed (or in-flight) task, as
// seen by downstream `{{tasks.<id>.output.*}}` references.
type TaskState struct {
	Status TaskStatus
	Output any
	Error  string
}

// NewExecutionContext seeds a fresh scope for a root workflow invocation.
func NewExecutionContext(executionID string, input map[string]any, env map[string]string, rootWorkflow string) *ExecutionContext {
	return &ExecutionContext{
		ExecutionID: executionID,
		Input:       input,
		Env:         env,
		Tasks:       make(map[string]TaskState),
		CallStack:   []string{rootWorkflow},
	}
}

// ChildContext derives the scope for a workflowRef invocation: a fresh Tasks
// map (the child has its own task namespace) but an extended CallStack so the
// cycle guard can detect the child calling back into an ancestor.
func (c *ExecutionContext) ChildContext(childExecutionID, childWorkflow string, input map[string]any) *ExecutionContext {
	stack := make([]string, len(c.CallStack), len(c.CallStack)+1)
	copy(stack, c.CallStack)
	stack = append(stack, childWorkflow)
	return &ExecutionContext{
		ExecutionID: childExecutionID,
		Input:       input,
		Env:         c.Env,
		Tasks:       make(map[string]TaskState),
		CallStack:   stack,
	}
}

// ExecutionRecord is the persisted top-level record of one workflow run.
type ExecutionRecord struct {
	ID             string            `json:"id"`
	WorkflowName   string            `json:"workflowName"`
	WorkflowVersion string           `json:"workflowVersion"`
	ParentExecutionID string         `json:"parentExecutionId,omitempty"`
	Status         ExecutionStatus   `json:"status"`
	Input          map[string]any    `json:"input"`
	Output         map[string]any    `json:"output,omitempty"`
	Error          string            `json:"error,omitempty"`
	StartedAt      time.Time         `json:"startedAt"`
	FinishedAt     *time.Time        `json:"finishedAt,omitempty"`
}

// Duration returns the elapsed wall time, or the zero duration if unfinished.
func (r *ExecutionRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TaskExecutionRecord is the persisted record of one task's invocation
// within an ExecutionRecord, including retry attempt history.
type TaskExecutionRecord struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"executionId"`
	TaskID      string         `json:"taskId"`
	TaskRef     string         `json:"taskRef,omitempty"`
	Status      TaskStatus     `json:"status"`
	Attempt     int            `json:"attempt"`
	Input       map[string]any `json:"input,omitempty"`
	Output      any            `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  *time.Time     `json:"finishedAt,omitempty"`
}

// ExecutionPlan is the rendered, non-executing dry-run output: the ordered
// task list with resolved (or Preview-mode placeholder) inputs. No task is
// actually invoked.
type ExecutionPlan struct {
	WorkflowName string              `json:"workflowName"`
	Order        []string            `json:"order"`
	ResolvedInputs map[string]map[string]any `json:"resolvedInputs"`
}

// ExecutionTrace is the flattened, time-ordered event list for one execution.
type ExecutionTrace struct {
	ExecutionID string          `json:"executionId"`
	Events      []TraceEvent    `json:"events"`
}

// TraceEvent is one entry in an ExecutionTrace.
type TraceEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	TaskID    string    `json:"taskId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// ExecutionResult is the user-visible shape of a completed (or cancelled)
// execution: always present regardless of outcome, with `Error` a
// human-readable sentence and `Errors` carrying the machine code per
// failed task for programmatic handling.
type ExecutionResult struct {
	Success     bool                   `json:"success"`
	Status      ExecutionStatus        `json:"status"`
	Output      map[string]any         `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Errors      []TaskFailure          `json:"errors,omitempty"`
	TaskDetails []*TaskExecutionRecord `json:"taskDetails"`
}

// TaskFailure is one entry of ExecutionResult.Errors: the failed task's id
// and its stable error code.
type TaskFailure struct {
	TaskID string `json:"taskId"`
	Code   Code   `json:"code"`
	Error  string `json:"error"`
}

// NewExecutionResult assembles the user-visible result from a finished
// ExecutionRecord and its per-task records.
func NewExecutionResult(rec *ExecutionRecord, tasks []*TaskExecutionRecord) *ExecutionResult {
	result := &ExecutionResult{
		Success:     rec.Status == ExecutionSucceeded,
		Status:      rec.Status,
		Output:      rec.Output,
		Error:       rec.Error,
		TaskDetails: tasks,
	}
	for _, t := range tasks {
		if t.Status == TaskFailed {
			result.Errors = append(result.Errors, TaskFailure{TaskID: t.TaskID, Code: CodeTaskFailed, Error: t.Error})
		}
	}
	return result
}

// WorkflowStats is the operational rollup for one workflow name.
type WorkflowStats struct {
	WorkflowName  string        `json:"workflowName"`
	TotalRuns     int           `json:"totalRuns"`
	SucceededRuns int           `json:"succeededRuns"`
	FailedRuns    int           `json:"failedRuns"`
	AverageDuration time.Duration `json:"averageDuration"`
}
