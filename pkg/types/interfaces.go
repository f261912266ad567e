// ABOUTME: Collaborator interfaces: logging, clock, provider lookups, and persistence contracts
// ABOUTME: Core engine packages depend only on these, never on a concrete zerolog/sqlx/gobreaker type

package types

import "time"

// Logger provides structured logging interface
type Logger interface {
	// Debug logs a debug message
	Debug() LogEvent

	// Info logs an info message
	Info() LogEvent

	// Warn logs a warning message
	Warn() LogEvent

	// Error logs an error message
	Error() LogEvent

	// With returns a logger with additional context
	With() LogContext
}

// LogEvent represents a log event being constructed
type LogEvent interface {
	// Str adds a string field
	Str(key, val string) LogEvent

	// Int adds an integer field
	Int(key string, val int) LogEvent

	// Dur adds a duration field
	Dur(key string, val time.Duration) LogEvent

	// Err adds an error field
	Err(err error) LogEvent

	// Bool adds a boolean field
	Bool(key string, val bool) LogEvent

	// Any adds an arbitrary field
	Any(key string, val interface{}) LogEvent

	// Msg logs the event with a message
	Msg(msg string)

	// Msgf logs the event with a formatted message
	Msgf(format string, args ...interface{})
}

// LogContext represents a logger context being constructed
type LogContext interface {
	// Str adds a string field to the context
	Str(key, val string) LogContext

	// Logger returns the logger with the built context
	Logger() Logger
}

// Clock abstracts wall-clock reads so retry/schedule logic stays pure and
// testable (ClockStub in tests); the schedule trigger's pure functions never
// call time.Now() directly.
type Clock interface {
	Now() time.Time
}

// TaskDefinitionProvider resolves a registered TaskDefinition by name, and
// enumerates the full catalog for the CLI `list-tasks` command and the
// `/api/v1/tasks` REST resource.
type TaskDefinitionProvider interface {
	GetTaskDefinition(name string) (*TaskDefinition, error)
	ListTaskDefinitions() ([]*TaskDefinition, error)
}

// WorkflowProvider resolves a WorkflowResource by name for workflowRef steps
// and for CLI/server-driven root invocations. Implementations may load
// from an in-memory registry, local disk, or a remote object store.
type WorkflowProvider interface {
	GetWorkflow(name string) (*WorkflowResource, error)
	ListWorkflows() ([]string, error)
}

// ExecutionRepository persists top-level ExecutionRecords.
type ExecutionRepository interface {
	SaveExecution(rec *ExecutionRecord) error
	GetExecution(id string) (*ExecutionRecord, error)
	ListExecutions(workflowName string) ([]*ExecutionRecord, error)
}

// TaskExecutionRepository persists per-task TaskExecutionRecords.
type TaskExecutionRepository interface {
	SaveTaskExecution(rec *TaskExecutionRecord) error
	ListTaskExecutions(executionID string) ([]*TaskExecutionRecord, error)
}

// WorkflowVersionRepository persists content-hashed WorkflowVersions.
type WorkflowVersionRepository interface {
	SaveVersion(v *WorkflowVersion) error
	GetVersion(workflowName, hash string) (*WorkflowVersion, error)
	ListVersions(workflowName string) ([]*WorkflowVersion, error)
	LatestVersion(workflowName string) (*WorkflowVersion, error)
}

// EventPublisher fans out lifecycle events to subscribers.
type EventPublisher interface {
	Publish(event Event)
	Subscribe() (ch <-chan Event, cancel func())
}

// EventKind names the five lifecycle events a workflow run publishes.
type EventKind string

const (
	EventWorkflowStarted EventKind = "WorkflowStarted"
	EventTaskStarted     EventKind = "TaskStarted"
	EventTaskCompleted   EventKind = "TaskCompleted"
	EventWorkflowCompleted EventKind = "WorkflowCompleted"
	EventSignalFlow      EventKind = "SignalFlow"
)

// Event is one lifecycle notification published during orchestration.
type Event struct {
	Kind        EventKind
	ExecutionID string
	WorkflowName string
	TaskID      string
	Timestamp   time.Time
	Detail      map[string]any
}
