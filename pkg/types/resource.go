// ABOUTME: Workflow definition types: metadata, input schema, output mapping, task steps
// ABOUTME: A WorkflowResource is immutable once versioned; re-deployment yields a new version

package types

import "time"

// WorkflowMetadata identifies a workflow definition.
type WorkflowMetadata struct {
	Name      string            `yaml:"name" json:"name"`
	Namespace string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Version   string            `yaml:"version,omitempty" json:"version,omitempty"`
	Labels    map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// InputProperty describes one property of a workflow's input schema.
type InputProperty struct {
	Type     string `yaml:"type" json:"type"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// WorkflowResource is the declarative definition of a workflow: metadata,
// input schema, output mapping, and an ordered sequence of task steps.
// Definitions are immutable once versioned (see versioning.Service).
type WorkflowResource struct {
	Metadata    WorkflowMetadata         `yaml:"metadata" json:"metadata"`
	InputSchema map[string]InputProperty `yaml:"inputSchema,omitempty" json:"inputSchema,omitempty"`
	Output      map[string]string        `yaml:"output,omitempty" json:"output,omitempty"`
	Tasks       []RawTaskStep            `yaml:"tasks" json:"tasks"`
}

// Name is a convenience accessor used throughout the engine.
func (w *WorkflowResource) Name() string { return w.Metadata.Name }

// Namespace is a convenience accessor; defaults to "default".
func (w *WorkflowResource) Namespace() string {
	if w.Metadata.Namespace == "" {
		return "default"
	}
	return w.Metadata.Namespace
}

// RetryPolicy configures per-task retry/backoff behavior.
type RetryPolicy struct {
	MaxAttempts      int           `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
	InitialBackoff   time.Duration `yaml:"initialBackoff,omitempty" json:"initialBackoff,omitempty"`
	Multiplier       float64       `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	Jitter           float64       `yaml:"jitter,omitempty" json:"jitter,omitempty"`
	RetryableErrors  []string      `yaml:"retryableErrors,omitempty" json:"retryableErrors,omitempty"`
}

// Attempts returns 1 + retries, defaulting MaxAttempts to 1 (no retry) when unset.
func (p *RetryPolicy) Attempts() int {
	if p == nil || p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// CircuitBreakerConfig configures the per-task-ref circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold  int           `yaml:"failureThreshold,omitempty" json:"failureThreshold,omitempty"`
	SamplingDuration  time.Duration `yaml:"samplingDuration,omitempty" json:"samplingDuration,omitempty"`
	BreakDuration     time.Duration `yaml:"breakDuration,omitempty" json:"breakDuration,omitempty"`
	HalfOpenRequests  int           `yaml:"halfOpenRequests,omitempty" json:"halfOpenRequests,omitempty"`
}

// HTTPRequestTemplate describes the HTTP invocation for a registered task.
type HTTPRequestTemplate struct {
	Method  string            `yaml:"method" json:"method"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty" json:"body,omitempty"`
}

// TaskDefinition is a registered, invocable task (typically HTTP-backed),
// looked up by name via TaskDefinitionProvider. Not part of a workflow's own
// definition; registered separately and consumed by name.
type TaskDefinition struct {
	Name           string                `json:"name"`
	InputSchema    map[string]InputProperty `json:"inputSchema,omitempty"`
	OutputSchema   map[string]InputProperty `json:"outputSchema,omitempty"`
	Request        HTTPRequestTemplate   `json:"request"`
	Retry          *RetryPolicy          `json:"retry,omitempty"`
	Timeout        time.Duration         `json:"timeout,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `json:"circuitBreaker,omitempty"`
}

// DefaultTaskTimeout is used when neither a step nor its task definition
// specifies one.
const DefaultTaskTimeout = 30 * time.Second

// EffectiveTimeout resolves step.timeout ∨ taskDef.timeout ∨ default(30s).
func EffectiveTimeout(stepTimeout, defTimeout time.Duration) time.Duration {
	if stepTimeout > 0 {
		return stepTimeout
	}
	if defTimeout > 0 {
		return defTimeout
	}
	return DefaultTaskTimeout
}
