// ABOUTME: Circuit breaker state snapshot shared between internal/retry and wire-level reporting

package types

import "time"

// CircuitState mirrors the Closed/Open/HalfOpen machine, independent
// of the underlying gobreaker representation so callers outside
// internal/retry never import gobreaker directly.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

// CircuitBreakerSnapshot is a point-in-time read of one task-ref's breaker,
// exposed over the wire-level compatibility surface and CLI.
type CircuitBreakerSnapshot struct {
	TaskRef       string       `json:"taskRef"`
	State         CircuitState `json:"state"`
	Failures      int          `json:"failures"`
	Successes     int          `json:"successes"`
	LastFailureAt *time.Time   `json:"lastFailureAt,omitempty"`
	OpenedAt      *time.Time   `json:"openedAt,omitempty"`
	ForcedOverride bool        `json:"forcedOverride,omitempty"`
}
