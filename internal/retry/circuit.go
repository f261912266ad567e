// ABOUTME: Per-task-ref circuit breaker wrapping sony/gobreaker with manual override controls
// ABOUTME: gobreaker has no native ForceOpen/ForceClose/Reset, so a flag layers on top of it

package retry

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ritualflow/engine/pkg/types"
)

// ErrCircuitOpen is returned by CanExecute/Execute when the breaker is open
// or manually forced open.
var ErrCircuitOpen = errors.New(string(types.CodeCircuitOpen))

// Breaker wraps one task-ref's gobreaker.CircuitBreaker, translating its
// state machine into a Closed/Open/HalfOpen snapshot contract and
// adding the manual overrides gobreaker itself does not expose.
type Breaker struct {
	taskRef string
	cb      *gobreaker.CircuitBreaker

	mu             sync.Mutex
	forcedOpen     bool
	forcedClosed   bool
	lastFailureAt  *time.Time
	openedAt       *time.Time
}

// NewBreaker builds a Breaker for one task-ref from its CircuitBreakerConfig.
// A nil config, or any zero field, falls back to the defaults: trip after 5
// consecutive failures, 60s sampling interval, 30s break, 1 half-open probe.
func NewBreaker(taskRef string, cfg *types.CircuitBreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *Breaker {
	b := &Breaker{taskRef: taskRef}

	threshold := uint32(5)
	sampling := 60 * time.Second
	breakDur := 30 * time.Second
	halfOpenReq := uint32(1)
	if cfg != nil {
		if cfg.FailureThreshold > 0 {
			threshold = uint32(cfg.FailureThreshold)
		}
		if cfg.SamplingDuration > 0 {
			sampling = cfg.SamplingDuration
		}
		if cfg.BreakDuration > 0 {
			breakDur = cfg.BreakDuration
		}
		if cfg.HalfOpenRequests > 0 {
			halfOpenReq = uint32(cfg.HalfOpenRequests)
		}
	}

	settings := gobreaker.Settings{
		Name:        taskRef,
		MaxRequests: halfOpenReq,
		Interval:    sampling,
		Timeout:     breakDur,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if onStateChange != nil {
		settings.OnStateChange = onStateChange
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// CanExecute reports whether an invocation may proceed right now, honoring
// a manual ForceOpen/ForceClose override ahead of the underlying breaker's
// own state.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.forcedOpen {
		return false
	}
	if b.forcedClosed {
		return true
	}
	return b.cb.State() != gobreaker.StateOpen
}

// RecordSuccess reports a successful invocation to the underlying breaker.
func (b *Breaker) RecordSuccess() {
	_, _ = b.cb.Execute(func() (interface{}, error) { return nil, nil })
}

// RecordFailure reports a failed invocation to the underlying breaker and
// updates the manual-override bookkeeping timestamps.
func (b *Breaker) RecordFailure() {
	now := time.Now()
	b.mu.Lock()
	b.lastFailureAt = &now
	b.mu.Unlock()
	_, _ = b.cb.Execute(func() (interface{}, error) { return nil, errors.New("failure") })
}

// ForceOpen manually forces the breaker open, refusing all invocations
// until ForceClose or Reset is called.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forcedOpen = true
	b.forcedClosed = false
	now := time.Now()
	b.openedAt = &now
}

// ForceClose manually forces the breaker closed, overriding its learned
// state until Reset is called.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forcedClosed = true
	b.forcedOpen = false
}

// Reset clears any manual override and the LastFailureAt/OpenedAt
// timestamps. The underlying gobreaker's state and counts are left as they
// are: a breaker that tripped on its own stays open until its break
// duration elapses.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.forcedOpen = false
	b.forcedClosed = false
	b.lastFailureAt = nil
	b.openedAt = nil
	b.mu.Unlock()
}

// GetState returns an immutable point-in-time snapshot (copy, not a live
// reference).
func (b *Breaker) GetState() types.CircuitBreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := types.CircuitClosed
	switch {
	case b.forcedOpen:
		state = types.CircuitOpen
	case b.forcedClosed:
		state = types.CircuitClosed
	default:
		switch b.cb.State() {
		case gobreaker.StateOpen:
			state = types.CircuitOpen
		case gobreaker.StateHalfOpen:
			state = types.CircuitHalfOpen
		}
	}

	counts := b.cb.Counts()
	return types.CircuitBreakerSnapshot{
		TaskRef:        b.taskRef,
		State:          state,
		Failures:       int(counts.TotalFailures),
		Successes:      int(counts.TotalSuccesses),
		LastFailureAt:  b.lastFailureAt,
		OpenedAt:       b.openedAt,
		ForcedOverride: b.forcedOpen || b.forcedClosed,
	}
}
