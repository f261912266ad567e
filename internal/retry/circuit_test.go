// ABOUTME: Tests for the circuit breaker wrapper: trip threshold, half-open probes, overrides

package retry

import (
	"testing"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := &types.CircuitBreakerConfig{FailureThreshold: 3, SamplingDuration: time.Minute, BreakDuration: time.Minute}
	b := NewBreaker("flaky", cfg, nil)

	for i := 0; i < 3; i++ {
		if !b.CanExecute() {
			t.Fatalf("expected CanExecute true before threshold reached (i=%d)", i)
		}
		b.RecordFailure()
	}

	if b.CanExecute() {
		t.Error("expected circuit to be open after reaching failure threshold")
	}
	snap := b.GetState()
	if snap.State != types.CircuitOpen {
		t.Errorf("expected state open, got %v", snap.State)
	}
}

func TestBreaker_ForceOpenOverridesClosedState(t *testing.T) {
	b := NewBreaker("svc", nil, nil)
	b.ForceOpen()

	if b.CanExecute() {
		t.Error("expected forced-open breaker to refuse execution")
	}
	if !b.GetState().ForcedOverride {
		t.Error("expected ForcedOverride true")
	}
}

func TestBreaker_ForceCloseOverridesOpenState(t *testing.T) {
	cfg := &types.CircuitBreakerConfig{FailureThreshold: 1, SamplingDuration: time.Minute, BreakDuration: time.Minute}
	b := NewBreaker("svc", cfg, nil)
	b.RecordFailure()
	if b.CanExecute() {
		t.Fatal("expected breaker open after single failure at threshold 1")
	}

	b.ForceClose()
	if !b.CanExecute() {
		t.Error("expected forced-close breaker to allow execution")
	}
}

func TestBreaker_Reset_ClearsOverride(t *testing.T) {
	b := NewBreaker("svc", nil, nil)
	b.ForceOpen()
	b.Reset()

	if b.GetState().ForcedOverride {
		t.Error("expected ForcedOverride cleared after Reset")
	}
	if !b.CanExecute() {
		t.Error("expected closed breaker to allow execution after Reset")
	}
}

func TestManager_SharesBreakerAcrossCalls(t *testing.T) {
	m := NewManager()
	b1 := m.Get("svc-a", nil)
	b2 := m.Get("svc-a", nil)
	if b1 != b2 {
		t.Error("expected the same Breaker instance for repeated Get calls on the same task-ref")
	}

	b3 := m.Get("svc-b", nil)
	if b3 == b1 {
		t.Error("expected distinct breakers for distinct task-refs")
	}
}
