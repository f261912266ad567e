// ABOUTME: Tests for backoff computation, retryable classification, and Retry-After parsing

package retry

import (
	"testing"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

func TestComputeBackoff_ExponentialGrowth(t *testing.T) {
	policy := &types.RetryPolicy{InitialBackoff: 100 * time.Millisecond, Multiplier: 2}

	d1 := ComputeBackoff(policy, 1, 1)
	d2 := ComputeBackoff(policy, 2, 1)
	d3 := ComputeBackoff(policy, 3, 1)

	if d1 != 100*time.Millisecond {
		t.Errorf("expected 100ms for attempt 1, got %v", d1)
	}
	if d2 != 200*time.Millisecond {
		t.Errorf("expected 200ms for attempt 2, got %v", d2)
	}
	if d3 != 400*time.Millisecond {
		t.Errorf("expected 400ms for attempt 3, got %v", d3)
	}
}

func TestComputeBackoff_DeterministicGivenSeed(t *testing.T) {
	policy := &types.RetryPolicy{InitialBackoff: 100 * time.Millisecond, Multiplier: 2, Jitter: 0.5}

	a := ComputeBackoff(policy, 2, 42)
	b := ComputeBackoff(policy, 2, 42)
	if a != b {
		t.Errorf("expected identical backoff for identical seed, got %v and %v", a, b)
	}
}

func TestComputeBackoff_NilPolicy(t *testing.T) {
	if d := ComputeBackoff(nil, 1, 1); d != 0 {
		t.Errorf("expected 0 for nil policy, got %v", d)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		errKind    string
		retryable  []string
		want       bool
	}{
		{"network error", 0, "", nil, true},
		{"server error", 503, "", nil, true},
		{"request timeout", 408, "", nil, true},
		{"too many requests", 429, "", nil, true},
		{"not found terminal", 404, "", nil, false},
		{"bad request terminal", 400, "", nil, false},
		{"domain retryable kind", 400, "rate_limited", []string{"rate_limited"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := IsRetryable(c.statusCode, c.errKind, c.retryable)
			if got != c.want {
				t.Errorf("IsRetryable(%d, %q, %v) = %v, want %v", c.statusCode, c.errKind, c.retryable, got, c.want)
			}
		})
	}
}

func TestParseRetryAfter_Seconds(t *testing.T) {
	d, ok := ParseRetryAfter("120", time.Now())
	if !ok || d != 120*time.Second {
		t.Errorf("expected 120s true, got %v %v", d, ok)
	}
}

func TestParseRetryAfter_Absent(t *testing.T) {
	_, ok := ParseRetryAfter("", time.Now())
	if ok {
		t.Error("expected false for empty header")
	}
}
