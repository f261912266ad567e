// ABOUTME: Pure retry-policy math: attempt backoff, retryable classification, Retry-After parsing

package retry

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

// ComputeBackoff returns the delay between attempt n and n+1:
// initialBackoff * multiplier^(n-1) * (1 ± jitter).
// seed makes the uniform jitter draw deterministic across replays of the
// same (policy, attempt) pair. Callers pass a counter derived from the
// attempt number, never wall-clock.
func ComputeBackoff(policy *types.RetryPolicy, attempt int, seed uint64) time.Duration {
	if policy == nil || policy.InitialBackoff <= 0 {
		return 0
	}
	multiplier := policy.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	base := float64(policy.InitialBackoff)
	for i := 1; i < attempt; i++ {
		base *= multiplier
	}

	if policy.Jitter > 0 {
		r := rand.New(rand.NewPCG(seed, seed>>32|1))
		spread := (r.Float64()*2 - 1) * policy.Jitter
		base *= 1 + spread
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

// isRetryableStatus reports whether statusCode is retryable: 0 (no response,
// a network error), 408, 429 and 5xx. Every other 4xx is terminal.
func isRetryableStatus(statusCode int) bool {
	switch {
	case statusCode == 0:
		return true // no response at all: network error
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	case statusCode >= 500:
		return true
	default:
		return false
	}
}

// IsRetryable classifies a completed invocation: network errors
// (statusCode==0), 5xx, 408, 429, and any domain-declared retryable
// error kind, are retryable; all other 4xx are terminal.
func IsRetryable(statusCode int, errKind string, retryableErrors []string) bool {
	if isRetryableStatus(statusCode) {
		return true
	}
	for _, k := range retryableErrors {
		if k == errKind {
			return true
		}
	}
	return false
}

// ParseRetryAfter parses an HTTP Retry-After header (seconds, or an HTTP
// date) relative to now. Returns (0, false) when absent or unparseable.
func ParseRetryAfter(header string, now time.Time) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(header); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
