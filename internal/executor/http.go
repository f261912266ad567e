// ABOUTME: HTTP-backed taskRef invocation: render request, run through retry+circuit breaker

package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ritualflow/engine/internal/retry"
	"github.com/ritualflow/engine/internal/template"
	"github.com/ritualflow/engine/pkg/types"
)

// invokeHTTP renders def.Request through the resolver, then executes it
// through the retry/circuit-breaker pipeline, returning a parsed
// JSON body as output on a 2xx response.
func (e *Executor) invokeHTTP(ctx context.Context, step *types.TaskRefStep, def *types.TaskDefinition, scope template.Scope) Result {
	start := time.Now()
	breaker := e.breakers.Get(step.TaskRef, effectiveBreakerConfig(step, def))

	input, err := e.resolver.EvaluateAll(step.Input, scope)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: string(types.CodeTemplateError), DurationMs: ms(start)}
	}
	reqScope := scope
	reqScope.Ctx = scopeWithInput(scope.Ctx, input)

	policy := step.Retry
	if policy == nil {
		policy = def.Retry
	}
	attempts := policy.Attempts()

	var lastErr error
	var lastCode string
	for attempt := 1; attempt <= attempts; attempt++ {
		if !breaker.CanExecute() {
			return Result{
				Success: false, Error: "circuit open for " + step.TaskRef,
				ErrorCode: string(types.CodeCircuitOpen), DurationMs: ms(start), RetryCount: attempt - 1,
			}
		}

		out, statusCode, errKind, err := e.doRequest(ctx, def, reqScope)
		if err == nil {
			breaker.RecordSuccess()
			return Result{Success: true, Output: out, DurationMs: ms(start), RetryCount: attempt - 1}
		}

		breaker.RecordFailure()
		lastErr = err
		lastCode = string(types.CodeTaskFailed)

		retryable := retry.IsRetryable(statusCode, errKind, retryableKinds(policy))
		if !retryable || attempt == attempts {
			break
		}

		delay := retry.ComputeBackoff(policy, attempt, uint64(attempt))
		if wait, ok := retry.ParseRetryAfter(retryAfterHeader(ctx), time.Now()); ok {
			delay = wait
		}
		select {
		case <-ctx.Done():
			return Result{Success: false, Error: "cancelled", ErrorCode: string(types.CodeCancelled), DurationMs: ms(start), RetryCount: attempt}
		case <-time.After(delay):
		}
	}

	code := lastCode
	errMsg := "request failed"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	if attempts > 1 {
		code = string(types.CodeRetryExhausted)
	}
	return Result{Success: false, Error: errMsg, ErrorCode: code, DurationMs: ms(start), RetryCount: attempts - 1}
}

func ms(start time.Time) int64 { return time.Since(start).Milliseconds() }

func retryableKinds(policy *types.RetryPolicy) []string {
	if policy == nil {
		return nil
	}
	return policy.RetryableErrors
}

// retryAfterHeader returns the Retry-After value stored in ctx under
// retryAfterCtxKey, or "" when none is set. doRequest neither reads a
// response's Retry-After header nor stores it in ctx, so the delay between
// attempts is ComputeBackoff's unless a caller put a value in ctx.
func retryAfterHeader(ctx context.Context) string {
	if v, ok := ctx.Value(retryAfterCtxKey{}).(string); ok {
		return v
	}
	return ""
}

type retryAfterCtxKey struct{}

func (e *Executor) doRequest(ctx context.Context, def *types.TaskDefinition, scope template.Scope) (any, int, string, error) {
	method, err := e.resolver.ResolveString(def.Request.Method, scope)
	if err != nil {
		return nil, 0, "", err
	}
	url, err := e.resolver.ResolveString(def.Request.URL, scope)
	if err != nil {
		return nil, 0, "", err
	}
	body, err := e.resolver.ResolveString(def.Request.Body, scope)
	if err != nil {
		return nil, 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, 0, "", err
	}
	for k, v := range def.Request.Headers {
		rendered, err := e.resolver.ResolveString(v, scope)
		if err != nil {
			return nil, 0, "", err
		}
		req.Header.Set(k, rendered)
	}
	if req.Header.Get("Content-Type") == "" && body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, 0, "network_error", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, "read_error", err
	}

	if resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("http %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	if len(respBody) == 0 {
		return nil, resp.StatusCode, "", nil
	}
	var out any
	if err := json.Unmarshal(respBody, &out); err != nil {
		return string(respBody), resp.StatusCode, "", nil
	}
	return out, resp.StatusCode, "", nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func effectiveBreakerConfig(step *types.TaskRefStep, def *types.TaskDefinition) *types.CircuitBreakerConfig {
	if step.CircuitBreaker != nil {
		return step.CircuitBreaker
	}
	return def.CircuitBreaker
}

// scopeWithInput derives the scope a TaskDefinition's own request template
// renders against: once a step's `input` map is resolved against the
// workflow-level context, the TaskDefinition's `{{input.*}}` placeholders
// address that resolved map, not the workflow's root input (the same way a
// function's parameters shadow its caller's locals).
func scopeWithInput(ctx *types.ExecutionContext, input map[string]any) *types.ExecutionContext {
	clone := *ctx
	clone.Input = input
	return &clone
}
