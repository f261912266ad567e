// ABOUTME: forEach dispatch: sequential by default, bounded-parallel semaphore fan-out otherwise
// ABOUTME: Parallelism idiom (semaphore + WaitGroup) mirrors the level-fanout dispatch the orchestrator uses

package executor

import (
	"context"
	"sync"
	"time"

	"github.com/ritualflow/engine/internal/template"
	"github.com/ritualflow/engine/pkg/types"
)

func (e *Executor) executeForEach(ctx context.Context, s *types.ForEachStep, scope template.Scope) Result {
	start := time.Now()
	items, err := e.resolver.Resolve(s.Items, scope)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: string(types.CodeTemplateError), DurationMs: ms(start)}
	}

	seq, ok := items.([]any)
	if !ok {
		if items == nil {
			seq = nil
		} else {
			return Result{Success: false, Error: "forEach items did not resolve to a sequence", ErrorCode: string(types.CodeTemplateError), DurationMs: ms(start)}
		}
	}

	if len(seq) == 0 {
		return Result{Success: true, Output: []any{}, DurationMs: ms(start)}
	}

	outputs := make([]any, len(seq))
	if !s.Parallel {
		for i, item := range seq {
			iterScope := scope.WithItem(item, i)
			r := e.executeSequence(ctx, s.Body, iterScope)
			if !r.Success {
				r.DurationMs = ms(start)
				return r
			}
			outputs[i] = r.Output
		}
		return Result{Success: true, Output: outputs, DurationMs: ms(start)}
	}

	maxConcurrency := s.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = len(seq)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstFailure *Result

	for i, item := range seq {
		wg.Add(1)
		go func(i int, item any) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				return
			}

			select {
			case <-runCtx.Done():
				return
			default:
			}

			iterScope := scope.WithItem(item, i)
			r := e.executeSequence(runCtx, s.Body, iterScope)

			mu.Lock()
			defer mu.Unlock()
			if !r.Success {
				if firstFailure == nil {
					firstFailure = &r
					cancel() // cancel pending iterations on first failure
				}
				return
			}
			outputs[i] = r.Output
		}(i, item)
	}
	wg.Wait()

	if firstFailure != nil {
		firstFailure.DurationMs = ms(start)
		return *firstFailure
	}
	return Result{Success: true, Output: outputs, DurationMs: ms(start)}
}
