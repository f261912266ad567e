package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type memTriggerState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newMemTriggerState() *memTriggerState { return &memTriggerState{last: map[string]time.Time{}} }

func (m *memTriggerState) GetLastFired(name string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.last[name]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memTriggerState) SetLastFired(name string, firedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[name] = firedAt
	return nil
}

type fakeProvider struct{ workflows map[string]*types.WorkflowResource }

func (p *fakeProvider) GetWorkflow(name string) (*types.WorkflowResource, error) {
	wf, ok := p.workflows[name]
	if !ok {
		return nil, types.NewSubworkflowError(types.CodeSubworkflowMissing, name, "not found", nil)
	}
	return wf, nil
}
func (p *fakeProvider) ListWorkflows() ([]string, error) { return nil, nil }

type countingRunner struct {
	mu    sync.Mutex
	count int
}

func (r *countingRunner) Execute(ctx context.Context, wf *types.WorkflowResource, input map[string]any) (*types.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return &types.ExecutionRecord{ID: "e1", Status: types.ExecutionSucceeded}, nil
}

func (r *countingRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestTick_FiresDueTriggerAndRecordsLastFired(t *testing.T) {
	wf := &types.WorkflowResource{Metadata: types.WorkflowMetadata{Name: "daily-report"}}
	state := newMemTriggerState()
	runner := &countingRunner{}
	clock := &fakeClock{t: time.Date(2026, 3, 5, 9, 1, 0, 0, time.UTC)}

	s := New(Config{
		Provider: &fakeProvider{workflows: map[string]*types.WorkflowResource{"daily-report": wf}},
		Runner:   runner,
		State:    state,
		Clock:    clock,
	})
	s.Register(Trigger{Name: "t1", WorkflowRef: "daily-report", Cron: "0 9 * * *"})

	s.tick(context.Background())

	if runner.calls() != 1 {
		t.Fatalf("expected 1 firing, got %d", runner.calls())
	}
	last, err := state.GetLastFired("t1")
	if err != nil || last == nil {
		t.Fatalf("expected lastFiredAt to be recorded, err=%v", err)
	}
	if !last.Equal(clock.t) {
		t.Errorf("expected lastFiredAt=%v, got %v", clock.t, *last)
	}
}

func TestTick_SkipsNotYetDueTrigger(t *testing.T) {
	wf := &types.WorkflowResource{Metadata: types.WorkflowMetadata{Name: "daily-report"}}
	state := newMemTriggerState()
	// Fired yesterday at 09:00; today's 09:00 occurrence has not arrived.
	_ = state.SetLastFired("t1", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	runner := &countingRunner{}
	clock := &fakeClock{t: time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)}

	s := New(Config{
		Provider: &fakeProvider{workflows: map[string]*types.WorkflowResource{"daily-report": wf}},
		Runner:   runner,
		State:    state,
		Clock:    clock,
	})
	s.Register(Trigger{Name: "t1", WorkflowRef: "daily-report", Cron: "0 9 * * *"})

	s.tick(context.Background())

	if runner.calls() != 0 {
		t.Fatalf("expected no firing before due time, got %d", runner.calls())
	}
}

func TestTick_OneTriggerFailingDoesNotBlockOthers(t *testing.T) {
	state := newMemTriggerState()
	runner := &countingRunner{}
	clock := &fakeClock{t: time.Date(2026, 3, 5, 9, 1, 0, 0, time.UTC)}

	s := New(Config{
		Provider: &fakeProvider{workflows: map[string]*types.WorkflowResource{
			"daily-report": {Metadata: types.WorkflowMetadata{Name: "daily-report"}},
		}},
		Runner: runner,
		State:  state,
		Clock:  clock,
	})
	s.Register(Trigger{Name: "missing", WorkflowRef: "does-not-exist", Cron: "0 9 * * *"})
	s.Register(Trigger{Name: "ok", WorkflowRef: "daily-report", Cron: "0 9 * * *"})

	s.tick(context.Background())

	if runner.calls() != 1 {
		t.Fatalf("expected the valid trigger to still fire, got %d calls", runner.calls())
	}
}
