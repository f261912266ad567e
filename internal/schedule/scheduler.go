// ABOUTME: In-process tick loop firing registered cron triggers via the pure Schedule parser
// ABOUTME: One-ticker-per-minute idiom, same shape robfig/cron uses internally, without its tick-driven API

package schedule

import (
	"context"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

// Trigger binds a cron expression to a workflow invocation.
type Trigger struct {
	Name        string
	WorkflowRef string
	Cron        string
	Input       map[string]any
}

// TriggerStateRepository persists each trigger's lastFiredAt so a restarted
// scheduler resumes IsDue evaluation from where it left off.
type TriggerStateRepository interface {
	GetLastFired(triggerName string) (*time.Time, error)
	SetLastFired(triggerName string, firedAt time.Time) error
}

// Runner executes a resolved workflow; satisfied by *orchestrator.Orchestrator.
type Runner interface {
	Execute(ctx context.Context, wf *types.WorkflowResource, input map[string]any) (*types.ExecutionRecord, error)
}

// Scheduler ticks once per minute boundary, evaluating every registered
// Trigger's IsDue and firing its workflow when due.
type Scheduler struct {
	provider types.WorkflowProvider
	runner   Runner
	state    TriggerStateRepository
	clock    types.Clock
	logger   types.Logger

	triggers []Trigger
}

// Config bundles Scheduler collaborators.
type Config struct {
	Provider types.WorkflowProvider
	Runner   Runner
	State    TriggerStateRepository
	Clock    types.Clock
	Logger   types.Logger
}

// New creates a Scheduler with no triggers registered yet.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		provider: cfg.Provider,
		runner:   cfg.Runner,
		state:    cfg.State,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
}

// Register adds a trigger. It does no locking, and Run's ticks read the
// trigger list without a lock, so calling Register while Run is running is
// a data race.
func (s *Scheduler) Register(t Trigger) {
	s.triggers = append(s.triggers, t)
}

func (s *Scheduler) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now()
}

func (s *Scheduler) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info().Msgf(format, args...)
	}
}

// Run blocks, ticking once per minute, until ctx is cancelled. Each tick
// evaluates every registered trigger independently so one firing error
// never blocks the others.
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)

	// Wait for the next wall-clock minute boundary so later ticks land on one.
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Until(time.Now().Truncate(time.Minute).Add(time.Minute))):
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for _, trig := range s.triggers {
		lastRun, err := s.state.GetLastFired(trig.Name)
		if err != nil {
			s.logf("schedule: reading trigger state for %q: %v", trig.Name, err)
			continue
		}
		if !IsDue(trig.Cron, lastRun, now) {
			continue
		}
		s.fire(ctx, trig, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, trig Trigger, now time.Time) {
	wf, err := s.provider.GetWorkflow(trig.WorkflowRef)
	if err != nil {
		s.logf("schedule: trigger %q: resolving workflow %q: %v", trig.Name, trig.WorkflowRef, err)
		return
	}

	s.logf("schedule: firing trigger %q -> workflow %q", trig.Name, trig.WorkflowRef)
	if _, err := s.runner.Execute(ctx, wf, trig.Input); err != nil {
		s.logf("schedule: trigger %q: execution error: %v", trig.Name, err)
	}

	if err := s.state.SetLastFired(trig.Name, now); err != nil {
		s.logf("schedule: trigger %q: persisting lastFiredAt: %v", trig.Name, err)
	}
}
