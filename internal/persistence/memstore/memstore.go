// ABOUTME: In-memory ExecutionRepository/TaskExecutionRepository/WorkflowVersionRepository
// ABOUTME: a map-backed store dropping the JSON-file-per-record layout of a disk-backed history store

package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

// Store is a mutex-guarded, process-local implementation of the execution,
// task-execution, and version repository interfaces. It has no eviction
// policy and no durability, the default for local runs and for tests;
// production deployments wire internal/persistence/sqlstore instead.
type Store struct {
	mu sync.RWMutex

	executions map[string]*types.ExecutionRecord
	tasks      map[string][]*types.TaskExecutionRecord // keyed by executionID
	versions   map[string][]*types.WorkflowVersion      // keyed by workflow name, append-only
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		executions: make(map[string]*types.ExecutionRecord),
		tasks:      make(map[string][]*types.TaskExecutionRecord),
		versions:   make(map[string][]*types.WorkflowVersion),
	}
}

// SaveExecution inserts or overwrites one ExecutionRecord by ID.
func (s *Store) SaveExecution(rec *types.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[rec.ID] = rec
	return nil
}

// GetExecution fetches one ExecutionRecord by ID.
func (s *Store) GetExecution(id string) (*types.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.executions[id]
	if !ok {
		return nil, types.NewPersistenceError("GetExecution", "execution record not found: "+id, nil)
	}
	return rec, nil
}

// ListExecutions returns every ExecutionRecord for workflowName, newest
// first; an empty workflowName lists all executions (no filter applied).
func (s *Store) ListExecutions(workflowName string) ([]*types.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.ExecutionRecord, 0, len(s.executions))
	for _, rec := range s.executions {
		if workflowName != "" && rec.WorkflowName != workflowName {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// SaveTaskExecution appends one TaskExecutionRecord under its execution.
func (s *Store) SaveTaskExecution(rec *types.TaskExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[rec.ExecutionID] = append(s.tasks[rec.ExecutionID], rec)
	return nil
}

// ListTaskExecutions returns every TaskExecutionRecord for one execution, in
// the order they were saved (oldest first, i.e. scheduling order).
func (s *Store) ListTaskExecutions(executionID string) ([]*types.TaskExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.tasks[executionID]
	out := make([]*types.TaskExecutionRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// SaveVersion appends a new WorkflowVersion for its workflow name. Callers
// (internal/versioning.Service) are responsible for only calling this when
// the content hash actually changed.
func (s *Store) SaveVersion(v *types.WorkflowVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.WorkflowName] = append(s.versions[v.WorkflowName], v)
	return nil
}

// GetVersion fetches one WorkflowVersion by workflow name and content hash.
func (s *Store) GetVersion(workflowName, hash string) (*types.WorkflowVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[workflowName] {
		if v.Hash == hash {
			return v, nil
		}
	}
	return nil, types.NewPersistenceError("GetVersion", "version not found: "+workflowName+"@"+hash, nil)
}

// ListVersions returns every stored WorkflowVersion for workflowName, oldest
// first (creation order).
func (s *Store) ListVersions(workflowName string) ([]*types.WorkflowVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[workflowName]
	out := make([]*types.WorkflowVersion, len(vs))
	copy(out, vs)
	return out, nil
}

// LatestVersion returns the most recently created WorkflowVersion for
// workflowName, or a PersistenceError if none exist yet (first deploy).
func (s *Store) LatestVersion(workflowName string) (*types.WorkflowVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[workflowName]
	if len(vs) == 0 {
		return nil, types.NewPersistenceError("LatestVersion", "no versions recorded for "+workflowName, nil)
	}
	return vs[len(vs)-1], nil
}

// Stats computes the operational rollup for one workflow name: total,
// succeeded, and failed run counts and average duration over finished
// executions, reading the in-memory map instead of scanning a directory
// of JSON files.
func (s *Store) Stats(workflowName string) (*types.WorkflowStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &types.WorkflowStats{WorkflowName: workflowName}
	var totalDuration time.Duration
	var finished int

	for _, rec := range s.executions {
		if rec.WorkflowName != workflowName {
			continue
		}
		stats.TotalRuns++
		switch rec.Status {
		case types.ExecutionSucceeded:
			stats.SucceededRuns++
		case types.ExecutionFailed:
			stats.FailedRuns++
		}
		if rec.FinishedAt != nil {
			totalDuration += rec.Duration()
			finished++
		}
	}
	if finished > 0 {
		stats.AverageDuration = totalDuration / time.Duration(finished)
	}
	return stats, nil
}
