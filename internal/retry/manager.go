// ABOUTME: Manager is the process-wide, sharded table of per-task-ref circuit breakers

package retry

import (
	"hash/fnv"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/ritualflow/engine/pkg/types"
)

const shardCount = 16

// Manager is process-wide circuit-breaker state: a sharded map keyed by
// task-ref, each shard behind its own mutex. No mutable state is shared
// between workflow executions except this table.
type Manager struct {
	shards [shardCount]*shard

	mu      sync.RWMutex
	onTrip  func(taskRef string)
}

type shard struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	m := &Manager{}
	for i := range m.shards {
		m.shards[i] = &shard{breakers: make(map[string]*Breaker)}
	}
	return m
}

func (m *Manager) shardFor(taskRef string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskRef))
	return m.shards[h.Sum32()%shardCount]
}

// SetTripHook registers a callback invoked whenever any breaker transitions
// into the open state, e.g. to drive metrics.Registry.RecordCircuitBreakerTrip.
// Must be called before any breaker is created (before the first Get for a
// given task-ref) to take effect for that task-ref.
func (m *Manager) SetTripHook(fn func(taskRef string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrip = fn
}

// Get returns the Breaker for taskRef, creating it from cfg on first use.
func (m *Manager) Get(taskRef string, cfg *types.CircuitBreakerConfig) *Breaker {
	s := m.shardFor(taskRef)
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[taskRef]; ok {
		return b
	}

	m.mu.RLock()
	onTrip := m.onTrip
	m.mu.RUnlock()

	var onStateChange func(name string, from, to gobreaker.State)
	if onTrip != nil {
		onStateChange = func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				onTrip(name)
			}
		}
	}

	b := NewBreaker(taskRef, cfg, onStateChange)
	s.breakers[taskRef] = b
	return b
}

// Snapshot returns the current state of every known task-ref's breaker.
func (m *Manager) Snapshot() []types.CircuitBreakerSnapshot {
	var out []types.CircuitBreakerSnapshot
	for _, s := range m.shards {
		s.mu.Lock()
		for _, b := range s.breakers {
			out = append(out, b.GetState())
		}
		s.mu.Unlock()
	}
	return out
}
