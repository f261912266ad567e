// ABOUTME: non-blocking fan-out of workflow lifecycle events
// ABOUTME: per-execution subscriptions plus an all-events "visualization" group, drop-oldest on overflow

package events

import (
	"sync"

	"github.com/ritualflow/engine/pkg/types"
)

// queueDepth bounds each subscriber's buffer; a full subscriber loses its
// oldest buffered event rather than blocking the publishing goroutine.
const queueDepth = 256

type subscription struct {
	id          uint64
	executionID string // "" subscribes to every execution (the "visualization" group)
	ch          chan types.Event
}

// Publisher is an in-process, non-blocking implementation of
// types.EventPublisher. Publish never blocks on a slow consumer.
type Publisher struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
}

func New() *Publisher {
	return &Publisher{subs: make(map[uint64]*subscription)}
}

// Publish fans evt out to every matching subscriber without blocking.
func (p *Publisher) Publish(evt types.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.subs {
		if s.executionID != "" && s.executionID != evt.ExecutionID {
			continue
		}
		deliver(s.ch, evt)
	}
}

// deliver attempts a non-blocking send; on a full buffer it drops the oldest
// queued event and retries once, so a stalled consumer loses history rather
// than stalling the orchestrator.
func deliver(ch chan types.Event, evt types.Event) {
	select {
	case ch <- evt:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- evt:
	default:
	}
}

// Subscribe joins the "visualization" group receiving every execution's
// events, satisfying types.EventPublisher.
func (p *Publisher) Subscribe() (<-chan types.Event, func()) {
	return p.subscribe("")
}

// SubscribeExecution joins a single execution's event stream; used by
// server handlers (e.g. a long-poll trace endpoint) that only care about one
// in-flight run.
func (p *Publisher) SubscribeExecution(executionID string) (<-chan types.Event, func()) {
	return p.subscribe(executionID)
}

func (p *Publisher) subscribe(executionID string) (<-chan types.Event, func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	s := &subscription{id: id, executionID: executionID, ch: make(chan types.Event, queueDepth)}
	p.subs[id] = s
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
	return s.ch, cancel
}
