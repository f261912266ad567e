// ABOUTME: Tests for fan-out filtering, overflow drop-oldest behavior, and unsubscribe

package events

import (
	"testing"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

func TestPublish_DeliversToVisualizationGroup(t *testing.T) {
	p := New()
	ch, cancel := p.Subscribe()
	defer cancel()

	p.Publish(types.Event{Kind: types.EventWorkflowStarted, ExecutionID: "e1"})

	select {
	case evt := <-ch:
		if evt.ExecutionID != "e1" {
			t.Errorf("unexpected execution id: %s", evt.ExecutionID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an event to be delivered")
	}
}

func TestPublish_FiltersByExecutionID(t *testing.T) {
	p := New()
	ch, cancel := p.SubscribeExecution("e1")
	defer cancel()

	p.Publish(types.Event{Kind: types.EventTaskStarted, ExecutionID: "e2"})
	p.Publish(types.Event{Kind: types.EventTaskStarted, ExecutionID: "e1"})

	select {
	case evt := <-ch:
		if evt.ExecutionID != "e1" {
			t.Errorf("expected only e1's events, got %s", evt.ExecutionID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the matching event to be delivered")
	}

	select {
	case evt := <-ch:
		t.Fatalf("expected no further events, got %+v", evt)
	default:
	}
}

func TestPublish_OverflowDropsOldest(t *testing.T) {
	p := New()
	ch, cancel := p.Subscribe()
	defer cancel()

	for i := 0; i < queueDepth+10; i++ {
		p.Publish(types.Event{Kind: types.EventTaskStarted, TaskID: string(rune('a' + i%26))})
	}

	if len(ch) != queueDepth {
		t.Errorf("expected the buffer to stay at capacity %d, got %d", queueDepth, len(ch))
	}
}

func TestCancel_StopsDelivery(t *testing.T) {
	p := New()
	ch, cancel := p.Subscribe()
	cancel()

	p.Publish(types.Event{Kind: types.EventWorkflowCompleted, ExecutionID: "e1"})

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no event after cancel")
		}
	default:
	}

	if len(p.subs) != 0 {
		t.Errorf("expected subscription to be removed, got %d remaining", len(p.subs))
	}
}
