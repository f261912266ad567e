// ABOUTME: Bridges the Event Publisher's lifecycle stream into Registry counters/histograms
// ABOUTME: Runs as a background consumer of the publisher's "visualization" (all-execution) group

package metrics

import (
	"sync"
	"time"

	"github.com/ritualflow/engine/internal/events"
	"github.com/ritualflow/engine/pkg/types"
)

// Watch subscribes reg to pub's full event stream and records metrics from
// each WorkflowStarted/WorkflowCompleted/TaskCompleted event until stop is
// called. It runs in its own goroutine; the returned func unsubscribes and
// lets that goroutine exit.
func Watch(reg *Registry, pub *events.Publisher) func() {
	ch, cancel := pub.Subscribe()

	started := make(map[string]time.Time)
	done := make(chan struct{})
	go func() {
		for {
			var evt types.Event
			select {
			case <-done:
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				evt = e
			}
			switch evt.Kind {
			case types.EventWorkflowStarted:
				reg.RecordExecutionStarted(evt.WorkflowName)
				started[evt.ExecutionID] = evt.Timestamp
			case types.EventWorkflowCompleted:
				status, _ := evt.Detail["status"].(string)
				duration := time.Duration(0)
				if t0, ok := started[evt.ExecutionID]; ok {
					duration = evt.Timestamp.Sub(t0)
					delete(started, evt.ExecutionID)
				}
				reg.RecordExecutionCompleted(evt.WorkflowName, status, duration)
			case types.EventTaskCompleted:
				status, _ := evt.Detail["status"].(string)
				durationMs, _ := evt.Detail["durationMs"].(int64)
				reg.RecordTaskDuration(evt.TaskID, status, time.Duration(durationMs)*time.Millisecond)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			close(done)
		})
	}
}
