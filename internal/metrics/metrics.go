// ABOUTME: Prometheus instrumentation for executions started/completed, task durations, and breaker trips
// ABOUTME: A dedicated Registry rather than the global default, so embedding callers pick their own mount point

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the engine's collectors on their own prometheus.Registry,
// pairing a Counter with a matching duration Histogram per lifecycle
// transition.
type Registry struct {
	registry *prometheus.Registry

	executionsStarted   *prometheus.CounterVec
	executionsCompleted *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec
	taskDuration        *prometheus.HistogramVec
	breakerTrips        *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		executionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ritual_executions_started_total",
			Help: "Total number of workflow executions started.",
		}, []string{"workflow"}),
		executionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ritual_executions_completed_total",
			Help: "Total number of workflow executions completed, by terminal status.",
		}, []string{"workflow", "status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ritual_execution_duration_seconds",
			Help:    "Workflow execution wall-clock duration.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}, []string{"workflow", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ritual_task_duration_seconds",
			Help:    "Per-task execution duration.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"taskRef", "status"}),
		breakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ritual_circuit_breaker_trips_total",
			Help: "Total number of times a task-ref's circuit breaker opened.",
		}, []string{"taskRef"}),
	}

	r.registry.MustRegister(r.executionsStarted, r.executionsCompleted, r.executionDuration, r.taskDuration, r.breakerTrips)
	return r
}

// Registerer exposes the underlying prometheus.Registerer, e.g. for
// promhttp.HandlerFor(reg.Gatherer(), ...).
func (r *Registry) Registerer() prometheus.Registerer { return r.registry }

// Gatherer exposes the underlying prometheus.Gatherer for a /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// RecordExecutionStarted increments the started counter for workflow.
func (r *Registry) RecordExecutionStarted(workflow string) {
	r.executionsStarted.WithLabelValues(workflow).Inc()
}

// RecordExecutionCompleted increments the completed counter and observes
// duration for a finished execution.
func (r *Registry) RecordExecutionCompleted(workflow, status string, duration time.Duration) {
	r.executionsCompleted.WithLabelValues(workflow, status).Inc()
	r.executionDuration.WithLabelValues(workflow, status).Observe(duration.Seconds())
}

// RecordTaskDuration observes one task execution's duration.
func (r *Registry) RecordTaskDuration(taskRef, status string, duration time.Duration) {
	r.taskDuration.WithLabelValues(taskRef, status).Observe(duration.Seconds())
}

// RecordCircuitBreakerTrip increments the trip counter for taskRef.
func (r *Registry) RecordCircuitBreakerTrip(taskRef string) {
	r.breakerTrips.WithLabelValues(taskRef).Inc()
}
