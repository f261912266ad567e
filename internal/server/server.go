// ABOUTME: REST surface: chi router, CORS, and a long-poll execution trace
// ABOUTME: endpoint standing in for a full real-time hub

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ritualflow/engine/internal/events"
	"github.com/ritualflow/engine/internal/metrics"
	"github.com/ritualflow/engine/internal/orchestrator"
	"github.com/ritualflow/engine/pkg/types"
)

// Config bundles the server's collaborators: workflow execution is driven
// by the Orchestrator directly rather than a webhook payload.
type Config struct {
	Addr              string
	Orchestrator      *orchestrator.Orchestrator
	Provider          types.WorkflowProvider
	ExecutionRepo     types.ExecutionRepository
	TaskExecutionRepo types.TaskExecutionRepository
	VersionRepo       types.WorkflowVersionRepository
	TaskDefs          types.TaskDefinitionProvider
	Publisher         *events.Publisher
	Metrics           *metrics.Registry
	Logger            types.Logger
	LongPollTimeout   time.Duration
}

// Server is the REST front end for the workflow engine.
type Server struct {
	httpServer   *http.Server
	orchestrator *orchestrator.Orchestrator
	provider     types.WorkflowProvider
	execRepo     types.ExecutionRepository
	taskRepo     types.TaskExecutionRepository
	versionRepo  types.WorkflowVersionRepository
	taskDefs     types.TaskDefinitionProvider
	publisher    *events.Publisher
	metrics      *metrics.Registry
	logger       types.Logger
	longPoll     time.Duration
}

// New builds a Server and wires its routes under /api/v1/.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.LongPollTimeout <= 0 {
		cfg.LongPollTimeout = 25 * time.Second
	}

	s := &Server{
		orchestrator: cfg.Orchestrator,
		provider:     cfg.Provider,
		execRepo:     cfg.ExecutionRepo,
		taskRepo:     cfg.TaskExecutionRepo,
		versionRepo:  cfg.VersionRepo,
		taskDefs:     cfg.TaskDefs,
		publisher:    cfg.Publisher,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		longPoll:     cfg.LongPollTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/workflows", s.handleListWorkflows)
		api.Get("/workflows/{name}", s.handleGetWorkflow)
		api.Get("/workflows/{name}/versions", s.handleListVersions)
		api.Post("/workflows/{name}/execute", s.handleExecute)
		api.Post("/workflows/{name}/test", s.handleDryRun)
		api.Get("/tasks", s.handleListTasks)
		api.Get("/executions/{id}", s.handleGetExecution)
		api.Get("/executions/{id}/trace", s.handleTrace)
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.longPoll + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.logf("starting server on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logf("stopping server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info().Msgf(format, args...)
	}
}

func requestIDFrom(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "application/json")
}

func notFoundProblem(w http.ResponseWriter, r *http.Request, resource, id string) {
	writeJSON(w, http.StatusNotFound, Problem{
		Type:      "about:blank",
		Title:     "Not Found",
		Status:    http.StatusNotFound,
		Detail:    fmt.Sprintf("%s %q not found", resource, id),
		Instance:  r.URL.Path,
		RequestID: requestIDFrom(r),
	}, "application/problem+json")
}
