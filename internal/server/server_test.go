package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ritualflow/engine/internal/events"
	"github.com/ritualflow/engine/internal/executor"
	"github.com/ritualflow/engine/internal/orchestrator"
	"github.com/ritualflow/engine/internal/retry"
	"github.com/ritualflow/engine/internal/taskdefs"
	"github.com/ritualflow/engine/internal/template"
	"github.com/ritualflow/engine/pkg/types"
)

type fakeProvider struct {
	workflows map[string]*types.WorkflowResource
}

func (p *fakeProvider) GetWorkflow(name string) (*types.WorkflowResource, error) {
	wf, ok := p.workflows[name]
	if !ok {
		return nil, types.NewSubworkflowError(types.CodeSubworkflowMissing, name, "not found", nil)
	}
	return wf, nil
}

func (p *fakeProvider) ListWorkflows() ([]string, error) {
	names := make([]string, 0, len(p.workflows))
	for n := range p.workflows {
		names = append(names, n)
	}
	return names, nil
}

type memExecRepo struct{ saved map[string]*types.ExecutionRecord }

func newMemExecRepo() *memExecRepo { return &memExecRepo{saved: map[string]*types.ExecutionRecord{}} }

func (r *memExecRepo) SaveExecution(rec *types.ExecutionRecord) error {
	r.saved[rec.ID] = rec
	return nil
}
func (r *memExecRepo) GetExecution(id string) (*types.ExecutionRecord, error) {
	rec, ok := r.saved[id]
	if !ok {
		return nil, types.NewPersistenceError("GetExecution", "not found", nil)
	}
	return rec, nil
}
func (r *memExecRepo) ListExecutions(workflowName string) ([]*types.ExecutionRecord, error) {
	out := make([]*types.ExecutionRecord, 0, len(r.saved))
	for _, rec := range r.saved {
		out = append(out, rec)
	}
	return out, nil
}

type memTaskRepo struct{ saved []*types.TaskExecutionRecord }

func (r *memTaskRepo) SaveTaskExecution(rec *types.TaskExecutionRecord) error {
	r.saved = append(r.saved, rec)
	return nil
}
func (r *memTaskRepo) ListTaskExecutions(executionID string) ([]*types.TaskExecutionRecord, error) {
	out := make([]*types.TaskExecutionRecord, 0)
	for _, rec := range r.saved {
		if rec.ExecutionID == executionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// buildTestServer wires a real Orchestrator (two-phase construction) behind
// a Server, mirroring orchestrator_test.go's helper and executor_test.go's
// httptest.Server-backed TaskDefinition fixture.
func buildTestServer(t *testing.T, workflows map[string]*types.WorkflowResource, defs map[string]*types.TaskDefinition) (*Server, *memExecRepo, *memTaskRepo) {
	t.Helper()

	execRepo := newMemExecRepo()
	taskRepo := &memTaskRepo{}
	provider := &fakeProvider{workflows: workflows}
	pub := events.New()

	o, err := orchestrator.New(orchestrator.Config{
		WorkflowProvider:       provider,
		ExecutionRepo:          execRepo,
		TaskExecutionRepo:      taskRepo,
		Publisher:              pub,
		MaxWorkflowConcurrency: 4,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing orchestrator: %v", err)
	}

	defRegistry := taskdefs.New()
	for _, d := range defs {
		defRegistry.Register(d)
	}

	exec := executor.New(executor.Config{
		Resolver:  template.New(),
		TaskDefs:  defRegistry,
		Breakers:  retry.NewManager(),
		Subrunner: o,
	})
	o.SetExecutor(exec)

	s := New(Config{
		Orchestrator:      o,
		Provider:          provider,
		ExecutionRepo:     execRepo,
		TaskExecutionRepo: taskRepo,
		TaskDefs:          defRegistry,
		Publisher:         pub,
	})
	return s, execRepo, taskRepo
}

func (s *Server) handler() http.Handler { return s.httpServer.Handler }

func TestHandleListWorkflows_ReturnsNames(t *testing.T) {
	s, _, _ := buildTestServer(t, map[string]*types.WorkflowResource{
		"billing": {Metadata: types.WorkflowMetadata{Name: "billing"}},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	rr := httptest.NewRecorder()
	s.handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string][]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body["workflows"]) != 1 || body["workflows"][0] != "billing" {
		t.Errorf("expected [billing], got %+v", body["workflows"])
	}
}

func TestHandleGetWorkflow_UnknownReturnsProblem404(t *testing.T) {
	s, _, _ := buildTestServer(t, map[string]*types.WorkflowResource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/missing", nil)
	rr := httptest.NewRecorder()
	s.handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json content type, got %q", ct)
	}
	var problem Problem
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if problem.Status != http.StatusNotFound {
		t.Errorf("expected status 404 in body, got %d", problem.Status)
	}
}

func TestHandleExecute_SucceedsAndReturnsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"charged":true}`))
	}))
	defer srv.Close()

	wf := &types.WorkflowResource{
		Metadata: types.WorkflowMetadata{Name: "billing"},
		Tasks: []types.RawTaskStep{
			{ID: "t1", TaskRef: "charge-card"},
		},
		Output: map[string]string{"charged": "{{tasks.t1.output.charged}}"},
	}
	defs := map[string]*types.TaskDefinition{
		"charge-card": {Name: "charge-card", Request: types.HTTPRequestTemplate{Method: "POST", URL: srv.URL}},
	}
	s, _, _ := buildTestServer(t, map[string]*types.WorkflowResource{"billing": wf}, defs)

	body, _ := json.Marshal(executeRequest{Input: map[string]any{"amount": 10}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/billing/execute", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result types.ExecutionResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.Status != types.ExecutionSucceeded {
		t.Errorf("expected a succeeded result, got %+v", result)
	}
}

func TestHandleDryRun_NeverFailsOnUnresolvedTaskRef(t *testing.T) {
	wf := &types.WorkflowResource{
		Metadata: types.WorkflowMetadata{Name: "billing"},
		Tasks: []types.RawTaskStep{
			{ID: "t1", TaskRef: "charge-card", Input: map[string]string{"amount": "{{input.amount}}"}},
			{ID: "t2", TaskRef: "send-receipt", Input: map[string]string{"email": "{{tasks.t1.output.email}}"}},
		},
	}
	s, _, _ := buildTestServer(t, map[string]*types.WorkflowResource{"billing": wf}, nil)

	body, _ := json.Marshal(executeRequest{Input: map[string]any{"amount": 10}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/billing/test", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for a dry run even with unresolved refs, got %d: %s", rr.Code, rr.Body.String())
	}
	var plan types.ExecutionPlan
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plan.Order) != 2 {
		t.Errorf("expected 2 ordered tasks, got %+v", plan.Order)
	}
}

func TestHandleGetExecution_ReturnsRecordAfterExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	wf := &types.WorkflowResource{
		Metadata: types.WorkflowMetadata{Name: "billing"},
		Tasks:    []types.RawTaskStep{{ID: "t1", TaskRef: "charge-card"}},
	}
	defs := map[string]*types.TaskDefinition{
		"charge-card": {Name: "charge-card", Request: types.HTTPRequestTemplate{Method: "POST", URL: srv.URL}},
	}
	s, execRepo, _ := buildTestServer(t, map[string]*types.WorkflowResource{"billing": wf}, defs)

	body, _ := json.Marshal(executeRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/billing/execute", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("execute failed: %d %s", rr.Code, rr.Body.String())
	}

	var executionID string
	for id := range execRepo.saved {
		executionID = id
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/executions/"+executionID, nil)
	rr2 := httptest.NewRecorder()
	s.handler().ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr2.Code, rr2.Body.String())
	}
	var rec types.ExecutionRecord
	if err := json.Unmarshal(rr2.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID != executionID {
		t.Errorf("expected id %q, got %q", executionID, rec.ID)
	}
}

func TestHandleTrace_ReturnsImmediatelyForTerminalExecution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	wf := &types.WorkflowResource{
		Metadata: types.WorkflowMetadata{Name: "billing"},
		Tasks:    []types.RawTaskStep{{ID: "t1", TaskRef: "charge-card"}},
	}
	defs := map[string]*types.TaskDefinition{
		"charge-card": {Name: "charge-card", Request: types.HTTPRequestTemplate{Method: "POST", URL: srv.URL}},
	}
	s, execRepo, _ := buildTestServer(t, map[string]*types.WorkflowResource{"billing": wf}, defs)
	s.longPoll = 50 // nanoseconds: must not block this test if status is already terminal

	body, _ := json.Marshal(executeRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/billing/execute", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.handler().ServeHTTP(rr, req)

	var executionID string
	for id := range execRepo.saved {
		executionID = id
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/executions/"+executionID+"/trace", nil)
	rr2 := httptest.NewRecorder()
	s.handler().ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr2.Code, rr2.Body.String())
	}
	var trace types.ExecutionTrace
	if err := json.Unmarshal(rr2.Body.Bytes(), &trace); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(trace.Events) == 0 {
		t.Error("expected at least the task started/completed events")
	}
}

func TestHandleListTasks_ReturnsRegisteredCatalog(t *testing.T) {
	defs := map[string]*types.TaskDefinition{
		"charge-card": {Name: "charge-card"},
	}
	s, _, _ := buildTestServer(t, map[string]*types.WorkflowResource{}, defs)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	rr := httptest.NewRecorder()
	s.handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string][]types.TaskDefinition
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body["tasks"]) != 1 || body["tasks"][0].Name != "charge-card" {
		t.Errorf("expected [charge-card], got %+v", body["tasks"])
	}
}
