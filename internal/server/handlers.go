package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ritualflow/engine/pkg/types"
)

// executeRequest is the decoded body of POST .../execute and .../test.
type executeRequest struct {
	Input map[string]any `json:"input"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	names, err := s.provider.ListWorkflows()
	if err != nil {
		writeProblem(w, r, err, requestIDFrom(r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": names}, "application/json")
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wf, err := s.provider.GetWorkflow(name)
	if err != nil {
		notFoundProblem(w, r, "workflow", name)
		return
	}
	writeJSON(w, http.StatusOK, wf, "application/json")
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.versionRepo == nil {
		writeJSON(w, http.StatusOK, map[string]any{"versions": []any{}}, "application/json")
		return
	}
	versions, err := s.versionRepo.ListVersions(name)
	if err != nil {
		writeProblem(w, r, err, requestIDFrom(r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions}, "application/json")
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.taskDefs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"tasks": []any{}}, "application/json")
		return
	}
	defs, err := s.taskDefs.ListTaskDefinitions()
	if err != nil {
		writeProblem(w, r, err, requestIDFrom(r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": defs}, "application/json")
}

func decodeExecuteRequest(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return map[string]any{}, nil
	}
	var body executeRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		return nil, types.NewValidationError("", "malformed request body: "+err.Error())
	}
	if body.Input == nil {
		body.Input = map[string]any{}
	}
	return body.Input, nil
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wf, err := s.provider.GetWorkflow(name)
	if err != nil {
		notFoundProblem(w, r, "workflow", name)
		return
	}

	input, err := decodeExecuteRequest(r)
	if err != nil {
		writeProblem(w, r, err, requestIDFrom(r))
		return
	}

	rec, _ := s.orchestrator.Execute(r.Context(), wf, input)

	var taskRecords []*types.TaskExecutionRecord
	if s.taskRepo != nil {
		taskRecords, _ = s.taskRepo.ListTaskExecutions(rec.ID)
	}
	result := types.NewExecutionResult(rec, taskRecords)
	writeJSON(w, http.StatusOK, result, "application/json")
}

func (s *Server) handleDryRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wf, err := s.provider.GetWorkflow(name)
	if err != nil {
		notFoundProblem(w, r, "workflow", name)
		return
	}

	input, err := decodeExecuteRequest(r)
	if err != nil {
		writeProblem(w, r, err, requestIDFrom(r))
		return
	}

	plan, err := s.orchestrator.Plan(wf, input)
	if err != nil {
		writeProblem(w, r, err, requestIDFrom(r))
		return
	}
	writeJSON(w, http.StatusOK, plan, "application/json")
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.execRepo.GetExecution(id)
	if err != nil {
		notFoundProblem(w, r, "execution", id)
		return
	}
	writeJSON(w, http.StatusOK, rec, "application/json")
}

// handleTrace serves the flattened event history for an execution. When the
// execution is still running, it long-polls (the real-time hub fallback):
// it blocks up to longPoll waiting for a fresh event on the execution's
// Publisher subscription before returning whatever it has, so a client can
// poll in a loop instead of holding a socket open.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.execRepo.GetExecution(id)
	if err != nil {
		notFoundProblem(w, r, "execution", id)
		return
	}

	events := s.buildTraceEvents(id)

	if rec.Status == types.ExecutionRunning && s.publisher != nil {
		ch, cancel := s.publisher.SubscribeExecution(id)
		defer cancel()

		timer := time.NewTimer(s.longPoll)
		defer timer.Stop()

		select {
		case evt, ok := <-ch:
			if ok {
				events = append(events, traceEventFromEvent(evt))
			}
		case <-timer.C:
		case <-r.Context().Done():
		}
	}

	writeJSON(w, http.StatusOK, types.ExecutionTrace{ExecutionID: id, Events: events}, "application/json")
}

func (s *Server) buildTraceEvents(executionID string) []types.TraceEvent {
	if s.taskRepo == nil {
		return nil
	}
	records, err := s.taskRepo.ListTaskExecutions(executionID)
	if err != nil {
		return nil
	}
	events := make([]types.TraceEvent, 0, len(records)*2)
	for _, t := range records {
		events = append(events, types.TraceEvent{Timestamp: t.StartedAt, Kind: "TaskStarted", TaskID: t.TaskID})
		if t.FinishedAt != nil {
			kind := "TaskCompleted"
			if t.Status == types.TaskFailed {
				kind = "TaskFailed"
			}
			events = append(events, types.TraceEvent{Timestamp: *t.FinishedAt, Kind: kind, TaskID: t.TaskID, Detail: t.Error})
		}
	}
	return events
}

func traceEventFromEvent(evt types.Event) types.TraceEvent {
	detail := ""
	if msg, ok := evt.Detail["status"]; ok {
		if s, ok := msg.(string); ok {
			detail = s
		}
	}
	return types.TraceEvent{Timestamp: evt.Timestamp, Kind: string(evt.Kind), TaskID: evt.TaskID, Detail: detail}
}
