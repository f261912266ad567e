// ABOUTME: RFC 7807 Problem Details error responses for the REST surface
// ABOUTME: Maps the engine's stable types.Code taxonomy onto HTTP status + wire shape

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ritualflow/engine/pkg/types"
)

// Problem is the RFC 7807 "application/problem+json" error body returned by
// every handler on the REST surface.
type Problem struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail,omitempty"`
	Instance   string `json:"instance,omitempty"`
	Code       string `json:"code,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// statusForCode maps each stable error code to an HTTP status. Codes not
// present here (or a bare, unclassified error) fall back to 500.
var statusForCode = map[types.Code]int{
	types.CodeTemplateError:        http.StatusUnprocessableEntity,
	types.CodeGraphCycle:           http.StatusUnprocessableEntity,
	types.CodeUnknownTaskRef:       http.StatusUnprocessableEntity,
	types.CodeDuplicateTaskID:      http.StatusUnprocessableEntity,
	types.CodeInvalidStep:          http.StatusUnprocessableEntity,
	types.CodeInputValidation:      http.StatusBadRequest,
	types.CodeTaskTimeout:          http.StatusGatewayTimeout,
	types.CodeTaskFailed:           http.StatusBadGateway,
	types.CodeCircuitOpen:          http.StatusServiceUnavailable,
	types.CodeRetryExhausted:       http.StatusBadGateway,
	types.CodeSubworkflowMissing:   http.StatusNotFound,
	types.CodeSubworkflowAmbiguous: http.StatusConflict,
	types.CodeSubworkflowCyclic:    http.StatusConflict,
	types.CodeCronInvalid:          http.StatusBadRequest,
	types.CodeCancelled:            http.StatusConflict,
	types.CodePersistence:          http.StatusInternalServerError,
}

var suggestionForCode = map[types.Code]string{
	types.CodeUnknownTaskRef:       "check the taskRef against the registered task catalog (GET /api/v1/tasks)",
	types.CodeSubworkflowMissing:   "check the workflowRef name and namespace",
	types.CodeSubworkflowAmbiguous: "qualify the workflowRef with an explicit namespace",
	types.CodeCircuitOpen:          "retry after the breaker's break duration elapses",
	types.CodeInputValidation:      "check the request body against the workflow's inputSchema",
}

// writeProblem writes err as a Problem Details response, deriving status and
// code from err's types.Classified code when present, and 500/no-code
// otherwise.
func writeProblem(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	status := http.StatusInternalServerError
	title := "Internal Server Error"
	code := ""
	suggestion := ""

	var classified types.Classified
	if errors.As(err, &classified) {
		code = string(classified.Code())
		if s, ok := statusForCode[classified.Code()]; ok {
			status = s
		}
		title = titleForStatus(status)
		suggestion = suggestionForCode[classified.Code()]
	}

	p := Problem{
		Type:       "about:blank",
		Title:      title,
		Status:     status,
		Detail:     err.Error(),
		Instance:   r.URL.Path,
		Code:       code,
		RequestID:  requestID,
		Suggestion: suggestion,
	}
	writeJSON(w, status, p, "application/problem+json")
}

func titleForStatus(status int) string {
	if t := http.StatusText(status); t != "" {
		return t
	}
	return "Internal Server Error"
}

func writeJSON(w http.ResponseWriter, status int, body any, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
