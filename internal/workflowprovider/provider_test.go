// ABOUTME: Tests for the file-backed WorkflowProvider against an in-memory afero filesystem

package workflowprovider

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/ritualflow/engine/pkg/types"
)

const sampleWorkflowYAML = `
metadata:
  name: greet
  version: "1"
inputSchema:
  name:
    type: string
    required: true
output:
  message: "{{tasks.say-hello.output.text}}"
tasks:
  - id: say-hello
    taskRef: http-call
    input:
      url: "https://example.invalid/greet"
`

func newTestProvider(files map[string]string) *Provider {
	fs := afero.NewMemMapFs()
	for name, content := range files {
		_ = afero.WriteFile(fs, "/workflows/"+name, []byte(content), 0o644)
	}
	return &Provider{fs: fs, root: "/workflows", cache: make(map[string]*types.WorkflowResource)}
}

func TestProvider_GetWorkflow_ParsesYAML(t *testing.T) {
	p := newTestProvider(map[string]string{"greet.yaml": sampleWorkflowYAML})

	wf, err := p.GetWorkflow("greet")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if wf.Name() != "greet" {
		t.Errorf("Name() = %q, want %q", wf.Name(), "greet")
	}
	if len(wf.Tasks) != 1 || wf.Tasks[0].ID != "say-hello" {
		t.Fatalf("unexpected tasks: %+v", wf.Tasks)
	}
}

func TestProvider_GetWorkflow_CachesAfterFirstLoad(t *testing.T) {
	p := newTestProvider(map[string]string{"greet.yaml": sampleWorkflowYAML})

	first, err := p.GetWorkflow("greet")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}

	// Remove the backing file; a cached lookup must still succeed.
	_ = p.fs.Remove("/workflows/greet.yaml")

	second, err := p.GetWorkflow("greet")
	if err != nil {
		t.Fatalf("GetWorkflow (cached): %v", err)
	}
	if first != second {
		t.Errorf("expected cached lookup to return the same *WorkflowResource instance")
	}
}

func TestProvider_GetWorkflow_MissingReturnsSubworkflowMissing(t *testing.T) {
	p := newTestProvider(nil)

	_, err := p.GetWorkflow("absent")
	if err == nil {
		t.Fatal("expected error for missing workflow")
	}

	var classified types.Classified
	if !errors.As(err, &classified) {
		t.Fatalf("expected a types.Classified error, got %v", err)
	}
	if classified.Code() != types.CodeSubworkflowMissing {
		t.Errorf("Code() = %v, want %v", classified.Code(), types.CodeSubworkflowMissing)
	}
}

func TestProvider_ListWorkflows_ReturnsSortedNamesWithoutExtension(t *testing.T) {
	p := newTestProvider(map[string]string{
		"zeta.yaml":  sampleWorkflowYAML,
		"alpha.yaml": sampleWorkflowYAML,
		"notes.txt":  "not a workflow",
	})

	names, err := p.ListWorkflows()
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if strings.Join(names, ",") != "alpha,zeta" {
		t.Errorf("ListWorkflows() = %v, want [alpha zeta]", names)
	}
}

func TestProvider_ListWorkflows_EmptyDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/workflows", 0o755)
	p := &Provider{fs: fs, root: "/workflows", cache: make(map[string]*types.WorkflowResource)}

	names, err := p.ListWorkflows()
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("ListWorkflows() = %v, want empty", names)
	}
}

