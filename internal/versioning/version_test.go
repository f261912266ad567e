// ABOUTME: Tests for content-hash stability and the create-if-changed versioning flow

package versioning

import (
	"testing"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

func sampleWorkflow() *types.WorkflowResource {
	return &types.WorkflowResource{
		Metadata: types.WorkflowMetadata{Name: "billing", Namespace: "default"},
		Tasks: []types.RawTaskStep{
			{ID: "t1", TaskRef: "fetch"},
			{ID: "t2", TaskRef: "charge", DependsOn: []string{"t1"}},
		},
	}
}

func TestCalculateVersionHash_Deterministic(t *testing.T) {
	wf := sampleWorkflow()
	h1, err := CalculateVersionHash(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := CalculateVersionHash(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected identical hash for identical definitions, got %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(h1))
	}
}

func TestCalculateVersionHash_ChangesOnTaskReorder(t *testing.T) {
	wf := sampleWorkflow()
	h1, _ := CalculateVersionHash(wf)

	wf.Tasks[0], wf.Tasks[1] = wf.Tasks[1], wf.Tasks[0]
	h2, _ := CalculateVersionHash(wf)

	if h1 == h2 {
		t.Error("expected reordering tasks to change the hash")
	}
}

func TestCalculateVersionHash_IgnoresVersionAnnotation(t *testing.T) {
	wf := sampleWorkflow()
	h1, _ := CalculateVersionHash(wf)

	wf.Metadata.Version = "v99"
	h2, _ := CalculateVersionHash(wf)

	if h1 != h2 {
		t.Error("expected the transient Version annotation to be excluded from the hash")
	}
}

type fakeVersionRepo struct {
	versions map[string][]*types.WorkflowVersion
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{versions: make(map[string][]*types.WorkflowVersion)}
}

func (r *fakeVersionRepo) SaveVersion(v *types.WorkflowVersion) error {
	r.versions[v.WorkflowName] = append(r.versions[v.WorkflowName], v)
	return nil
}

func (r *fakeVersionRepo) GetVersion(workflowName, hash string) (*types.WorkflowVersion, error) {
	for _, v := range r.versions[workflowName] {
		if v.Hash == hash {
			return v, nil
		}
	}
	return nil, types.NewPersistenceError("GetVersion", "not found", nil)
}

func (r *fakeVersionRepo) ListVersions(workflowName string) ([]*types.WorkflowVersion, error) {
	return r.versions[workflowName], nil
}

func (r *fakeVersionRepo) LatestVersion(workflowName string) (*types.WorkflowVersion, error) {
	vs := r.versions[workflowName]
	if len(vs) == 0 {
		return nil, types.NewPersistenceError("LatestVersion", "not found", nil)
	}
	return vs[len(vs)-1], nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestCreateVersionIfChanged_FirstCallCreates(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := New(repo, fixedClock{t: time.Unix(0, 0)})

	created, v, err := svc.CreateVersionIfChanged(sampleWorkflow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected the first call to create a version")
	}
	if v.WorkflowName != "billing" {
		t.Errorf("unexpected workflow name: %s", v.WorkflowName)
	}
}

func TestCreateVersionIfChanged_UnchangedDoesNotDuplicate(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := New(repo, fixedClock{t: time.Unix(0, 0)})

	wf := sampleWorkflow()
	svc.CreateVersionIfChanged(wf)
	created, _, err := svc.CreateVersionIfChanged(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected no new version when content is unchanged")
	}
	if len(repo.versions["billing"]) != 1 {
		t.Errorf("expected exactly one stored version, got %d", len(repo.versions["billing"]))
	}
}

func TestCreateVersionIfChanged_ChangedCreatesNew(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := New(repo, fixedClock{t: time.Unix(0, 0)})

	wf := sampleWorkflow()
	svc.CreateVersionIfChanged(wf)

	wf.Tasks = append(wf.Tasks, types.RawTaskStep{ID: "t3", TaskRef: "notify"})
	created, _, err := svc.CreateVersionIfChanged(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected adding a task to create a new version")
	}
	if len(repo.versions["billing"]) != 2 {
		t.Errorf("expected two stored versions, got %d", len(repo.versions["billing"]))
	}
}
