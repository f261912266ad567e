// ABOUTME: Tests for workflowRef grammar parsing, resolution, and the cycle guard

package workflowref

import (
	"testing"

	"github.com/ritualflow/engine/pkg/types"
)

func TestParseRef(t *testing.T) {
	cases := []struct {
		raw  string
		want Ref
	}{
		{"billing", Ref{Name: "billing"}},
		{"billing@v2", Ref{Name: "billing", Version: "v2"}},
		{"ns1/billing", Ref{Namespace: "ns1", Name: "billing"}},
		{"ns1/billing@v2", Ref{Namespace: "ns1", Name: "billing", Version: "v2"}},
	}
	for _, c := range cases {
		got, err := ParseRef(c.raw)
		if err != nil {
			t.Fatalf("ParseRef(%q) error: %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("ParseRef(%q) = %+v, want %+v", c.raw, got, c.want)
		}
	}
}

func TestParseRef_Empty(t *testing.T) {
	if _, err := ParseRef(""); err == nil {
		t.Error("expected error for empty ref")
	}
}

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
	ids := make([]string, 0, len(p.workflows))
	for id := range p.workflows {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestResolve_UniqueMatch(t *testing.T) {
	wf := &types.WorkflowResource{Metadata: types.WorkflowMetadata{Name: "billing", Namespace: "ns1"}}
	p := &fakeProvider{workflows: map[string]*types.WorkflowResource{"ns1/billing": wf}}

	got, err := Resolve("billing", "ns1", p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != wf {
		t.Error("expected to resolve the registered workflow")
	}
}

func TestResolve_NamespaceInheritedFromCaller(t *testing.T) {
	wf := &types.WorkflowResource{Metadata: types.WorkflowMetadata{Name: "billing", Namespace: "payments"}}
	p := &fakeProvider{workflows: map[string]*types.WorkflowResource{"payments/billing": wf}}

	if _, err := Resolve("billing", "other-ns", p); err == nil {
		t.Error("expected NotFound when caller namespace does not match")
	}
	if _, err := Resolve("billing", "payments", p); err != nil {
		t.Errorf("expected resolution within the caller's namespace, got %v", err)
	}
}

func TestResolve_NotFound(t *testing.T) {
	p := &fakeProvider{workflows: map[string]*types.WorkflowResource{}}
	_, err := Resolve("missing", "default", p)
	if err == nil {
		t.Fatal("expected NotFound error")
	}
	se, ok := err.(*types.SubworkflowError)
	if !ok || se.Code() != types.CodeSubworkflowMissing {
		t.Errorf("expected SUBWORKFLOW_NOT_FOUND, got %v", err)
	}
}

func TestResolve_VersionFilter(t *testing.T) {
	v1 := &types.WorkflowResource{Metadata: types.WorkflowMetadata{Name: "billing", Namespace: "default", Version: "v1"}}
	p := &fakeProvider{workflows: map[string]*types.WorkflowResource{"default/billing": v1}}

	if _, err := Resolve("billing@v2", "default", p); err == nil {
		t.Error("expected NotFound for a version that doesn't match")
	}
	if _, err := Resolve("billing@v1", "default", p); err != nil {
		t.Errorf("expected match on correct version, got %v", err)
	}
}

func TestCheckCycle_DetectsSelfReentry(t *testing.T) {
	stack := []string{"default/root", "default/child"}
	err := CheckCycle(stack, "default/root")
	if err == nil {
		t.Fatal("expected cyclic error")
	}
	se, ok := err.(*types.SubworkflowError)
	if !ok || se.Code() != types.CodeSubworkflowCyclic {
		t.Fatalf("expected SUBWORKFLOW_CYCLIC, got %v", err)
	}
	want := []string{"default/root", "default/child", "default/root"}
	if len(se.Witness) != len(want) {
		t.Fatalf("witness = %v, want %v", se.Witness, want)
	}
	for i := range want {
		if se.Witness[i] != want[i] {
			t.Errorf("witness[%d] = %s, want %s", i, se.Witness[i], want[i])
		}
	}
}

func TestCheckCycle_NoCycle(t *testing.T) {
	stack := []string{"default/root"}
	if err := CheckCycle(stack, "default/child"); err != nil {
		t.Errorf("expected no cycle, got %v", err)
	}
}
