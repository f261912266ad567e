package taskdefs

import (
	"errors"
	"testing"

	"github.com/ritualflow/engine/pkg/types"
)

func TestRegistry_GetTaskDefinition_ReturnsRegistered(t *testing.T) {
	r := New()
	r.Register(&types.TaskDefinition{Name: "charge-card"})

	d, err := r.GetTaskDefinition("charge-card")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "charge-card" {
		t.Errorf("expected charge-card, got %q", d.Name)
	}
}

func TestRegistry_GetTaskDefinition_UnknownReturnsClassifiedError(t *testing.T) {
	r := New()

	_, err := r.GetTaskDefinition("missing")
	if err == nil {
		t.Fatal("expected error for unregistered task")
	}
	var classified types.Classified
	if !errors.As(err, &classified) {
		t.Fatalf("expected a types.Classified error, got %T", err)
	}
	if classified.Code() != types.CodeUnknownTaskRef {
		t.Errorf("expected CodeUnknownTaskRef, got %s", classified.Code())
	}
}

func TestRegistry_ListTaskDefinitions_SortedByName(t *testing.T) {
	r := New()
	r.Register(&types.TaskDefinition{Name: "send-receipt"})
	r.Register(&types.TaskDefinition{Name: "charge-card"})
	r.Register(&types.TaskDefinition{Name: "notify-slack"})

	list, err := r.ListTaskDefinitions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"charge-card", "notify-slack", "send-receipt"}
	if len(list) != len(want) {
		t.Fatalf("expected %d definitions, got %d", len(want), len(list))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("index %d: expected %q, got %q", i, name, list[i].Name)
		}
	}
}

func TestRegistry_ListTaskDefinitions_EmptyWhenNoneRegistered(t *testing.T) {
	r := New()
	list, err := r.ListTaskDefinitions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %+v", list)
	}
}
