package taskdefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleCatalogYAML = `
tasks:
  - name: http-call
    request:
      method: GET
      url: "https://example.invalid/health"
    timeout: 5s
  - name: notify
    request:
      method: POST
      url: "https://example.invalid/notify"
`

func TestLoadFile_RegistersEveryCatalogEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalogYAML), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	reg := New()
	if err := LoadFile(reg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	defs, err := reg.ListTaskDefinitions()
	if err != nil {
		t.Fatalf("ListTaskDefinitions: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 task definitions, got %d", len(defs))
	}

	httpCall, err := reg.GetTaskDefinition("http-call")
	if err != nil {
		t.Fatalf("GetTaskDefinition: %v", err)
	}
	if httpCall.Request.Method != "GET" || httpCall.Request.URL != "https://example.invalid/health" {
		t.Errorf("unexpected request: %+v", httpCall.Request)
	}
	if httpCall.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", httpCall.Timeout)
	}
}

func TestLoadFile_MissingFileReturnsError(t *testing.T) {
	reg := New()
	if err := LoadFile(reg, "/does/not/exist.yaml"); err == nil {
		t.Fatal("expected an error for a missing catalog file")
	}
}
