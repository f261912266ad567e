// ABOUTME: File-backed types.WorkflowProvider: loads WorkflowResource YAML from a directory
// ABOUTME: built on the filesystem factory, repurposed to this engine's own YAML shape

package workflowprovider

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ritualflow/engine/internal/filesystem"
	"github.com/ritualflow/engine/pkg/types"
)

// Provider resolves WorkflowResources by name from a directory of YAML
// files, one workflow per `<name>.yaml`. The directory may live on local
// disk, S3, or an SFTP/SSH host, any URI scheme `filesystem.GetFilesystem`
// understands, so `workflowRef` targets can be resolved from a shared
// registry instead of only an in-memory list.
type Provider struct {
	fs   afero.Fs
	root string

	mu    sync.RWMutex
	cache map[string]*types.WorkflowResource
}

// New resolves rootURI to a backing afero.Fs via filesystem.GetFilesystem
// and returns a Provider that loads `<name>.yaml` workflow definitions
// beneath it.
func New(rootURI string, fsConfig *filesystem.Config) (*Provider, error) {
	info, err := filesystem.ParsePath(rootURI)
	if err != nil {
		return nil, fmt.Errorf("workflowprovider: %w", err)
	}
	fs, err := filesystem.GetFilesystem(rootURI, fsConfig)
	if err != nil {
		return nil, fmt.Errorf("workflowprovider: %w", err)
	}
	return &Provider{fs: fs, root: info.Path, cache: make(map[string]*types.WorkflowResource)}, nil
}

// GetWorkflow implements types.WorkflowProvider, parsing and caching the
// named workflow's YAML definition on first lookup.
func (p *Provider) GetWorkflow(name string) (*types.WorkflowResource, error) {
	p.mu.RLock()
	if wf, ok := p.cache[name]; ok {
		p.mu.RUnlock()
		return wf, nil
	}
	p.mu.RUnlock()

	filePath := path.Join(p.root, name+".yaml")
	data, err := afero.ReadFile(p.fs, filePath)
	if err != nil {
		return nil, types.NewSubworkflowError(types.CodeSubworkflowMissing, name, "workflow definition not found: "+err.Error(), nil)
	}

	var wf types.WorkflowResource
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("workflowprovider: parsing %q: %w", filePath, err)
	}
	if wf.Metadata.Name == "" {
		wf.Metadata.Name = name
	}

	p.mu.Lock()
	p.cache[name] = &wf
	p.mu.Unlock()
	return &wf, nil
}

// ListWorkflows implements types.WorkflowProvider, enumerating every
// `*.yaml` file directly beneath root (sorted for a stable CLI/REST
// listing).
func (p *Provider) ListWorkflows() ([]string, error) {
	entries, err := afero.ReadDir(p.fs, p.root)
	if err != nil {
		return nil, fmt.Errorf("workflowprovider: listing %q: %w", p.root, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}
