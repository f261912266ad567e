// ABOUTME: content-hash identity for a WorkflowResource definition
// ABOUTME: normalizes transient metadata away so byte-identical semantics collapse to one hash

package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

// canonicalWorkflow mirrors WorkflowResource's content-relevant fields.
// Metadata.Version is intentionally excluded: it is derived FROM the hash,
// so including it would make the hash depend on its own prior value.
type canonicalWorkflow struct {
	Metadata struct {
		Name      string            `json:"name"`
		Namespace string            `json:"namespace"`
		Labels    map[string]string `json:"labels,omitempty"`
	} `json:"metadata"`
	InputSchema map[string]types.InputProperty `json:"inputSchema,omitempty"`
	Output      map[string]string              `json:"output,omitempty"`
	Tasks       []types.RawTaskStep             `json:"tasks"`
}

func normalize(wf *types.WorkflowResource) canonicalWorkflow {
	var c canonicalWorkflow
	c.Metadata.Name = wf.Name()
	c.Metadata.Namespace = wf.Namespace()
	c.Metadata.Labels = wf.Metadata.Labels
	c.InputSchema = wf.InputSchema
	c.Output = wf.Output
	c.Tasks = wf.Tasks
	return c
}

// CalculateVersionHash serializes wf's normalized content to a stable textual
// form (encoding/json sorts map keys by construction) and returns its SHA-256
// as a 64-character hex digest. Identical definitions hash identically; any
// task add/remove/reorder/input change changes the hash.
func CalculateVersionHash(wf *types.WorkflowResource) (string, error) {
	data, err := json.Marshal(normalize(wf))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Service records new WorkflowVersions when a definition's content changes.
type Service struct {
	repo  types.WorkflowVersionRepository
	clock types.Clock
}

func New(repo types.WorkflowVersionRepository, clock types.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now()
}

// CreateVersionIfChanged compares wf's hash against the latest stored
// version for its name; if different (or none exists), it appends a new
// WorkflowVersion row and returns (true, newVersion). Otherwise returns
// (false, existingVersion) without writing.
func (s *Service) CreateVersionIfChanged(wf *types.WorkflowResource) (bool, *types.WorkflowVersion, error) {
	hash, err := CalculateVersionHash(wf)
	if err != nil {
		return false, nil, err
	}

	latest, err := s.repo.LatestVersion(wf.Name())
	if err == nil && latest != nil && latest.Hash == hash {
		return false, latest, nil
	}

	v := &types.WorkflowVersion{
		WorkflowName: wf.Name(),
		Hash:         hash,
		Resource:     *wf,
		CreatedAt:    s.now(),
	}
	if err := s.repo.SaveVersion(v); err != nil {
		return false, nil, types.NewPersistenceError("SaveVersion", "failed to persist workflow version", err)
	}
	return true, v, nil
}
