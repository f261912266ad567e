// ABOUTME: WorkflowVersion: content-hash identity for an immutable WorkflowResource snapshot

package types

import "time"

// WorkflowVersion pairs a WorkflowResource snapshot with the canonical
// content hash that identifies it. Two deployments of byte-identical
// semantics collapse onto the same hash even if incidental formatting
// (map key order, YAML comments) differs.
type WorkflowVersion struct {
	WorkflowName string           `json:"workflowName"`
	Hash         string           `json:"hash"`
	Resource     WorkflowResource `json:"resource"`
	CreatedAt    time.Time        `json:"createdAt"`
}
