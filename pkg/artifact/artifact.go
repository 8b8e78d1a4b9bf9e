// Package artifact defines the shared vocabulary of the policyforge core:
// stored artifacts, history entries, callable descriptors, and the error
// taxonomy every component reports in.
package artifact

import (
	"time"
)

// Artifact is one stored ruleset: the opaque blob plus the version and
// integrity fields resolved at load time. Metadata is passed through the
// store unchanged.
type Artifact struct {
	EntityID    string         `json:"entity_id"`
	Version     string         `json:"version"`
	Blob        []byte         `json:"-"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	ContentHash string         `json:"content_hash"`
}

// HistoryEntry is one line of an entity's append-only version ledger.
// The ledger holds exactly one entry per save, in save order.
type HistoryEntry struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	ContentHash string    `json:"content_hash"`
}

// FunctionDescriptor describes one callable exposed by an activated
// artifact, in the shape consumed by downstream discovery (including the
// LLM function-calling layer). Parameters maps parameter name to a
// human-readable type hint.
type FunctionDescriptor struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}

// FunctionProvider is the discovery contract an activated artifact must
// honor before it can be registered. Registration of a value that does
// not implement it fails with RegistrationError.
type FunctionProvider interface {
	AvailableFunctions() []FunctionDescriptor
}
