// Package registry is the discovery index over activated artifacts: per
// entity, the ordered list of callable descriptors its current artifact
// exposes. Downstream consumers (the LLM function-calling layer,
// reporting) read the registry instead of activating artifacts
// themselves.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/policyforge/policyforge/pkg/artifact"
)

// Record is one entity's registered callable surface. Every successful
// Register replaces the record wholesale — records are never merged, so
// the registry always reflects only the most recently activated
// artifact.
type Record struct {
	EntityID     string                        `json:"entity_id"`
	RegisteredAt time.Time                     `json:"registered_at"`
	Functions    []artifact.FunctionDescriptor `json:"functions"`
}

// SearchHit pairs a matching descriptor with its owning entity. Search
// results are not deduplicated.
type SearchHit struct {
	EntityID string                      `json:"entity_id"`
	Function artifact.FunctionDescriptor `json:"function"`
}

// Registry indexes callable descriptors per entity. All backends share
// identical semantics; only persistence differs.
type Registry interface {
	// Register inspects source's discovery contract and persists its
	// descriptor list, replacing any prior record for the entity. A
	// source without the contract fails with *artifact.RegistrationError
	// and leaves any prior record untouched.
	Register(ctx context.Context, entityID string, source any) (*Record, error)

	// Get returns the entity's record; artifact.ErrNotFound on a miss.
	Get(ctx context.Context, entityID string) (*Record, error)

	// Search matches keyword case-insensitively against function names
	// and descriptions across all records, ordered by entity ID then
	// declaration order.
	Search(ctx context.Context, keyword string) ([]SearchHit, error)

	// List returns the registered entity IDs, sorted.
	List(ctx context.Context) ([]string, error)
}

// describe extracts the descriptor list from a registration source. The
// discovery contract is the only thing inspected: any value exposing
// AvailableFunctions registers, anything else is a content defect.
func describe(entityID string, source any) ([]artifact.FunctionDescriptor, error) {
	provider, ok := source.(artifact.FunctionProvider)
	if !ok {
		return nil, &artifact.RegistrationError{EntityID: entityID, Reason: "missing discovery contract"}
	}
	return provider.AvailableFunctions(), nil
}

// matches reports whether a descriptor matches the keyword. The empty
// keyword matches everything.
func matches(fn artifact.FunctionDescriptor, keyword string) bool {
	k := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(fn.Name), k) ||
		strings.Contains(strings.ToLower(fn.Description), k)
}

func normalizeID(entityID string) (string, error) {
	id := artifact.NormalizeEntityID(entityID)
	if id == "" {
		return "", fmt.Errorf("entity id is empty after normalization")
	}
	if strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid entity id %q", id)
	}
	return id, nil
}
