package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/policyforge/policyforge/pkg/artifact"
)

// PolicySummary describes one entity's stored state for reporting.
type PolicySummary struct {
	EntityID   string `json:"entity_id"`
	PolicyName string `json:"policy_name,omitempty"`
	Version    string `json:"version,omitempty"`
	Versions   int    `json:"versions"`
	Functions  int    `json:"functions"`
}

// SummaryReport aggregates the store and registry for all entities.
type SummaryReport struct {
	Entities  int             `json:"entities"`
	Functions int             `json:"functions"`
	Policies  []PolicySummary `json:"policies"`
}

// PolicyInfo reports one entity's current version, history depth, and
// registered function count.
func (p *Pipeline) PolicyInfo(ctx context.Context, entityID string) (*PolicySummary, error) {
	art, err := p.store.Load(ctx, entityID)
	if err != nil {
		return nil, err
	}

	summary := &PolicySummary{
		EntityID: art.EntityID,
		Version:  art.Version,
	}
	if name, ok := art.Metadata["policy_name"].(string); ok {
		summary.PolicyName = name
	}

	history, err := p.store.VersionHistory(ctx, art.EntityID)
	if err != nil {
		return nil, err
	}
	summary.Versions = len(history)

	rec, err := p.registry.Get(ctx, art.EntityID)
	switch {
	case err == nil:
		summary.Functions = len(rec.Functions)
	case errors.Is(err, artifact.ErrNotFound):
		// Saved but never registered; report zero functions.
	default:
		return nil, err
	}
	return summary, nil
}

// ListPolicies returns the stored entity IDs, sorted.
func (p *Pipeline) ListPolicies(ctx context.Context) ([]string, error) {
	return p.store.ListEntities(ctx)
}

// DeletePolicy purges an entity from the store, the history ledger, and
// the registry. Idempotent like the store's Delete.
func (p *Pipeline) DeletePolicy(ctx context.Context, entityID string) (bool, error) {
	ok, err := p.store.Delete(ctx, entityID)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", entityID, err)
	}
	p.logger.Info("policy deleted", "entity_id", entityID)
	return ok, nil
}

// Summary builds the full report across every stored entity.
func (p *Pipeline) Summary(ctx context.Context) (*SummaryReport, error) {
	entities, err := p.store.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	report := &SummaryReport{Entities: len(entities)}
	for _, id := range entities {
		summary, err := p.PolicyInfo(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", id, err)
		}
		report.Functions += summary.Functions
		report.Policies = append(report.Policies, *summary)
	}
	return report, nil
}
