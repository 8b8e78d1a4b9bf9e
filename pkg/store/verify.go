package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/policyforge/policyforge/pkg/artifact"
)

// VerifyIssue is one integrity finding for an entity.
type VerifyIssue struct {
	Version string `json:"version"`
	Problem string `json:"problem"`
}

// VerifyReport summarizes an integrity sweep over one entity's history.
type VerifyReport struct {
	EntityID string        `json:"entity_id"`
	Checked  int           `json:"checked"`
	Issues   []VerifyIssue `json:"issues,omitempty"`
}

// OK reports whether the sweep found nothing wrong.
func (r *VerifyReport) OK() bool { return len(r.Issues) == 0 }

// Verify recomputes the content hash of every versioned copy named in
// the entity's history ledger and cross-checks the layout: ledger
// entries whose blob is missing or altered, versioned copies the ledger
// does not know about (partial-write strays), and a current copy that
// does not match the latest ledger entry are all reported. Verification
// never repairs anything.
func (s *Store) Verify(ctx context.Context, entityID string) (*VerifyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	history, err := s.readHistory(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{EntityID: id, Checked: len(history)}
	known := make(map[string]bool, len(history))

	for _, entry := range history {
		known[entry.Version] = true
		data, err := s.backend.Get(ctx, versionKey(id, entry.Version))
		if errors.Is(err, artifact.ErrNotFound) {
			report.Issues = append(report.Issues, VerifyIssue{
				Version: entry.Version,
				Problem: "versioned copy missing",
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		if got := artifact.ContentHash(data); got != entry.ContentHash {
			report.Issues = append(report.Issues, VerifyIssue{
				Version: entry.Version,
				Problem: fmt.Sprintf("content hash mismatch: ledger %s, stored %s", entry.ContentHash, got),
			})
		}
	}

	stored, err := s.storedVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, v := range stored {
		if !known[v] {
			report.Issues = append(report.Issues, VerifyIssue{
				Version: v,
				Problem: "versioned copy absent from history ledger",
			})
		}
	}

	if len(history) > 0 {
		latest := history[len(history)-1]
		current, err := s.backend.Get(ctx, currentKey(id))
		switch {
		case errors.Is(err, artifact.ErrNotFound):
			report.Issues = append(report.Issues, VerifyIssue{
				Version: latest.Version,
				Problem: "current copy missing",
			})
		case err != nil:
			return nil, err
		default:
			if got := artifact.ContentHash(current); got != latest.ContentHash {
				report.Issues = append(report.Issues, VerifyIssue{
					Version: latest.Version,
					Problem: "current copy does not match latest history entry",
				})
			}
		}
	}

	return report, nil
}
