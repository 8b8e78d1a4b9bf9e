package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/policyforge/policyforge/pkg/artifact"

	_ "github.com/lib/pq"
)

// PostgresRegistry implements Registry with SQL persistence, storing each
// record wholesale as JSONB. Suited to deployments where several pipeline
// hosts share one registry.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

const pgRegistrySchema = `
CREATE TABLE IF NOT EXISTS policy_registry (
	entity_id TEXT PRIMARY KEY,
	registered_at TIMESTAMP NOT NULL,
	record_json JSONB NOT NULL
);
`

func (r *PostgresRegistry) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, pgRegistrySchema)
	return err
}

func (r *PostgresRegistry) Register(ctx context.Context, entityID string, source any) (*Record, error) {
	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	funcs, err := describe(id, source)
	if err != nil {
		return nil, err
	}

	record := &Record{
		EntityID:     id,
		RegisteredAt: time.Now().UTC(),
		Functions:    funcs,
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registry record: %w", err)
	}

	query := `
		INSERT INTO policy_registry (entity_id, registered_at, record_json)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id) DO UPDATE
		SET registered_at = $2, record_json = $3
	`
	if _, err := r.db.ExecContext(ctx, query, id, record.RegisteredAt, recordJSON); err != nil {
		return nil, fmt.Errorf("failed to upsert registry record: %w", err)
	}
	return record, nil
}

func (r *PostgresRegistry) Get(ctx context.Context, entityID string) (*Record, error) {
	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	var recordJSON []byte
	err = r.db.QueryRowContext(ctx,
		`SELECT record_json FROM policy_registry WHERE entity_id = $1`, id).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("registry record %s: %w", id, artifact.ErrNotFound)
		}
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(recordJSON, &record); err != nil {
		return nil, fmt.Errorf("failed to decode registry record for %s: %w", id, err)
	}
	return &record, nil
}

func (r *PostgresRegistry) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_id FROM policy_registry ORDER BY entity_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entities []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		entities = append(entities, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

// Search unpacks each record in Go rather than pushing the match into
// SQL, keeping keyword semantics identical across backends.
func (r *PostgresRegistry) Search(ctx context.Context, keyword string) ([]SearchHit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT record_json FROM policy_registry ORDER BY entity_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []SearchHit
	for rows.Next() {
		var recordJSON []byte
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, err
		}
		var record Record
		if err := json.Unmarshal(recordJSON, &record); err != nil {
			return nil, fmt.Errorf("failed to decode registry record: %w", err)
		}
		for _, fn := range record.Functions {
			if matches(fn, keyword) {
				hits = append(hits, SearchHit{EntityID: record.EntityID, Function: fn})
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}
