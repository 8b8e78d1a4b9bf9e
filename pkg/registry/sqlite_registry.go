package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/policyforge/policyforge/pkg/artifact"

	_ "modernc.org/sqlite"
)

// SQLiteRegistry persists registry records in an embedded SQLite
// database. Function rows carry an explicit position so Search and Get
// preserve declaration order.
type SQLiteRegistry struct {
	db *sql.DB
}

func NewSQLiteRegistry(db *sql.DB) (*SQLiteRegistry, error) {
	r := &SQLiteRegistry{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRegistry) migrate() error {
	ctx := context.Background()
	records := `
    CREATE TABLE IF NOT EXISTS registry_records (
        entity_id TEXT PRIMARY KEY,
        registered_at TEXT NOT NULL
    );`
	if _, err := r.db.ExecContext(ctx, records); err != nil {
		return err
	}
	functions := `
    CREATE TABLE IF NOT EXISTS registry_functions (
        entity_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        parameters JSON,
        PRIMARY KEY (entity_id, position)
    );`
	_, err := r.db.ExecContext(ctx, functions)
	return err
}

// Register replaces the entity's record and function rows in one
// transaction.
func (r *SQLiteRegistry) Register(ctx context.Context, entityID string, source any) (*Record, error) {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registry tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM registry_functions WHERE entity_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to clear function rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM registry_records WHERE entity_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to clear registry record: %w", err)
	}

	registeredAt := record.RegisteredAt.Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO registry_records (entity_id, registered_at) VALUES (?, ?)`,
		id, registeredAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert registry record: %w", err)
	}

	for i, fn := range funcs {
		paramsJSON, _ := json.Marshal(fn.Parameters)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO registry_functions (entity_id, position, name, description, parameters) VALUES (?, ?, ?, ?, ?)`,
			id, i, fn.Name, fn.Description, string(paramsJSON),
		); err != nil {
			return nil, fmt.Errorf("failed to insert function row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registry tx: %w", err)
	}
	return record, nil
}

func (r *SQLiteRegistry) Get(ctx context.Context, entityID string) (*Record, error) {
	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT registered_at FROM registry_records WHERE entity_id = ?`, id)

	var registeredAt string
	if err := row.Scan(&registeredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("registry record %s: %w", id, artifact.ErrNotFound)
		}
		return nil, err
	}

	funcs, err := r.functionsFor(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Record{
		EntityID:     id,
		RegisteredAt: parseRegisteredAt(registeredAt),
		Functions:    funcs,
	}, nil
}

func (r *SQLiteRegistry) functionsFor(ctx context.Context, id string) ([]artifact.FunctionDescriptor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, description, parameters FROM registry_functions WHERE entity_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var funcs []artifact.FunctionDescriptor
	for rows.Next() {
		fn, err := scanFunctionRow(rows)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return funcs, nil
}

func (r *SQLiteRegistry) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_id FROM registry_records ORDER BY entity_id`)
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

// Search scans function rows in entity-then-declaration order and filters
// in Go so keyword semantics match the other backends exactly.
func (r *SQLiteRegistry) Search(ctx context.Context, keyword string) ([]SearchHit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_id, name, description, parameters FROM registry_functions ORDER BY entity_id, position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []SearchHit
	for rows.Next() {
		var (
			id         string
			name       string
			desc       string
			paramsJSON sql.NullString
		)
		if err := rows.Scan(&id, &name, &desc, &paramsJSON); err != nil {
			return nil, err
		}
		fn := artifact.FunctionDescriptor{Name: name, Description: desc}
		if paramsJSON.Valid && paramsJSON.String != "" {
			_ = json.Unmarshal([]byte(paramsJSON.String), &fn.Parameters)
		}
		if matches(fn, keyword) {
			hits = append(hits, SearchHit{EntityID: id, Function: fn})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

func scanFunctionRow(rows *sql.Rows) (artifact.FunctionDescriptor, error) {
	var (
		name       string
		desc       string
		paramsJSON sql.NullString
	)
	if err := rows.Scan(&name, &desc, &paramsJSON); err != nil {
		return artifact.FunctionDescriptor{}, err
	}
	fn := artifact.FunctionDescriptor{Name: name, Description: desc}
	if paramsJSON.Valid && paramsJSON.String != "" {
		_ = json.Unmarshal([]byte(paramsJSON.String), &fn.Parameters)
	}
	return fn, nil
}

func parseRegisteredAt(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
