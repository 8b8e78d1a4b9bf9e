package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/policyforge/policyforge/pkg/artifact"
	"github.com/policyforge/policyforge/pkg/blob"
	"github.com/policyforge/policyforge/pkg/store"
)

const registryKeySuffix = "_registry.json"

// FileRegistry keeps one JSON record per entity on a blob backend,
// sharing the artifact store's layout so a full entity purge removes the
// registry record too. This is the reference backend the pipeline uses
// by default.
type FileRegistry struct {
	backend blob.Store
	mu      sync.RWMutex
}

// NewFileRegistry builds a registry over the given backend, normally the
// same one the artifact store writes to.
func NewFileRegistry(backend blob.Store) *FileRegistry {
	return &FileRegistry{backend: backend}
}

// Register persists the source's descriptor list, replacing any prior
// record for the entity wholesale.
func (r *FileRegistry) Register(ctx context.Context, entityID string, source any) (*Record, error) {
	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	funcs, err := describe(id, source)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record := &Record{
		EntityID:     id,
		RegisteredAt: time.Now().UTC(),
		Functions:    funcs,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registry record: %w", err)
	}

	key := store.RegistryRecordKey(id)
	if err := r.backend.Put(ctx, key, data); err != nil {
		return nil, &artifact.WriteError{Key: key, Err: err}
	}
	return record, nil
}

// Get returns the entity's record; artifact.ErrNotFound on a miss.
func (r *FileRegistry) Get(ctx context.Context, entityID string) (*Record, error) {
	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := r.backend.Get(ctx, store.RegistryRecordKey(id))
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode registry record for %s: %w", id, err)
	}
	return &record, nil
}

// List returns the registered entity IDs, sorted.
func (r *FileRegistry) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listLocked(ctx)
}

func (r *FileRegistry) listLocked(ctx context.Context) ([]string, error) {
	keys, err := r.backend.List(ctx, "metadata/")
	if err != nil {
		return nil, err
	}

	var entities []string
	for _, key := range keys {
		name := strings.TrimPrefix(key, "metadata/")
		if !strings.HasSuffix(name, registryKeySuffix) {
			continue
		}
		name = strings.TrimSuffix(name, registryKeySuffix)
		if name != "" {
			entities = append(entities, name)
		}
	}
	return entities, nil
}

// Search walks records in sorted entity order, matching descriptors in
// declaration order.
func (r *FileRegistry) Search(ctx context.Context, keyword string) ([]SearchHit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities, err := r.listLocked(ctx)
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for _, id := range entities {
		data, err := r.backend.Get(ctx, store.RegistryRecordKey(id))
		if err != nil {
			return nil, err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode registry record for %s: %w", id, err)
		}
		for _, fn := range record.Functions {
			if matches(fn, keyword) {
				hits = append(hits, SearchHit{EntityID: record.EntityID, Function: fn})
			}
		}
	}
	return hits, nil
}
