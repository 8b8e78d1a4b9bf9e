// Package store is the versioned artifact store: one overwritable
// "current" slot per entity, immutable versioned copies, per-version
// metadata records, and an append-only history ledger, all persisted
// through a pluggable blob backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/policyforge/policyforge/pkg/artifact"
	"github.com/policyforge/policyforge/pkg/blob"
	"github.com/policyforge/policyforge/pkg/signing"
	"github.com/policyforge/policyforge/pkg/versioning"
)

// Store owns the artifact layout on one blob backend. A single mutex
// serializes the read-history → write copies → append-history sequence
// for in-process callers; writers in other processes remain
// unsynchronized, which is an explicit non-goal.
type Store struct {
	backend blob.Store
	clock   func() time.Time
	keyring *signing.Keyring

	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the save timestamp source. Timestamps are expected
// to be non-decreasing per entity; the default is time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithKeyring enables artifact signing: every versioned copy gets a
// detached signature object, and Activate refuses blobs whose signature
// is missing or invalid.
func WithKeyring(k *signing.Keyring) Option {
	return func(s *Store) { s.keyring = k }
}

// New builds a store over the given backend.
func New(backend blob.Store, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveResult reports a completed save: the resolved version and the
// backend keys of the two written copies.
type SaveResult struct {
	EntityID    string
	Version     versioning.Version
	CurrentPath string
	VersionPath string
	ContentHash string
}

// metadataRecord is the per-version record persisted alongside each
// save. CreatedAt marshals as RFC 3339 with nanoseconds.
type metadataRecord struct {
	EntityID    string         `json:"entity_id"`
	Version     string         `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	ContentHash string         `json:"content_hash"`
	Metadata    map[string]any `json:"metadata"`
	CurrentPath string         `json:"current_path"`
	VersionPath string         `json:"version_path"`
}

type saveConfig struct {
	version *versioning.Version
}

// SaveOption configures a single Save call.
type SaveOption func(*saveConfig)

// WithVersion records the artifact under an explicit version instead of
// the allocator's. The version is used verbatim: the store does not
// check that it is greater than the previous one, so callers can
// (intentionally or not) create non-monotonic history.
func WithVersion(v versioning.Version) SaveOption {
	return func(c *saveConfig) { c.version = &v }
}

// Save persists a new artifact version for an entity. Without an
// explicit version the allocator derives the next one from the history
// ledger: 1.0.0 on first save, patch+1 of the latest entry after.
//
// Writes happen in order: current copy, versioned copy, signature (when
// a keyring is configured), metadata record, history append. There is no
// rollback — a failure partway leaves the earlier writes in place, so
// the current copy can briefly lead its own history entry.
func (s *Store) Save(ctx context.Context, entityID string, data []byte, metadata map[string]any, opts ...SaveOption) (*SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	var cfg saveConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	history, err := s.readHistory(ctx, id)
	if err != nil {
		return nil, err
	}

	var version versioning.Version
	if cfg.version != nil {
		version = *cfg.version
	} else {
		version, err = versioning.Next(history)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock()
	hash := artifact.ContentHash(data)
	curKey := currentKey(id)
	verKey := versionKey(id, version.String())

	if err := s.backend.Put(ctx, curKey, data); err != nil {
		return nil, &artifact.WriteError{Key: curKey, Err: err}
	}
	if err := s.backend.Put(ctx, verKey, data); err != nil {
		return nil, &artifact.WriteError{Key: verKey, Err: err}
	}
	if s.keyring != nil {
		if err := s.writeSignature(ctx, id, version.String(), data); err != nil {
			return nil, err
		}
	}

	record := metadataRecord{
		EntityID:    id,
		Version:     version.String(),
		CreatedAt:   now,
		ContentHash: hash,
		Metadata:    metadata,
		CurrentPath: curKey,
		VersionPath: verKey,
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata record: %w", err)
	}
	metaKey := metadataKey(id, version.String())
	if err := s.backend.Put(ctx, metaKey, recordJSON); err != nil {
		return nil, &artifact.WriteError{Key: metaKey, Err: err}
	}

	history = append(history, artifact.HistoryEntry{
		Version:     version.String(),
		CreatedAt:   now,
		ContentHash: hash,
	})
	if err := s.writeHistory(ctx, id, history); err != nil {
		return nil, err
	}

	return &SaveResult{
		EntityID:    id,
		Version:     version,
		CurrentPath: curKey,
		VersionPath: verKey,
		ContentHash: hash,
	}, nil
}

// Load returns the current artifact for an entity, resolved against the
// latest history entry for its version, timestamp, and metadata. A miss
// wraps artifact.ErrNotFound.
func (s *Store) Load(ctx context.Context, entityID string) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, currentKey(id))
	if err != nil {
		return nil, err
	}

	history, err := s.readHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		// Current copy without a ledger entry: the documented
		// partial-write window. Return what can be derived from the blob.
		return &artifact.Artifact{
			EntityID:    id,
			Blob:        data,
			ContentHash: artifact.ContentHash(data),
		}, nil
	}

	latest := history[len(history)-1]
	art := &artifact.Artifact{
		EntityID:    id,
		Version:     latest.Version,
		Blob:        data,
		CreatedAt:   latest.CreatedAt,
		ContentHash: latest.ContentHash,
	}
	art.Metadata = s.readMetadataMap(ctx, id, latest.Version)
	return art, nil
}

// LoadVersion returns one exact versioned copy with its metadata record.
// A miss wraps artifact.ErrNotFound.
func (s *Store) LoadVersion(ctx context.Context, entityID, version string) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, versionKey(id, version))
	if err != nil {
		return nil, err
	}

	art := &artifact.Artifact{
		EntityID: id,
		Version:  version,
		Blob:     data,
	}

	recordJSON, err := s.backend.Get(ctx, metadataKey(id, version))
	switch {
	case err == nil:
		var record metadataRecord
		if err := json.Unmarshal(recordJSON, &record); err != nil {
			return nil, fmt.Errorf("failed to decode metadata record for %s v%s: %w", id, version, err)
		}
		art.CreatedAt = record.CreatedAt
		art.ContentHash = record.ContentHash
		art.Metadata = record.Metadata
	case errors.Is(err, artifact.ErrNotFound):
		art.ContentHash = artifact.ContentHash(data)
	default:
		return nil, err
	}
	return art, nil
}

// ListEntities returns every entity with a current artifact, sorted.
func (s *Store) ListEntities(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.backend.List(ctx, currentPrefix)
	if err != nil {
		return nil, err
	}

	entities := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, currentPrefix)
		name = strings.TrimSuffix(name, ".json")
		if name != "" {
			entities = append(entities, name)
		}
	}
	// Backends promise sorted keys; do not depend on it.
	sort.Strings(entities)
	return entities, nil
}

// VersionHistory returns the entity's ledger oldest-first. Unknown
// entities get an empty slice, not an error.
func (s *Store) VersionHistory(ctx context.Context, entityID string) ([]artifact.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}
	return s.readHistory(ctx, id)
}

// StoredVersions lists the versioned copies actually present on the
// backend for an entity, sorted ascending by semantic version. This can
// differ from the history ledger after DeleteVersion or a partial write;
// Verify reports on the difference.
func (s *Store) StoredVersions(ctx context.Context, entityID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}
	return s.storedVersions(ctx, id)
}

func (s *Store) storedVersions(ctx context.Context, id string) ([]string, error) {
	prefix := versionPrefix + id + "_v"
	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	parsed := make([]*semver.Version, 0, len(keys))
	for _, key := range keys {
		token := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".json")
		v, err := semver.NewVersion(token)
		if err != nil {
			return nil, &artifact.VersionParseError{Raw: token}
		}
		parsed = append(parsed, v)
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].LessThan(parsed[j]) })

	out := make([]string, len(parsed))
	for i, v := range parsed {
		out[i] = v.Original()
	}
	return out, nil
}

// Delete purges an entity: current copy, every versioned copy, every
// metadata record, the history ledger, the registry record, and any
// signatures. The boolean mirrors the reference API — deleting an
// unknown entity is success, both the first time and every time after.
func (s *Store) Delete(ctx context.Context, entityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := normalizeID(entityID)
	if err != nil {
		return false, err
	}

	prefixes := []string{
		versionPrefix + id + "_v",
		metadataPrefix + id + "_v",
		signaturePrefix + id + "_v",
	}
	for _, prefix := range prefixes {
		keys, err := s.backend.List(ctx, prefix)
		if err != nil {
			return false, err
		}
		for _, key := range keys {
			if err := s.backend.Delete(ctx, key); err != nil {
				return false, err
			}
		}
	}

	for _, key := range []string{currentKey(id), historyKey(id), RegistryRecordKey(id)} {
		if err := s.backend.Delete(ctx, key); err != nil {
			return false, err
		}
	}
	return true, nil
}

// DeleteVersion removes one versioned copy, its metadata record, and its
// signature. It never touches the current copy or the history ledger —
// deleting the version that happens to be current leaves current in
// place, a documented asymmetry. Idempotent.
func (s *Store) DeleteVersion(ctx context.Context, entityID, version string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := normalizeID(entityID)
	if err != nil {
		return false, err
	}

	keys := []string{
		versionKey(id, version),
		metadataKey(id, version),
		signatureKey(id, version),
	}
	for _, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *Store) readHistory(ctx context.Context, id string) ([]artifact.HistoryEntry, error) {
	data, err := s.backend.Get(ctx, historyKey(id))
	if errors.Is(err, artifact.ErrNotFound) {
		return []artifact.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var history []artifact.HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode history ledger for %s: %w", id, err)
	}
	return history, nil
}

func (s *Store) writeHistory(ctx context.Context, id string, history []artifact.HistoryEntry) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode history ledger: %w", err)
	}
	key := historyKey(id)
	if err := s.backend.Put(ctx, key, data); err != nil {
		return &artifact.WriteError{Key: key, Err: err}
	}
	return nil
}

// readMetadataMap fetches just the opaque metadata mapping for a
// version. A missing or unreadable record degrades to nil rather than
// failing the load: the blob itself is the source of truth.
func (s *Store) readMetadataMap(ctx context.Context, id, version string) map[string]any {
	recordJSON, err := s.backend.Get(ctx, metadataKey(id, version))
	if err != nil {
		return nil
	}
	var record metadataRecord
	if err := json.Unmarshal(recordJSON, &record); err != nil {
		return nil
	}
	return record.Metadata
}

func (s *Store) writeSignature(ctx context.Context, id, version string, data []byte) error {
	signer, err := s.keyring.DeriveSigner(id)
	if err != nil {
		return fmt.Errorf("failed to derive signer for %s: %w", id, err)
	}
	sig := signer.Sign(data)
	sigJSON, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signature: %w", err)
	}
	key := signatureKey(id, version)
	if err := s.backend.Put(ctx, key, sigJSON); err != nil {
		return &artifact.WriteError{Key: key, Err: err}
	}
	return nil
}

// normalizeID applies boundary normalization and rejects IDs that would
// not form a safe backend key.
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
