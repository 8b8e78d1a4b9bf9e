package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/policyforge/policyforge/pkg/artifact"
)

const cacheKeyPrefix = "policyforge:current:"

// CachedStore layers a Redis read-through cache over the current-artifact
// hot path. Only Load is cached; Save and Delete invalidate. Every cache
// failure degrades to the underlying store — the cache can slow the
// system down when Redis is sick, but never change an answer.
type CachedStore struct {
	*Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps a store with a cache client. A non-positive ttl
// defaults to five minutes.
func NewCachedStore(s *Store, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		Store:  s,
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "store.cache"),
	}
}

// cachedArtifact is the cache envelope. Artifact itself never marshals
// its blob, so the envelope carries it explicitly.
type cachedArtifact struct {
	EntityID    string         `json:"entity_id"`
	Version     string         `json:"version"`
	Blob        []byte         `json:"blob"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	ContentHash string         `json:"content_hash"`
}

func (c cachedArtifact) toArtifact() *artifact.Artifact {
	return &artifact.Artifact{
		EntityID:    c.EntityID,
		Version:     c.Version,
		Blob:        c.Blob,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		ContentHash: c.ContentHash,
	}
}

// Load serves the current artifact from cache when possible, falling
// back to the store and repopulating on a miss.
func (c *CachedStore) Load(ctx context.Context, entityID string) (*artifact.Artifact, error) {
	id, err := normalizeID(entityID)
	if err != nil {
		return nil, err
	}

	key := cacheKeyPrefix + id
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedArtifact
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached.toArtifact(), nil
		}
		c.logger.Warn("discarding undecodable cache entry", "entity", id)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed, falling back to store", "entity", id, "error", err)
	}

	art, err := c.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, art)
	return art, nil
}

// Save writes through to the store and drops the entity's cache entry so
// the next Load sees the new current copy.
func (c *CachedStore) Save(ctx context.Context, entityID string, data []byte, metadata map[string]any, opts ...SaveOption) (*SaveResult, error) {
	res, err := c.Store.Save(ctx, entityID, data, metadata, opts...)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, res.EntityID)
	return res, nil
}

// Delete purges the entity from the store and the cache.
func (c *CachedStore) Delete(ctx context.Context, entityID string) (bool, error) {
	ok, err := c.Store.Delete(ctx, entityID)
	if err != nil {
		return ok, err
	}
	if id, nerr := normalizeID(entityID); nerr == nil {
		c.invalidate(ctx, id)
	}
	return ok, nil
}

func (c *CachedStore) fill(ctx context.Context, key string, art *artifact.Artifact) {
	raw, err := json.Marshal(cachedArtifact{
		EntityID:    art.EntityID,
		Version:     art.Version,
		Blob:        art.Blob,
		Metadata:    art.Metadata,
		CreatedAt:   art.CreatedAt,
		ContentHash: art.ContentHash,
	})
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "entity", art.EntityID, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "entity", art.EntityID, "error", err)
	}
}

func (c *CachedStore) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, cacheKeyPrefix+id).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", "entity", id, "error", err)
	}
}
