// Package blob provides the keyed object backends the artifact store
// persists through: local filesystem, S3, and GCS behind one interface.
package blob

import (
	"context"
)

// Store is a flat keyed object store. Keys are forward-slash relative
// paths ("functions/ACME.json"); values are opaque byte blobs.
type Store interface {
	// Put writes data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error
	// Get retrieves the object at key. Misses wrap artifact.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the object at key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys beginning with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
