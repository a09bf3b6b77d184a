package ports

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired. The
// store cannot tell the two apart and callers must not rely on the
// difference.
var ErrNotFound = errors.New("key not found")

// Store is a TTL-bound key-value capability. The nonce store and the
// prepared-intent cache use it identically; each component owns its
// own key namespace and no component reads another's TTL semantics.
type Store interface {
	// Put stores a value under key with an expiration time. Writing an
	// existing key overwrites it (last write wins).
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get retrieves a value by key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
