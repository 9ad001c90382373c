// Package cache provides the tagged cache used for analytics read models and
// campaign lists.
package cache

import (
	"context"
	"errors"
	"time"
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")

	// ErrTagsUnsupported is returned by tag invalidation when the backend
	// supports neither a tag index nor pattern deletion.
	ErrTagsUnsupported = errors.New("cache backend cannot invalidate by tag")
)

// Store is a key/value backend with TTLs.
type Store interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetMany returns the values present; absent keys are omitted.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// TagIndexer is implemented by stores that maintain a tag-to-keys index.
type TagIndexer interface {
	// SetTagged stores the value and records key under every tag key.
	SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tagKeys []string) error
	// DeleteTagged removes every key recorded under the tag keys, and the
	// tag keys themselves. It returns the number of entries removed.
	DeleteTagged(ctx context.Context, tagKeys []string) (int, error)
}

// PatternDeleter is implemented by stores that can delete keys by glob pattern.
type PatternDeleter interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}
