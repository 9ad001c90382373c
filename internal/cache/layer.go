package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kindfund/kindfund/internal/metrics"
)

const tagKeySegment = "tag:"

// produceTimeout bounds a shared build once it is detached from the caller
// that started it.
const produceTimeout = 30 * time.Second

// Layer adds key namespacing, JSON encoding and tag bookkeeping on top of a
// Store. Cache read and write failures never fail a Remember call; the
// producer result is returned uncached instead.
type Layer struct {
	store   Store
	prefix  string
	metrics metrics.Recorder
	logger  *slog.Logger
	group   singleflight.Group
}

// NewLayer creates a Layer. Keys are stored under "{namespace}:v{version}:".
func NewLayer(store Store, namespace string, version int, recorder metrics.Recorder, logger *slog.Logger) *Layer {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if namespace == "" {
		namespace = "kindfund"
	}
	if version < 1 {
		version = 1
	}
	return &Layer{
		store:   store,
		prefix:  fmt.Sprintf("%s:v%d:", namespace, version),
		metrics: recorder,
		logger:  logger.With("component", "cache.layer"),
	}
}

// Prefix returns the namespace prefix applied to every key.
func (l *Layer) Prefix() string {
	return l.prefix
}

// Remember returns the cached value for key, or runs produce, caches its
// result under the tags and returns it. Concurrent misses on the same key
// share one producer call, which is not cancelled when the caller that
// started it goes away; each caller still stops waiting on its own ctx.
// Producer errors are returned and nothing is cached.
func Remember[T any](ctx context.Context, l *Layer, key string, ttl time.Duration, tags []Tag, produce func(context.Context) (T, error)) (T, error) {
	return RememberTagged(ctx, l, key, ttl, func(T) []Tag { return tags }, produce)
}

// RememberTagged is Remember with tags derived from the produced value.
func RememberTagged[T any](ctx context.Context, l *Layer, key string, ttl time.Duration, tagsFor func(T) []Tag, produce func(context.Context) (T, error)) (T, error) {
	var zero T
	kind := keyKind(key)

	if raw, err := l.store.Get(ctx, l.prefix+key); err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			l.metrics.IncCacheHit(kind)
			return v, nil
		}
		l.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
	} else if !errors.Is(err, ErrCacheMiss) {
		l.logger.Warn("cache read failed", "key", key, "error", err)
	}
	l.metrics.IncCacheMiss(kind)

	ch := l.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), produceTimeout)
		defer cancel()

		v, err := produce(buildCtx)
		if err != nil {
			return nil, err
		}
		if err := l.Put(buildCtx, key, ttl, tagsFor(v), v); err != nil {
			l.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// RememberMany resolves many keys with one bulk read. Misses are passed to
// produce in a single call; the values it returns are cached under the
// tags tagsFor reports for each key. Keys produce omits are absent from the result.
func RememberMany[T any](ctx context.Context, l *Layer, keys []string, ttl time.Duration, tagsFor func(key string) []Tag, produce func(ctx context.Context, missing []string) (map[string]T, error)) (map[string]T, error) {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = l.prefix + k
	}

	raw, err := l.store.GetMany(ctx, full)
	if err != nil {
		l.logger.Warn("cache bulk read failed", "keys", len(keys), "error", err)
		raw = nil
	}

	missing := make([]string, 0, len(keys))
	for i, k := range keys {
		kind := keyKind(k)
		if b, ok := raw[full[i]]; ok {
			var v T
			err := json.Unmarshal(b, &v)
			if err == nil {
				out[k] = v
				l.metrics.IncCacheHit(kind)
				continue
			}
			l.logger.Warn("discarding undecodable cache entry", "key", k, "error", err)
		}
		l.metrics.IncCacheMiss(kind)
		missing = append(missing, k)
	}

	if len(missing) == 0 {
		return out, nil
	}

	produced, err := produce(ctx, missing)
	if err != nil {
		return nil, err
	}
	for k, v := range produced {
		out[k] = v
		if err := l.Put(ctx, k, ttl, tagsFor(k), v); err != nil {
			l.logger.Warn("cache write failed", "key", k, "error", err)
		}
	}
	return out, nil
}

// Put encodes value and stores it under key with the given tags.
func (l *Layer) Put(ctx context.Context, key string, ttl time.Duration, tags []Tag, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}

	if ti, ok := l.store.(TagIndexer); ok && len(tags) > 0 {
		return ti.SetTagged(ctx, l.prefix+key, raw, ttl, l.tagKeys(tags))
	}
	return l.store.Set(ctx, l.prefix+key, raw, ttl)
}

// Has reports whether key holds a live entry.
func (l *Layer) Has(ctx context.Context, key string) (bool, error) {
	return l.store.Exists(ctx, l.prefix+key)
}

// Forget deletes keys.
func (l *Layer) Forget(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = l.prefix + k
	}
	return l.store.Delete(ctx, full...)
}

// InvalidateByTags removes every entry carrying any of the tags. Stores with
// a tag index are used directly; stores that can only delete by pattern get
// a key-shape approximation. It returns ErrTagsUnsupported otherwise.
func (l *Layer) InvalidateByTags(ctx context.Context, tags ...Tag) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}

	if ti, ok := l.store.(TagIndexer); ok {
		n, err := ti.DeleteTagged(ctx, l.tagKeys(tags))
		if err != nil {
			return 0, fmt.Errorf("invalidate by tags: %w", err)
		}
		l.metrics.IncCacheInvalidation("tags")
		return n, nil
	}

	pd, ok := l.store.(PatternDeleter)
	if !ok {
		return 0, ErrTagsUnsupported
	}

	l.logger.Debug("cache store has no tag index, deleting by pattern", "tags", len(tags))
	total := 0
	for _, t := range tags {
		for _, p := range t.patterns(l.prefix) {
			n, err := pd.DeletePattern(ctx, p)
			if err != nil {
				return total, fmt.Errorf("invalidate pattern %q: %w", p, err)
			}
			total += n
		}
	}
	l.metrics.IncCacheInvalidation("pattern")
	return total, nil
}

func (l *Layer) tagKeys(tags []Tag) []string {
	keys := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.IsZero() {
			continue
		}
		keys = append(keys, l.prefix+tagKeySegment+t.String())
	}
	return keys
}

// keyKind returns the first key segment, used as the metrics label.
func keyKind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
