package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/kindfund/kindfund/internal/clock"
)

// sweepEvery is the number of writes between sweeps of expired entries and
// stale tag members.
const sweepEvery = 256

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store with a tag index. It backs
// CACHE_DRIVER=memory and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	tags    map[string]map[string]struct{}
	clock   clock.Clock
	writes  int
}

// NewMemory creates an empty MemoryStore. A nil clock uses the system clock.
func NewMemory(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.System()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		tags:    make(map[string]map[string]struct{}),
		clock:   clk,
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || e.expired(m.clock.Now()) {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// GetMany implements Store.
func (m *MemoryStore) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, err := m.Get(ctx, k); err == nil {
			out[k] = v
		}
	}
	return out, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, value, ttl)
	return nil
}

func (m *MemoryStore) set(key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.clock.Now().Add(ttl)
	}
	m.entries[key] = e

	m.writes++
	if m.writes%sweepEvery == 0 {
		m.sweep()
	}
}

// sweep drops expired entries and tag members whose entry is gone. Callers
// hold the write lock.
func (m *MemoryStore) sweep() {
	now := m.clock.Now()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
	for tk, members := range m.tags {
		for k := range members {
			if _, ok := m.entries[k]; !ok {
				delete(members, k)
			}
		}
		if len(members) == 0 {
			delete(m.tags, tk)
		}
	}
}

// Exists implements Store.
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	return err == nil, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// SetTagged implements TagIndexer.
func (m *MemoryStore) SetTagged(_ context.Context, key string, value []byte, ttl time.Duration, tagKeys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(key, value, ttl)
	for _, tk := range tagKeys {
		members, ok := m.tags[tk]
		if !ok {
			members = make(map[string]struct{})
			m.tags[tk] = members
		}
		members[key] = struct{}{}
	}
	return nil
}

// DeleteTagged implements TagIndexer.
func (m *MemoryStore) DeleteTagged(_ context.Context, tagKeys []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	deleted := 0
	for _, tk := range tagKeys {
		for key := range m.tags[tk] {
			if e, ok := m.entries[key]; ok {
				if !e.expired(now) {
					deleted++
				}
				delete(m.entries, key)
			}
		}
		delete(m.tags, tk)
	}
	return deleted, nil
}

// DeletePattern implements PatternDeleter using glob matching.
func (m *MemoryStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key := range m.entries {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return deleted, err
		}
		if ok {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of live entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	n := 0
	for _, e := range m.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
