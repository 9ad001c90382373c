package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
// Labelled counters are keyed by label value.
type Snapshot struct {
	CacheHits          map[string]uint64
	CacheMisses        map[string]uint64
	CacheInvalidations map[string]uint64

	SearchDegraded          map[string]uint64
	SearchDurationCount     uint64
	SearchDurationTotalNs   int64
	DiscoverDurationCount   uint64
	DiscoverDurationTotalNs int64

	ReadModelsBuilt map[string]uint64
	WarmResults     map[string]uint64

	DonationEventsPublished map[string]uint64
	DonationEventsProcessed map[string]uint64
	DonationQueueDepth      int64
}

// labelled is a counter vector keyed by one label.
type labelled struct {
	mu     sync.Mutex
	values map[string]uint64
}

func (l *labelled) inc(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.values == nil {
		l.values = make(map[string]uint64)
	}
	l.values[label]++
}

func (l *labelled) snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	cacheHits          labelled
	cacheMisses        labelled
	cacheInvalidations labelled

	searchDegraded          labelled
	searchDurationCount     uint64
	searchDurationTotalNs   int64
	discoverDurationCount   uint64
	discoverDurationTotalNs int64

	readModelsBuilt labelled
	warmResults     labelled

	donationEventsPublished labelled
	donationEventsProcessed labelled
	donationQueueDepth      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		CacheHits:               m.cacheHits.snapshot(),
		CacheMisses:             m.cacheMisses.snapshot(),
		CacheInvalidations:      m.cacheInvalidations.snapshot(),
		SearchDegraded:          m.searchDegraded.snapshot(),
		SearchDurationCount:     atomic.LoadUint64(&m.searchDurationCount),
		SearchDurationTotalNs:   atomic.LoadInt64(&m.searchDurationTotalNs),
		DiscoverDurationCount:   atomic.LoadUint64(&m.discoverDurationCount),
		DiscoverDurationTotalNs: atomic.LoadInt64(&m.discoverDurationTotalNs),
		ReadModelsBuilt:         m.readModelsBuilt.snapshot(),
		WarmResults:             m.warmResults.snapshot(),
		DonationEventsPublished: m.donationEventsPublished.snapshot(),
		DonationEventsProcessed: m.donationEventsProcessed.snapshot(),
		DonationQueueDepth:      atomic.LoadInt64(&m.donationQueueDepth),
	}
}

// IncCacheHit increments the cache hit counter.
func (m *InMemoryRecorder) IncCacheHit(kind string) { m.cacheHits.inc(kind) }

// IncCacheMiss increments the cache miss counter.
func (m *InMemoryRecorder) IncCacheMiss(kind string) { m.cacheMisses.inc(kind) }

// IncCacheInvalidation increments the invalidation counter.
func (m *InMemoryRecorder) IncCacheInvalidation(mode string) { m.cacheInvalidations.inc(mode) }

// IncSearchDegraded increments the degraded search counter.
func (m *InMemoryRecorder) IncSearchDegraded(reason string) { m.searchDegraded.inc(reason) }

// ObserveSearchDuration records index query duration.
func (m *InMemoryRecorder) ObserveSearchDuration(duration time.Duration) {
	atomic.AddUint64(&m.searchDurationCount, 1)
	atomic.AddInt64(&m.searchDurationTotalNs, duration.Nanoseconds())
}

// ObserveDiscoverDuration records end-to-end discovery duration.
func (m *InMemoryRecorder) ObserveDiscoverDuration(duration time.Duration) {
	atomic.AddUint64(&m.discoverDurationCount, 1)
	atomic.AddInt64(&m.discoverDurationTotalNs, duration.Nanoseconds())
}

// IncReadModelBuilt increments the read-model build counter.
func (m *InMemoryRecorder) IncReadModelBuilt(detail string) { m.readModelsBuilt.inc(detail) }

// IncWarmResult increments the cache-warm counter.
func (m *InMemoryRecorder) IncWarmResult(status string) { m.warmResults.inc(status) }

// IncDonationEventPublished increments the published event counter.
func (m *InMemoryRecorder) IncDonationEventPublished(status string) {
	m.donationEventsPublished.inc(status)
}

// IncDonationEventProcessed increments the processed event counter.
func (m *InMemoryRecorder) IncDonationEventProcessed(status string) {
	m.donationEventsProcessed.inc(status)
}

// SetDonationQueueDepth records the pending event backlog.
func (m *InMemoryRecorder) SetDonationQueueDepth(depth int64) {
	atomic.StoreInt64(&m.donationQueueDepth, depth)
}
