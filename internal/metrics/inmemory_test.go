package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Labelled(t *testing.T) {
	t.Parallel()

	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncCacheHit("analytics")
			m.IncCacheMiss("campaigns")
		}()
	}
	wg.Wait()

	m.IncSearchDegraded("index_empty")
	m.IncWarmResult("failed")
	m.IncWarmResult("warmed")
	m.IncWarmResult("warmed")

	snap := m.Snapshot()
	if snap.CacheHits["analytics"] != 50 {
		t.Errorf("CacheHits[analytics] = %d, want 50", snap.CacheHits["analytics"])
	}
	if snap.CacheMisses["campaigns"] != 50 {
		t.Errorf("CacheMisses[campaigns] = %d, want 50", snap.CacheMisses["campaigns"])
	}
	if snap.SearchDegraded["index_empty"] != 1 {
		t.Errorf("SearchDegraded[index_empty] = %d, want 1", snap.SearchDegraded["index_empty"])
	}
	if snap.WarmResults["warmed"] != 2 || snap.WarmResults["failed"] != 1 {
		t.Errorf("WarmResults = %v", snap.WarmResults)
	}
}

func TestInMemoryRecorder_Durations(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.ObserveSearchDuration(10 * time.Millisecond)
	m.ObserveSearchDuration(30 * time.Millisecond)
	m.SetDonationQueueDepth(7)

	snap := m.Snapshot()
	if snap.SearchDurationCount != 2 {
		t.Errorf("SearchDurationCount = %d, want 2", snap.SearchDurationCount)
	}
	if snap.SearchDurationTotalNs != int64(40*time.Millisecond) {
		t.Errorf("SearchDurationTotalNs = %d", snap.SearchDurationTotalNs)
	}
	if snap.DonationQueueDepth != 7 {
		t.Errorf("DonationQueueDepth = %d, want 7", snap.DonationQueueDepth)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncCacheHit("analytics")

	snap := m.Snapshot()
	snap.CacheHits["analytics"] = 99

	if got := m.Snapshot().CacheHits["analytics"]; got != 1 {
		t.Errorf("snapshot mutation leaked into recorder: %d", got)
	}
}
