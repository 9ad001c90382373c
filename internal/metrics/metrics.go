// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Cache metrics. kind is the key family, e.g. "analytics" or "campaigns".
	IncCacheHit(kind string)
	IncCacheMiss(kind string)
	IncCacheInvalidation(mode string) // mode: "tags" or "pattern"

	// Discovery metrics
	IncSearchDegraded(reason string)
	ObserveSearchDuration(duration time.Duration)
	ObserveDiscoverDuration(duration time.Duration)

	// Analytics read-model metrics
	IncReadModelBuilt(detail string) // detail: "full" or "summary"
	IncWarmResult(status string)     // status: "warmed", "skipped", "failed"

	// Donation event pipeline metrics
	IncDonationEventPublished(status string) // status: "success" or "failed"
	IncDonationEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	SetDonationQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
