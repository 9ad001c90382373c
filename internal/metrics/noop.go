package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncCacheHit is a no-op.
func (n *NoopRecorder) IncCacheHit(kind string) {}

// IncCacheMiss is a no-op.
func (n *NoopRecorder) IncCacheMiss(kind string) {}

// IncCacheInvalidation is a no-op.
func (n *NoopRecorder) IncCacheInvalidation(mode string) {}

// IncSearchDegraded is a no-op.
func (n *NoopRecorder) IncSearchDegraded(reason string) {}

// ObserveSearchDuration is a no-op.
func (n *NoopRecorder) ObserveSearchDuration(duration time.Duration) {}

// ObserveDiscoverDuration is a no-op.
func (n *NoopRecorder) ObserveDiscoverDuration(duration time.Duration) {}

// IncReadModelBuilt is a no-op.
func (n *NoopRecorder) IncReadModelBuilt(detail string) {}

// IncWarmResult is a no-op.
func (n *NoopRecorder) IncWarmResult(status string) {}

// IncDonationEventPublished is a no-op.
func (n *NoopRecorder) IncDonationEventPublished(status string) {}

// IncDonationEventProcessed is a no-op.
func (n *NoopRecorder) IncDonationEventProcessed(status string) {}

// SetDonationQueueDepth is a no-op.
func (n *NoopRecorder) SetDonationQueueDepth(depth int64) {}
