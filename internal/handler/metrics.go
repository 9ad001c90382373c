package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/kindfund/kindfund/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabelled(w, "kindfund_cache_hits_total", "kind", snap.CacheHits)
	writeLabelled(w, "kindfund_cache_misses_total", "kind", snap.CacheMisses)
	writeLabelled(w, "kindfund_cache_invalidations_total", "mode", snap.CacheInvalidations)

	writeLabelled(w, "kindfund_search_degraded_total", "reason", snap.SearchDegraded)
	writeMetric(w, "kindfund_search_duration_seconds_count %d\n", snap.SearchDurationCount)
	writeMetric(w, "kindfund_search_duration_seconds_sum %.6f\n", float64(snap.SearchDurationTotalNs)/1e9)
	writeMetric(w, "kindfund_discover_duration_seconds_count %d\n", snap.DiscoverDurationCount)
	writeMetric(w, "kindfund_discover_duration_seconds_sum %.6f\n", float64(snap.DiscoverDurationTotalNs)/1e9)

	writeLabelled(w, "kindfund_read_models_built_total", "detail", snap.ReadModelsBuilt)
	writeLabelled(w, "kindfund_warm_results_total", "status", snap.WarmResults)

	writeLabelled(w, "kindfund_donation_events_published_total", "status", snap.DonationEventsPublished)
	writeLabelled(w, "kindfund_donation_events_processed_total", "status", snap.DonationEventsProcessed)
	writeMetric(w, "kindfund_donation_queue_depth %d\n", snap.DonationQueueDepth)
}

// writeLabelled writes one sample per label value in stable order.
func writeLabelled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
