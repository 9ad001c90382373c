package service

import (
	"context"
	"fmt"

	"github.com/kindfund/kindfund/internal/cache"
)

// Warm result statuses.
const (
	WarmStatusWarmed  = "warmed"
	WarmStatusSkipped = "skipped"
	WarmStatusFailed  = "failed"
)

// WarmFailure is one record that could not be warmed.
type WarmFailure struct {
	CampaignID int64  `json:"campaign_id,omitempty"`
	Key        string `json:"key"`
	Error      string `json:"error"`
}

// WarmReport summarizes a warm run.
type WarmReport struct {
	Attempted int           `json:"attempted"`
	Warmed    int           `json:"warmed"`
	Skipped   int           `json:"skipped"`
	Failures  []WarmFailure `json:"failures"`
}

func newWarmReport() *WarmReport {
	return &WarmReport{Failures: []WarmFailure{}}
}

// WarmCacheForCampaigns rebuilds and stores the analytics of the given
// campaigns, or of the top campaigns by progress when ids is empty.
// A failing record is logged and reported; the run continues.
func (s *CampaignService) WarmCacheForCampaigns(ctx context.Context, ids []int64) (*WarmReport, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		var err error
		ids, err = s.store.TopByProgress(ctx, s.cfg.WarmLimit)
		if err != nil {
			return nil, fmt.Errorf("select warm candidates: %w", err)
		}
	}

	report := newWarmReport()
	s.warmAnalytics(ctx, ids, report)
	s.logReport("campaign analytics warmed", report)
	return report, nil
}

// WarmPopularCampaignsCache warms analytics for campaigns that received the
// most donations over the trending window, then refreshes the popular and
// trending lists.
func (s *CampaignService) WarmPopularCampaignsCache(ctx context.Context) (*WarmReport, error) {
	since := s.clock.Now().Add(-TrendingWindow)
	ids, err := s.store.MostDonatedSince(ctx, since, TrendingMinDonations, s.cfg.WarmLimit)
	if err != nil {
		return nil, fmt.Errorf("select popular campaigns: %w", err)
	}

	report := newWarmReport()
	s.warmAnalytics(ctx, ids, report)

	for _, kind := range []cache.ListKind{cache.ListPopular, cache.ListTrending} {
		if ctx.Err() != nil {
			break
		}
		s.warmList(ctx, kind, report)
	}

	s.logReport("popular campaigns warmed", report)
	return report, nil
}

func (s *CampaignService) warmAnalytics(ctx context.Context, ids []int64, report *WarmReport) {
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		report.Attempted++
		key := cache.AnalyticsKey(id)

		rm, err := s.builder.Build(ctx, id)
		if err != nil {
			s.fail(report, id, key, err)
			continue
		}
		if rm == nil {
			report.Skipped++
			s.metrics.IncWarmResult(WarmStatusSkipped)
			continue
		}
		if err := s.cache.Put(ctx, key, s.cfg.AnalyticsTTL, analyticsTags(rm), rm); err != nil {
			s.fail(report, id, key, err)
			continue
		}
		report.Warmed++
		s.metrics.IncWarmResult(WarmStatusWarmed)
	}
}

func (s *CampaignService) warmList(ctx context.Context, kind cache.ListKind, report *WarmReport) {
	report.Attempted++
	key := cache.ListKey(kind, DefaultListLimit)

	items, err := s.loadList(ctx, kind, DefaultListLimit)
	if err == nil {
		err = s.cache.Put(ctx, key, s.cfg.ListTTL, cache.ListTags(kind), items)
	}
	if err != nil {
		s.fail(report, 0, key, err)
		return
	}
	report.Warmed++
	s.metrics.IncWarmResult(WarmStatusWarmed)
}

func (s *CampaignService) fail(report *WarmReport, id int64, key string, err error) {
	s.logger.Warn("cache warm failed", "campaign_id", id, "key", key, "error", err)
	report.Failures = append(report.Failures, WarmFailure{CampaignID: id, Key: key, Error: err.Error()})
	s.metrics.IncWarmResult(WarmStatusFailed)
}

func (s *CampaignService) logReport(msg string, r *WarmReport) {
	s.logger.Info(msg,
		"attempted", r.Attempted,
		"warmed", r.Warmed,
		"skipped", r.Skipped,
		"failed", len(r.Failures),
	)
}
