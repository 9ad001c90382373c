// Package service provides the cached campaign read paths and cache
// maintenance operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kindfund/kindfund/internal/cache"
	"github.com/kindfund/kindfund/internal/clock"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/model"
)

// Service errors.
var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrTooManyIDs       = errors.New("too many campaign ids")
)

// Defaults for CampaignService settings.
const (
	DefaultAnalyticsTTL = time.Hour
	DefaultListTTL      = 15 * time.Minute
	DefaultWarmLimit    = 50
	DefaultListLimit    = 20
	MaxListLimit        = 100
	MaxBulkIDs          = 200

	TrendingWindow       = 48 * time.Hour
	TrendingMinDonations = 3
	EndingSoonWindow     = 7 * 24 * time.Hour
)

// CampaignStore reads list and warm-candidate data from the primary store.
type CampaignStore interface {
	PopularCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error)
	TrendingCampaigns(ctx context.Context, since time.Time, minDonations, limit int) ([]*model.Campaign, error)
	EndingSoonCampaigns(ctx context.Context, now, until time.Time, limit int) ([]*model.Campaign, error)
	RecentCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error)

	TopByProgress(ctx context.Context, limit int) ([]int64, error)
	MostDonatedSince(ctx context.Context, since time.Time, minDonations, limit int) ([]int64, error)
}

// AnalyticsBuilder computes analytics read models.
type AnalyticsBuilder interface {
	Build(ctx context.Context, campaignID int64) (*model.AnalyticsReadModel, error)
	BuildMany(ctx context.Context, campaignIDs []int64) (map[int64]*model.AnalyticsReadModel, error)
}

// Config tunes CampaignService.
type Config struct {
	AnalyticsTTL time.Duration
	ListTTL      time.Duration
	WarmLimit    int
}

// CampaignService serves cached analytics and campaign lists.
type CampaignService struct {
	store   CampaignStore
	builder AnalyticsBuilder
	cache   *cache.Layer
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewCampaignService creates a CampaignService.
func NewCampaignService(store CampaignStore, builder AnalyticsBuilder, layer *cache.Layer, clk clock.Clock, cfg Config, logger *slog.Logger, recorder metrics.Recorder) *CampaignService {
	if clk == nil {
		clk = clock.System()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.AnalyticsTTL <= 0 {
		cfg.AnalyticsTTL = DefaultAnalyticsTTL
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = DefaultListTTL
	}
	if cfg.WarmLimit <= 0 {
		cfg.WarmLimit = DefaultWarmLimit
	}
	return &CampaignService{
		store:   store,
		builder: builder,
		cache:   layer,
		clock:   clk,
		cfg:     cfg,
		logger:  logger.With("component", "service.campaign"),
		metrics: recorder,
	}
}

// GetAnalytics returns the full analytics read model for a campaign,
// building and caching it on a miss. Missing campaigns are not cached.
func (s *CampaignService) GetAnalytics(ctx context.Context, campaignID int64) (*model.AnalyticsReadModel, error) {
	if campaignID <= 0 {
		return nil, ErrCampaignNotFound
	}
	return cache.RememberTagged(ctx, s.cache, cache.AnalyticsKey(campaignID), s.cfg.AnalyticsTTL,
		analyticsTags,
		func(ctx context.Context) (*model.AnalyticsReadModel, error) {
			rm, err := s.builder.Build(ctx, campaignID)
			if err != nil {
				return nil, fmt.Errorf("build analytics: %w", err)
			}
			if rm == nil {
				return nil, ErrCampaignNotFound
			}
			return rm, nil
		})
}

// GetBulkAnalytics returns summary read models for the given campaigns.
// Cached summaries are read in one round trip and the misses are built
// together. Unknown or deleted campaigns are absent from the result.
func (s *CampaignService) GetBulkAnalytics(ctx context.Context, campaignIDs []int64) (map[int64]*model.AnalyticsReadModel, error) {
	ids := uniqueIDs(campaignIDs)
	if len(ids) > MaxBulkIDs {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyIDs, len(ids), MaxBulkIDs)
	}
	out := make(map[int64]*model.AnalyticsReadModel, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	idByKey := make(map[string]int64, len(ids))
	for i, id := range ids {
		keys[i] = cache.AnalyticsSummaryKey(id)
		idByKey[keys[i]] = id
	}

	built := make(map[string]*model.AnalyticsReadModel)
	got, err := cache.RememberMany(ctx, s.cache, keys, s.cfg.AnalyticsTTL,
		func(key string) []cache.Tag { return analyticsTags(built[key]) },
		func(ctx context.Context, missing []string) (map[string]*model.AnalyticsReadModel, error) {
			missingIDs := make([]int64, len(missing))
			for i, k := range missing {
				missingIDs[i] = idByKey[k]
			}
			models, err := s.builder.BuildMany(ctx, missingIDs)
			if err != nil {
				return nil, fmt.Errorf("build bulk analytics: %w", err)
			}
			for id, rm := range models {
				built[cache.AnalyticsSummaryKey(id)] = rm
			}
			return built, nil
		})
	if err != nil {
		return nil, err
	}

	for key, rm := range got {
		if rm != nil {
			out[idByKey[key]] = rm
		}
	}
	return out, nil
}

// InvalidateCampaignCache drops every cached entry derived from a campaign:
// its analytics, every campaign list, and organization-scoped entries when
// organizationID is set.
func (s *CampaignService) InvalidateCampaignCache(ctx context.Context, campaignID, organizationID int64) error {
	tags := []cache.Tag{cache.CampaignTag(campaignID)}
	for _, kind := range cache.Lists {
		tags = append(tags, cache.ListTag(kind))
	}
	if organizationID > 0 {
		tags = append(tags, cache.OrganizationTag(organizationID))
	}

	n, err := s.cache.InvalidateByTags(ctx, tags...)
	if err != nil {
		return fmt.Errorf("invalidate campaign %d: %w", campaignID, err)
	}
	s.logger.Debug("campaign cache invalidated",
		"campaign_id", campaignID,
		"organization_id", organizationID,
		"entries", n,
	)
	return nil
}

// InvalidateAll drops every campaign-derived entry.
func (s *CampaignService) InvalidateAll(ctx context.Context) (int, error) {
	n, err := s.cache.InvalidateByTags(ctx, cache.CampaignsTag())
	if err != nil {
		return 0, fmt.Errorf("flush campaign cache: %w", err)
	}
	s.logger.Info("campaign cache flushed", "entries", n)
	return n, nil
}

// HasCached reports whether a cache key holds a live entry.
func (s *CampaignService) HasCached(ctx context.Context, key string) (bool, error) {
	return s.cache.Has(ctx, key)
}

func analyticsTags(rm *model.AnalyticsReadModel) []cache.Tag {
	if rm == nil {
		return nil
	}
	return cache.AnalyticsTags(rm.CampaignID, rm.OrganizationID)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
