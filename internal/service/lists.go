package service

import (
	"context"
	"fmt"

	"github.com/kindfund/kindfund/internal/cache"
	"github.com/kindfund/kindfund/internal/model"
)

// PopularCampaigns returns active campaigns with the most donations.
func (s *CampaignService) PopularCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error) {
	return s.list(ctx, cache.ListPopular, limit)
}

// TrendingCampaigns returns active campaigns with the most donations over
// the trending window.
func (s *CampaignService) TrendingCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error) {
	return s.list(ctx, cache.ListTrending, limit)
}

// EndingSoonCampaigns returns active campaigns ending within a week,
// soonest first.
func (s *CampaignService) EndingSoonCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error) {
	return s.list(ctx, cache.ListEndingSoon, limit)
}

// RecentCampaigns returns the newest active campaigns.
func (s *CampaignService) RecentCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error) {
	return s.list(ctx, cache.ListRecent, limit)
}

func (s *CampaignService) list(ctx context.Context, kind cache.ListKind, limit int) ([]*model.Campaign, error) {
	limit = clampLimit(limit)
	return cache.Remember(ctx, s.cache, cache.ListKey(kind, limit), s.cfg.ListTTL, cache.ListTags(kind),
		func(ctx context.Context) ([]*model.Campaign, error) {
			return s.loadList(ctx, kind, limit)
		})
}

func (s *CampaignService) loadList(ctx context.Context, kind cache.ListKind, limit int) ([]*model.Campaign, error) {
	now := s.clock.Now()

	var (
		items []*model.Campaign
		err   error
	)
	switch kind {
	case cache.ListPopular:
		items, err = s.store.PopularCampaigns(ctx, limit)
	case cache.ListTrending:
		items, err = s.store.TrendingCampaigns(ctx, now.Add(-TrendingWindow), TrendingMinDonations, limit)
	case cache.ListEndingSoon:
		items, err = s.store.EndingSoonCampaigns(ctx, now, now.Add(EndingSoonWindow), limit)
	case cache.ListRecent:
		items, err = s.store.RecentCampaigns(ctx, limit)
	default:
		return nil, fmt.Errorf("unknown list %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s campaigns: %w", kind, err)
	}
	if items == nil {
		items = []*model.Campaign{}
	}
	return items, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
