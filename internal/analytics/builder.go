// Package analytics builds the per-campaign analytics read model from
// campaign and donation data.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kindfund/kindfund/internal/clock"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/repository"
)

// Trend window sizes.
const (
	DailyTrendDays   = 30
	WeeklyTrendWeeks = 12
)

// Store is the data the builder reads. GetCampaign returns
// repository.ErrNotFound for unknown ids.
type Store interface {
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	CampaignsByIDs(ctx context.Context, ids []int64) ([]*model.Campaign, error)

	DonationAggregate(ctx context.Context, campaignID int64) (*model.DonationAggregate, error)
	DonationAggregates(ctx context.Context, campaignIDs []int64) (map[int64]*model.DonationAggregate, error)
	GatewayBreakdown(ctx context.Context, campaignID int64) ([]model.Breakdown, error)
	MethodBreakdown(ctx context.Context, campaignID int64) ([]model.Breakdown, error)
	DailyTotals(ctx context.Context, campaignID int64, since time.Time) ([]model.TrendBucket, error)
	WeeklyTotals(ctx context.Context, campaignID int64, since time.Time) ([]model.TrendBucket, error)
}

// Builder computes analytics read models.
type Builder struct {
	store   Store
	clock   clock.Clock
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewBuilder creates a Builder. A nil clock uses the system clock.
func NewBuilder(store Store, clk clock.Clock, logger *slog.Logger, recorder metrics.Recorder) *Builder {
	if clk == nil {
		clk = clock.System()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Builder{
		store:   store,
		clock:   clk,
		logger:  logger.With("component", "analytics.builder"),
		metrics: recorder,
	}
}

// Build computes the full read model for one campaign. It returns nil and
// no error when the campaign does not exist or is deleted.
func (b *Builder) Build(ctx context.Context, campaignID int64) (*model.AnalyticsReadModel, error) {
	campaign, err := b.store.GetCampaign(ctx, campaignID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	if campaign.IsDeleted() {
		return nil, nil
	}

	now := b.clock.Now()
	today := startOfDay(now)
	dailySince := today.AddDate(0, 0, -(DailyTrendDays - 1))
	weeklySince := startOfWeek(today).AddDate(0, 0, -7*(WeeklyTrendWeeks-1))

	var (
		agg      *model.DonationAggregate
		gateways []model.Breakdown
		methods  []model.Breakdown
		daily    []model.TrendBucket
		weekly   []model.TrendBucket
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		agg, err = b.store.DonationAggregate(gctx, campaignID)
		return err
	})
	g.Go(func() (err error) {
		gateways, err = b.store.GatewayBreakdown(gctx, campaignID)
		return err
	})
	g.Go(func() (err error) {
		methods, err = b.store.MethodBreakdown(gctx, campaignID)
		return err
	})
	g.Go(func() (err error) {
		daily, err = b.store.DailyTotals(gctx, campaignID, dailySince)
		return err
	})
	g.Go(func() (err error) {
		weekly, err = b.store.WeeklyTotals(gctx, campaignID, weeklySince)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate campaign %d: %w", campaignID, err)
	}

	rm := assemble(campaign, agg, now)
	rm.Detail = model.AnalyticsDetailFull
	rm.GatewayBreakdown = nonNilBreakdown(gateways)
	rm.MethodBreakdown = nonNilBreakdown(methods)
	rm.DailyTrend = fillBuckets(daily, dailySince, DailyTrendDays, 24*time.Hour)
	rm.WeeklyTrend = fillBuckets(weekly, weeklySince, WeeklyTrendWeeks, 7*24*time.Hour)

	b.metrics.IncReadModelBuilt(string(model.AnalyticsDetailFull))
	return rm, nil
}

// BuildMany computes summary read models for many campaigns with exactly
// two store calls. Breakdowns and trends are left empty and Detail is
// "summary". Unknown or deleted ids are absent from the result.
func (b *Builder) BuildMany(ctx context.Context, campaignIDs []int64) (map[int64]*model.AnalyticsReadModel, error) {
	out := make(map[int64]*model.AnalyticsReadModel, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return out, nil
	}

	campaigns, err := b.store.CampaignsByIDs(ctx, campaignIDs)
	if err != nil {
		return nil, fmt.Errorf("load campaigns: %w", err)
	}
	aggs, err := b.store.DonationAggregates(ctx, campaignIDs)
	if err != nil {
		return nil, fmt.Errorf("aggregate campaigns: %w", err)
	}

	now := b.clock.Now()
	for _, c := range campaigns {
		rm := assemble(c, aggs[c.ID], now)
		rm.Detail = model.AnalyticsDetailSummary
		out[c.ID] = rm
		b.metrics.IncReadModelBuilt(string(model.AnalyticsDetailSummary))
	}

	if missing := len(campaignIDs) - len(out); missing > 0 {
		b.logger.Debug("bulk build skipped unknown campaigns", "requested", len(campaignIDs), "missing", missing)
	}
	return out, nil
}

// assemble fills the fields shared by full and summary models. A nil
// aggregate means the campaign has no donations.
func assemble(c *model.Campaign, agg *model.DonationAggregate, now time.Time) *model.AnalyticsReadModel {
	if agg == nil {
		agg = &model.DonationAggregate{CampaignID: c.ID}
	}
	timing := computeTiming(c.EffectiveStart(), c.EndDate, now)

	rm := &model.AnalyticsReadModel{
		CampaignID:       c.ID,
		Version:          now.UnixNano(),
		GeneratedAt:      now,
		Title:            c.Title,
		Status:           c.Status,
		OrganizationID:   c.OrganizationID,
		OrganizationName: c.OrganizationName,
		CategoryName:     c.CategoryName,

		TotalDonations:     agg.Total,
		CompletedDonations: agg.Completed,
		PendingDonations:   agg.Pending,
		FailedDonations:    agg.Failed,
		RefundedDonations:  agg.Refunded,

		TotalRaised:          agg.TotalRaised,
		AverageDonation:      agg.Average,
		LargestDonation:      agg.Largest,
		SmallestDonation:     agg.Smallest,
		UniqueDonors:         agg.UniqueDonors,
		AnonymousDonations:   agg.AnonymousCount,
		AnonymousAmount:      agg.AnonymousAmount,
		RecurringDonations:   agg.RecurringCount,
		RecurringAmount:      agg.RecurringAmount,
		CorporateMatchAmount: agg.CorporateMatchAmount,
		FirstDonationAt:      agg.FirstDonationAt,
		LastDonationAt:       agg.LastDonationAt,

		GoalAmount:         c.GoalAmount,
		CurrentAmount:      c.CurrentAmount,
		ProgressPercentage: c.Percentage(),
		RemainingAmount:    c.RemainingAmount(),
		IsGoalReached:      c.GoalAmount > 0 && c.CurrentAmount >= c.GoalAmount,

		DaysActive:    timing.DaysActive,
		DaysRemaining: timing.DaysRemaining,
		DurationDays:  timing.DurationDays,
		DailyAverage:  agg.TotalRaised / float64(max(1, timing.DaysActive)),

		GatewayBreakdown: []model.Breakdown{},
		MethodBreakdown:  []model.Breakdown{},
		DailyTrend:       []model.TrendBucket{},
		WeeklyTrend:      []model.TrendBucket{},
	}
	return rm
}

func nonNilBreakdown(b []model.Breakdown) []model.Breakdown {
	if b == nil {
		return []model.Breakdown{}
	}
	return b
}
