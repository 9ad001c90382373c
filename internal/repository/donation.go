package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/kindfund/kindfund/internal/model"
)

// DonationRepository computes donation aggregates from PostgreSQL.
type DonationRepository struct {
	*Repository
}

// NewDonationRepository creates a DonationRepository over a shared pool.
func NewDonationRepository(r *Repository) *DonationRepository {
	return &DonationRepository{Repository: r}
}

// aggregateColumns sum only completed donations and count every status.
const aggregateColumns = `
		COUNT(*),
		COUNT(*) FILTER (WHERE d.status = 'completed'),
		COUNT(*) FILTER (WHERE d.status = 'pending'),
		COUNT(*) FILTER (WHERE d.status = 'failed'),
		COUNT(*) FILTER (WHERE d.status = 'refunded'),
		COALESCE(SUM(d.amount) FILTER (WHERE d.status = 'completed'), 0)::float8,
		COALESCE(AVG(d.amount) FILTER (WHERE d.status = 'completed'), 0)::float8,
		COALESCE(MAX(d.amount) FILTER (WHERE d.status = 'completed'), 0)::float8,
		COALESCE(MIN(d.amount) FILTER (WHERE d.status = 'completed'), 0)::float8,
		COUNT(DISTINCT COALESCE(d.user_id::text, NULLIF(d.donor_email, ''))) FILTER (WHERE d.status = 'completed'),
		COUNT(*) FILTER (WHERE d.status = 'completed' AND d.is_anonymous),
		COALESCE(SUM(d.amount) FILTER (WHERE d.status = 'completed' AND d.is_anonymous), 0)::float8,
		COUNT(*) FILTER (WHERE d.status = 'completed' AND d.is_recurring),
		COALESCE(SUM(d.amount) FILTER (WHERE d.status = 'completed' AND d.is_recurring), 0)::float8,
		COALESCE(SUM(d.corporate_match_amount) FILTER (WHERE d.status = 'completed'), 0)::float8,
		MIN(d.created_at) FILTER (WHERE d.status = 'completed'),
		MAX(d.created_at) FILTER (WHERE d.status = 'completed')`

// DonationAggregate computes totals for one campaign. A campaign with no
// donations yields a zero aggregate.
func (r *DonationRepository) DonationAggregate(ctx context.Context, campaignID int64) (*model.DonationAggregate, error) {
	query := `SELECT $1::bigint,` + aggregateColumns + `
		FROM donations d
		WHERE d.campaign_id = $1`

	agg, err := scanAggregate(r.pool.QueryRow(ctx, query, campaignID))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate donations: %w", err)
	}
	return agg, nil
}

// DonationAggregates computes totals for many campaigns in one query.
// Campaigns without donations are absent from the result.
func (r *DonationRepository) DonationAggregates(ctx context.Context, campaignIDs []int64) (map[int64]*model.DonationAggregate, error) {
	out := make(map[int64]*model.DonationAggregate, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return out, nil
	}

	query := `SELECT d.campaign_id,` + aggregateColumns + `
		FROM donations d
		WHERE d.campaign_id = ANY($1)
		GROUP BY d.campaign_id`

	rows, err := r.pool.Query(ctx, query, pq.Array(campaignIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate donations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation aggregate: %w", err)
		}
		out[agg.CampaignID] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate donation aggregates: %w", err)
	}
	return out, nil
}

// GatewayBreakdown groups completed donations by payment gateway.
func (r *DonationRepository) GatewayBreakdown(ctx context.Context, campaignID int64) ([]model.Breakdown, error) {
	return r.breakdown(ctx, "payment_gateway", campaignID)
}

// MethodBreakdown groups completed donations by payment method.
func (r *DonationRepository) MethodBreakdown(ctx context.Context, campaignID int64) ([]model.Breakdown, error) {
	return r.breakdown(ctx, "payment_method", campaignID)
}

func (r *DonationRepository) breakdown(ctx context.Context, column string, campaignID int64) ([]model.Breakdown, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(NULLIF(d.%[1]s, ''), 'unknown'), COUNT(*), COALESCE(SUM(d.amount), 0)::float8
		FROM donations d
		WHERE d.campaign_id = $1 AND d.status = 'completed'
		GROUP BY 1
		ORDER BY 3 DESC, 1`, column)

	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s breakdown: %w", column, err)
	}
	defer rows.Close()

	out := make([]model.Breakdown, 0)
	for rows.Next() {
		var b model.Breakdown
		if err := rows.Scan(&b.Key, &b.Count, &b.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan %s breakdown: %w", column, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DailyTotals returns completed donation totals per UTC day since the given instant.
// Days without donations are absent.
func (r *DonationRepository) DailyTotals(ctx context.Context, campaignID int64, since time.Time) ([]model.TrendBucket, error) {
	return r.trend(ctx, "day", campaignID, since)
}

// WeeklyTotals returns completed donation totals per ISO week since the given instant.
func (r *DonationRepository) WeeklyTotals(ctx context.Context, campaignID int64, since time.Time) ([]model.TrendBucket, error) {
	return r.trend(ctx, "week", campaignID, since)
}

func (r *DonationRepository) trend(ctx context.Context, unit string, campaignID int64, since time.Time) ([]model.TrendBucket, error) {
	query := `
		SELECT date_trunc($1, d.created_at AT TIME ZONE 'UTC') AS bucket,
			COUNT(*), COALESCE(SUM(d.amount), 0)::float8
		FROM donations d
		WHERE d.campaign_id = $2 AND d.status = 'completed' AND d.created_at >= $3
		GROUP BY bucket
		ORDER BY bucket`

	rows, err := r.pool.Query(ctx, query, unit, campaignID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s trend: %w", unit, err)
	}
	defer rows.Close()

	out := make([]model.TrendBucket, 0)
	for rows.Next() {
		var b model.TrendBucket
		if err := rows.Scan(&b.Start, &b.Count, &b.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan %s trend: %w", unit, err)
		}
		b.Start = time.Date(b.Start.Year(), b.Start.Month(), b.Start.Day(), 0, 0, 0, 0, time.UTC)
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanAggregate(row pgx.Row) (*model.DonationAggregate, error) {
	var a model.DonationAggregate
	err := row.Scan(
		&a.CampaignID,
		&a.Total, &a.Completed, &a.Pending, &a.Failed, &a.Refunded,
		&a.TotalRaised, &a.Average, &a.Largest, &a.Smallest, &a.UniqueDonors,
		&a.AnonymousCount, &a.AnonymousAmount,
		&a.RecurringCount, &a.RecurringAmount,
		&a.CorporateMatchAmount,
		&a.FirstDonationAt, &a.LastDonationAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
