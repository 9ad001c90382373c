package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/kindfund/kindfund/internal/filter"
	"github.com/kindfund/kindfund/internal/model"
)

// CampaignRepository reads campaigns from PostgreSQL.
type CampaignRepository struct {
	*Repository
}

// NewCampaignRepository creates a CampaignRepository over a shared pool.
func NewCampaignRepository(r *Repository) *CampaignRepository {
	return &CampaignRepository{Repository: r}
}

// GetCampaign retrieves a campaign by id, including soft-deleted rows.
func (r *CampaignRepository) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	row := r.pool.QueryRow(ctx, campaignSelect+" WHERE c.id = $1", id)
	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

// CampaignsByIDs loads live campaigns by id. Order is unspecified and
// missing or deleted ids are skipped.
func (r *CampaignRepository) CampaignsByIDs(ctx context.Context, ids []int64) ([]*model.Campaign, error) {
	if len(ids) == 0 {
		return []*model.Campaign{}, nil
	}
	query := campaignSelect + " WHERE c.id = ANY($1) AND c.deleted_at IS NULL"
	return r.queryCampaigns(ctx, query, pq.Array(ids))
}

// ListCampaigns runs a paginated query and returns the page with the total match count.
func (r *CampaignRepository) ListCampaigns(ctx context.Context, q CampaignQuery) ([]*model.Campaign, int, error) {
	where, args, err := buildWhere(q)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, campaignCount+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}
	if total == 0 {
		return []*model.Campaign{}, 0, nil
	}

	items, err := r.FindCampaigns(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FindCampaigns runs a query without counting.
func (r *CampaignRepository) FindCampaigns(ctx context.Context, q CampaignQuery) ([]*model.Campaign, error) {
	where, args, err := buildWhere(q)
	if err != nil {
		return nil, err
	}
	query := campaignSelect + where + buildOrder(q.Sort)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}
	return r.queryCampaigns(ctx, query, args...)
}

// BookmarkedCampaignIDs returns the campaigns a user has bookmarked.
func (r *CampaignRepository) BookmarkedCampaignIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT campaign_id FROM bookmarks WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan bookmarks: %w", err)
	}
	return ids, nil
}

// PopularCampaigns returns active campaigns with the most donations.
func (r *CampaignRepository) PopularCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error) {
	return r.FindCampaigns(ctx, CampaignQuery{
		Conds: []filter.Cond{activeCond},
		Sort: []filter.SortKey{
			{Field: filter.FieldDonationCount, Desc: true},
			{Field: filter.FieldCurrentAmount, Desc: true},
		},
		Limit: limit,
	})
}

// TrendingCampaigns returns active campaigns ranked by completed donations
// received since the given instant. Campaigns under minDonations are skipped.
func (r *CampaignRepository) TrendingCampaigns(ctx context.Context, since time.Time, minDonations, limit int) ([]*model.Campaign, error) {
	ids, err := r.MostDonatedSince(ctx, since, minDonations, limit)
	if err != nil {
		return nil, err
	}
	items, err := r.CampaignsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return orderByIDs(items, ids), nil
}

// EndingSoonCampaigns returns active campaigns whose end date falls in (now, until].
func (r *CampaignRepository) EndingSoonCampaigns(ctx context.Context, now, until time.Time, limit int) ([]*model.Campaign, error) {
	return r.FindCampaigns(ctx, CampaignQuery{
		Conds: []filter.Cond{
			activeCond,
			{Field: filter.FieldEndDate, Op: filter.OpGt, Value: now},
			{Field: filter.FieldEndDate, Op: filter.OpLte, Value: until},
		},
		Sort:  []filter.SortKey{{Field: filter.FieldEndDate}},
		Limit: limit,
	})
}

// RecentCampaigns returns the newest active campaigns.
func (r *CampaignRepository) RecentCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error) {
	return r.FindCampaigns(ctx, CampaignQuery{
		Conds: []filter.Cond{activeCond},
		Sort:  filter.DefaultSort,
		Limit: limit,
	})
}

// TopByProgress returns ids of active campaigns closest to their goal.
func (r *CampaignRepository) TopByProgress(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT c.id FROM campaigns c
		WHERE c.deleted_at IS NULL AND c.status = 'active'
		ORDER BY ` + goalPercentageExpr + ` DESC, c.id DESC
		LIMIT $1`
	return r.queryIDs(ctx, query, limit)
}

// MostDonatedSince returns ids of active campaigns ordered by completed
// donations created since the given instant.
func (r *CampaignRepository) MostDonatedSince(ctx context.Context, since time.Time, minDonations, limit int) ([]int64, error) {
	query := `
		SELECT c.id FROM campaigns c
		JOIN donations d ON d.campaign_id = c.id
		WHERE c.deleted_at IS NULL AND c.status = 'active'
			AND d.status = 'completed' AND d.created_at >= $1
		GROUP BY c.id
		HAVING COUNT(d.id) >= $2
		ORDER BY COUNT(d.id) DESC, c.id DESC
		LIMIT $3`
	return r.queryIDs(ctx, query, since, minDonations, limit)
}

var activeCond = filter.Cond{Field: filter.FieldStatus, Op: filter.OpEq, Value: string(model.CampaignStatusActive)}

func (r *CampaignRepository) queryCampaigns(ctx context.Context, query string, args ...any) ([]*model.Campaign, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	items := make([]*model.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaigns: %w", err)
	}
	return items, nil
}

func (r *CampaignRepository) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign ids: %w", err)
	}
	return ids, nil
}

func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	var c model.Campaign
	var status string
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &status, &c.OrganizationID, &c.OrganizationName,
		&c.UserID, &c.CategoryID, &c.CategoryName,
		&c.GoalAmount, &c.CurrentAmount, &c.GoalPercentage,
		&c.DonationCount, &c.IsFeatured, &c.StartDate, &c.EndDate,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.CampaignStatus(status)
	return &c, nil
}

// orderByIDs arranges items in the order of ids, dropping ids with no item.
func orderByIDs(items []*model.Campaign, ids []int64) []*model.Campaign {
	byID := make(map[int64]*model.Campaign, len(items))
	for _, c := range items {
		byID[c.ID] = c
	}
	out := make([]*model.Campaign, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
