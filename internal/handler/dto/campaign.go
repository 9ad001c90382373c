// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/kindfund/kindfund/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CampaignResponse represents a campaign in API responses.
type CampaignResponse struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Status           string     `json:"status"`
	OrganizationID   int64      `json:"organization_id"`
	OrganizationName string     `json:"organization_name,omitempty"`
	CategoryID       *int64     `json:"category_id,omitempty"`
	CategoryName     string     `json:"category_name,omitempty"`
	GoalAmount       float64    `json:"goal_amount"`
	CurrentAmount    float64    `json:"current_amount"`
	GoalPercentage   float64    `json:"goal_percentage"`
	DonationCount    int64      `json:"donation_count"`
	IsFeatured       bool       `json:"is_featured"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// CampaignListResponse wraps a list of campaigns.
type CampaignListResponse struct {
	Data []CampaignResponse `json:"data"`
}

// CampaignPageResponse represents one page of discovery results.
type CampaignPageResponse struct {
	Data       []CampaignResponse `json:"data"`
	Pagination Pagination         `json:"pagination"`
	Degraded   bool               `json:"degraded,omitempty"`
}

// Pagination describes a page-numbered result.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// BulkAnalyticsRequest is the body of POST /api/v1/analytics/bulk.
type BulkAnalyticsRequest struct {
	CampaignIDs []int64 `json:"campaign_ids"`
}

// BulkAnalyticsResponse maps campaign ids to their summary read models.
// JSON object keys are decimal campaign ids.
type BulkAnalyticsResponse struct {
	Data map[int64]*model.AnalyticsReadModel `json:"data"`
}

// WarmCampaignsRequest is the body of POST /api/v1/admin/cache/warm/campaigns.
type WarmCampaignsRequest struct {
	CampaignIDs []int64 `json:"campaign_ids,omitempty"`
}

// EnqueuedResponse reports an asynchronously queued job.
type EnqueuedResponse struct {
	TaskID string `json:"task_id,omitempty"`
	Status string `json:"status"`
}

// InvalidateResponse reports a cache invalidation.
type InvalidateResponse struct {
	CampaignID int64  `json:"campaign_id,omitempty"`
	Entries    *int   `json:"entries,omitempty"`
	Status     string `json:"status"`
}

// CacheHasResponse reports whether a key is cached.
type CacheHasResponse struct {
	Key    string `json:"key"`
	Cached bool   `json:"cached"`
}

// DonationEventRequest is the body of POST /api/v1/internal/donation-events.
type DonationEventRequest struct {
	Type           string     `json:"type"`
	DonationID     int64      `json:"donation_id"`
	CampaignID     int64      `json:"campaign_id"`
	OrganizationID int64      `json:"organization_id,omitempty"`
	OccurredAt     *time.Time `json:"occurred_at,omitempty"`
}

// DonationEventResponse acknowledges an accepted donation event.
type DonationEventResponse struct {
	EventID  string `json:"event_id"`
	StreamID string `json:"stream_id"`
}

// ToCampaignResponse converts a Campaign model to its DTO.
func ToCampaignResponse(c *model.Campaign) CampaignResponse {
	pct := c.Percentage()
	if c.GoalPercentage != nil {
		pct = *c.GoalPercentage
	}
	return CampaignResponse{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		Status:           string(c.Status),
		OrganizationID:   c.OrganizationID,
		OrganizationName: c.OrganizationName,
		CategoryID:       c.CategoryID,
		CategoryName:     c.CategoryName,
		GoalAmount:       c.GoalAmount,
		CurrentAmount:    c.CurrentAmount,
		GoalPercentage:   pct,
		DonationCount:    c.DonationCount,
		IsFeatured:       c.IsFeatured,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		DeletedAt:        c.DeletedAt,
	}
}

// ToCampaignList converts campaigns to DTOs. The result is never nil.
func ToCampaignList(items []*model.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(items))
	for _, c := range items {
		out = append(out, ToCampaignResponse(c))
	}
	return out
}

// ToCampaignPageResponse converts a discovery page to its DTO.
func ToCampaignPageResponse(p *model.Page) CampaignPageResponse {
	totalPages := 0
	if p.PageSize > 0 {
		totalPages = (p.Total + p.PageSize - 1) / p.PageSize
	}
	return CampaignPageResponse{
		Data: ToCampaignList(p.Items),
		Pagination: Pagination{
			Page:       p.Page,
			PerPage:    p.PageSize,
			Total:      p.Total,
			TotalPages: totalPages,
		},
		Degraded: p.Degraded,
	}
}
