// Package model defines domain entities for the application.
package model

import (
	"math"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft           CampaignStatus = "draft"
	CampaignStatusPendingApproval CampaignStatus = "pending_approval"
	CampaignStatusActive          CampaignStatus = "active"
	CampaignStatusPaused          CampaignStatus = "paused"
	CampaignStatusCompleted       CampaignStatus = "completed"
)

// IsValid checks if the status is one of the known lifecycle states.
func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusPendingApproval, CampaignStatusActive,
		CampaignStatusPaused, CampaignStatusCompleted:
		return true
	}
	return false
}

// Indexed reports whether campaigns in this state are pushed to the search index.
// Drafts and campaigns awaiting approval only live in the primary store.
func (s CampaignStatus) Indexed() bool {
	return s != CampaignStatusDraft && s != CampaignStatusPendingApproval
}

// PublicStatuses are the states visible in public discovery.
var PublicStatuses = []CampaignStatus{
	CampaignStatusActive,
	CampaignStatusPaused,
	CampaignStatusCompleted,
}

// UnindexedStatuses are the states that never reach the search index.
var UnindexedStatuses = []CampaignStatus{
	CampaignStatusDraft,
	CampaignStatusPendingApproval,
}

// Campaign is a fundraising campaign.
type Campaign struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	Status           CampaignStatus `json:"status"`
	OrganizationID   int64          `json:"organization_id"`
	OrganizationName string         `json:"organization_name,omitempty"`
	UserID           int64          `json:"user_id"`
	CategoryID       *int64         `json:"category_id,omitempty"`
	CategoryName     string         `json:"category_name,omitempty"`
	GoalAmount       float64        `json:"goal_amount"`
	CurrentAmount    float64        `json:"current_amount"`
	GoalPercentage   *float64       `json:"goal_percentage,omitempty"`
	DonationCount    int64          `json:"donation_count"`
	IsFeatured       bool           `json:"is_featured"`
	StartDate        *time.Time     `json:"start_date,omitempty"`
	EndDate          *time.Time     `json:"end_date,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty"`
}

// Percentage returns funding progress in [0, 100].
// A non-positive goal yields 0.
func (c *Campaign) Percentage() float64 {
	return Progress(c.CurrentAmount, c.GoalAmount)
}

// RemainingAmount returns how much is still needed to reach the goal.
func (c *Campaign) RemainingAmount() float64 {
	return math.Max(0, c.GoalAmount-c.CurrentAmount)
}

// IsDeleted returns true if the campaign is soft-deleted.
func (c *Campaign) IsDeleted() bool {
	return c.DeletedAt != nil
}

// EffectiveStart returns the start date, falling back to the creation time.
func (c *Campaign) EffectiveStart() time.Time {
	if c.StartDate != nil {
		return *c.StartDate
	}
	return c.CreatedAt
}

// Progress returns min(100, current/goal*100), clamped at 0.
func Progress(current, goal float64) float64 {
	if goal <= 0 || math.IsNaN(current) || math.IsNaN(goal) {
		return 0
	}
	p := current / goal * 100
	if p < 0 {
		return 0
	}
	return math.Min(100, p)
}

// Page is one page of discovery results.
type Page struct {
	Items    []*Campaign `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`

	// Degraded is set when a backing source was unavailable and the page
	// was assembled from what remained.
	Degraded bool `json:"degraded,omitempty"`
}

// EmptyPage returns a page with no items.
func EmptyPage(page, pageSize int) *Page {
	return &Page{Items: []*Campaign{}, Page: page, PageSize: pageSize}
}
