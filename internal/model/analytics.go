package model

import "time"

// AnalyticsDetail tells how complete a read model is.
type AnalyticsDetail string

const (
	// AnalyticsDetailFull models carry breakdowns and trends.
	AnalyticsDetailFull AnalyticsDetail = "full"
	// AnalyticsDetailSummary models come from the bulk path and leave
	// breakdowns and trends empty.
	AnalyticsDetailSummary AnalyticsDetail = "summary"
)

// Breakdown is a count/amount pair grouped by a key such as a gateway.
type Breakdown struct {
	Key    string  `json:"key"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

// TrendBucket is a count/amount pair for a time bucket starting at Start.
type TrendBucket struct {
	Start  time.Time `json:"start"`
	Count  int64     `json:"count"`
	Amount float64   `json:"amount"`
}

// AnalyticsReadModel is the derived analytics view of one campaign.
type AnalyticsReadModel struct {
	CampaignID  int64           `json:"campaign_id"`
	Version     int64           `json:"version"`
	GeneratedAt time.Time       `json:"generated_at"`
	Detail      AnalyticsDetail `json:"detail"`

	Title            string         `json:"title"`
	Status           CampaignStatus `json:"status"`
	OrganizationID   int64          `json:"organization_id"`
	OrganizationName string         `json:"organization_name,omitempty"`
	CategoryName     string         `json:"category_name,omitempty"`

	// Donation counts
	TotalDonations     int64 `json:"total_donations"`
	CompletedDonations int64 `json:"completed_donations"`
	PendingDonations   int64 `json:"pending_donations"`
	FailedDonations    int64 `json:"failed_donations"`
	RefundedDonations  int64 `json:"refunded_donations"`

	// Amounts
	TotalRaised          float64 `json:"total_raised"`
	AverageDonation      float64 `json:"average_donation"`
	LargestDonation      float64 `json:"largest_donation"`
	SmallestDonation     float64 `json:"smallest_donation"`
	UniqueDonors         int64   `json:"unique_donors"`
	AnonymousDonations   int64   `json:"anonymous_donations"`
	AnonymousAmount      float64 `json:"anonymous_amount"`
	RecurringDonations   int64   `json:"recurring_donations"`
	RecurringAmount      float64 `json:"recurring_amount"`
	CorporateMatchAmount float64 `json:"corporate_match_amount"`

	FirstDonationAt *time.Time `json:"first_donation_at,omitempty"`
	LastDonationAt  *time.Time `json:"last_donation_at,omitempty"`

	// Goal progress
	GoalAmount         float64 `json:"goal_amount"`
	CurrentAmount      float64 `json:"current_amount"`
	ProgressPercentage float64 `json:"progress_percentage"`
	RemainingAmount    float64 `json:"remaining_amount"`
	IsGoalReached      bool    `json:"is_goal_reached"`

	// Timing
	DaysActive    int     `json:"days_active"`
	DaysRemaining int     `json:"days_remaining"`
	DurationDays  int     `json:"duration_days"`
	DailyAverage  float64 `json:"daily_average"`

	// Full detail only
	GatewayBreakdown []Breakdown   `json:"gateway_breakdown"`
	MethodBreakdown  []Breakdown   `json:"method_breakdown"`
	DailyTrend       []TrendBucket `json:"daily_trend"`
	WeeklyTrend      []TrendBucket `json:"weekly_trend"`
}
