package model

import "time"

// DonationStatus is the payment state of a donation.
type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusFailed    DonationStatus = "failed"
	DonationStatusRefunded  DonationStatus = "refunded"
)

// Donation is a single contribution to a campaign.
type Donation struct {
	ID                   int64          `json:"id"`
	CampaignID           int64          `json:"campaign_id"`
	UserID               *int64         `json:"user_id,omitempty"`
	DonorEmail           string         `json:"donor_email,omitempty"`
	Amount               float64        `json:"amount"`
	Status               DonationStatus `json:"status"`
	PaymentGateway       string         `json:"payment_gateway"`
	PaymentMethod        string         `json:"payment_method"`
	IsAnonymous          bool           `json:"is_anonymous"`
	IsRecurring          bool           `json:"is_recurring"`
	CorporateMatchAmount float64        `json:"corporate_match_amount"`
	CreatedAt            time.Time      `json:"created_at"`
}

// DonationAggregate holds donation totals for one campaign.
// Amount sums only count completed donations.
type DonationAggregate struct {
	CampaignID int64

	Total     int64
	Completed int64
	Pending   int64
	Failed    int64
	Refunded  int64

	TotalRaised  float64
	Average      float64
	Largest      float64
	Smallest     float64
	UniqueDonors int64

	AnonymousCount       int64
	AnonymousAmount      float64
	RecurringCount       int64
	RecurringAmount      float64
	CorporateMatchAmount float64

	FirstDonationAt *time.Time
	LastDonationAt  *time.Time
}
