package repository

// AnalyticsStore joins the campaign and donation repositories into the
// read surface the analytics builder needs.
type AnalyticsStore struct {
	*CampaignRepository
	*DonationRepository
}

// NewAnalyticsStore creates an AnalyticsStore over r.
func NewAnalyticsStore(r *Repository) *AnalyticsStore {
	return &AnalyticsStore{
		CampaignRepository: NewCampaignRepository(r),
		DonationRepository: NewDonationRepository(r),
	}
}
