package model

import (
	"math"
	"testing"
	"time"
)

func TestProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current float64
		goal    float64
		want    float64
	}{
		{"three quarters", 750, 1000, 75},
		{"zero goal", 500, 0, 0},
		{"negative goal", 500, -10, 0},
		{"over funded", 2500, 1000, 100},
		{"nothing raised", 0, 1000, 0},
		{"negative current", -5, 1000, 0},
		{"nan current", math.NaN(), 1000, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Progress(tt.current, tt.goal)
			if got != tt.want {
				t.Errorf("Progress(%v, %v) = %v, want %v", tt.current, tt.goal, got, tt.want)
			}
			if math.IsNaN(got) {
				t.Errorf("Progress(%v, %v) returned NaN", tt.current, tt.goal)
			}
		})
	}
}

func TestCampaign_Percentage(t *testing.T) {
	t.Parallel()

	c := &Campaign{GoalAmount: 1000, CurrentAmount: 750}
	if got := c.Percentage(); got != 75 {
		t.Errorf("Percentage() = %v, want 75", got)
	}
	if got := c.RemainingAmount(); got != 250 {
		t.Errorf("RemainingAmount() = %v, want 250", got)
	}

	funded := &Campaign{GoalAmount: 100, CurrentAmount: 150}
	if got := funded.RemainingAmount(); got != 0 {
		t.Errorf("RemainingAmount() = %v, want 0", got)
	}
}

func TestCampaign_EffectiveStart(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	c := &Campaign{CreatedAt: created}
	if !c.EffectiveStart().Equal(created) {
		t.Errorf("EffectiveStart() = %v, want created_at", c.EffectiveStart())
	}

	c.StartDate = &start
	if !c.EffectiveStart().Equal(start) {
		t.Errorf("EffectiveStart() = %v, want start_date", c.EffectiveStart())
	}
}

func TestCampaignStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  CampaignStatus
		valid   bool
		indexed bool
	}{
		{CampaignStatusDraft, true, false},
		{CampaignStatusPendingApproval, true, false},
		{CampaignStatusActive, true, true},
		{CampaignStatusPaused, true, true},
		{CampaignStatusCompleted, true, true},
		{CampaignStatus("archived"), false, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()

			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.status.Indexed(); got != tt.indexed {
				t.Errorf("Indexed() = %v, want %v", got, tt.indexed)
			}
		})
	}
}
