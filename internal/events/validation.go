package events

import (
	"errors"
	"fmt"
)

// ErrInvalidEvent is wrapped by every validation failure.
var ErrInvalidEvent = errors.New("invalid donation event")

// Validate checks a donation event before it is published or processed.
func Validate(event DonationEvent) error {
	switch event.Type {
	case EventDonationCreated, EventDonationUpdated:
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidEvent)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, event.Type)
	}
	if event.CampaignID <= 0 {
		return fmt.Errorf("%w: campaign_id must be positive", ErrInvalidEvent)
	}
	if event.DonationID < 0 {
		return fmt.Errorf("%w: donation_id must not be negative", ErrInvalidEvent)
	}
	if event.OrganizationID < 0 {
		return fmt.Errorf("%w: organization_id must not be negative", ErrInvalidEvent)
	}
	if event.OccurredAt <= 0 {
		return fmt.Errorf("%w: occurred_at must be set", ErrInvalidEvent)
	}
	return nil
}
