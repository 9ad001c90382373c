// Package events carries donation signals from the payment side to the
// cache invalidation worker over a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kindfund/kindfund/internal/metrics"
)

const (
	// StreamKey is the Redis stream for donation events.
	StreamKey = "stream:donation_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:donation_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 250 * time.Millisecond
)

// EventType is the kind of donation change.
type EventType string

const (
	EventDonationCreated EventType = "donation.created"
	EventDonationUpdated EventType = "donation.updated"
)

// DonationEvent is the stream payload.
type DonationEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	DonationID     int64     `json:"donation_id"`
	CampaignID     int64     `json:"campaign_id"`
	OrganizationID int64     `json:"organization_id,omitempty"`
	OccurredAt     int64     `json:"occurred_at"` // Unix milliseconds
}

// Publisher appends donation events to the stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new donation event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Publish validates and appends an event, filling in ID and OccurredAt when
// unset. It returns the stream entry id.
func (p *Publisher) Publish(ctx context.Context, event DonationEvent) (string, error) {
	event = withDefaults(event, time.Now())
	if err := Validate(event); err != nil {
		p.metrics.IncDonationEventPublished("rejected")
		return "", err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	streamID, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		p.metrics.IncDonationEventPublished("failed")
		return "", fmt.Errorf("xadd: %w", err)
	}

	p.logger.Debug("donation event published",
		"event_id", event.ID,
		"campaign_id", event.CampaignID,
		"stream_id", streamID,
	)
	p.metrics.IncDonationEventPublished("success")
	return streamID, nil
}

func withDefaults(event DonationEvent, now time.Time) DonationEvent {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if event.OccurredAt == 0 {
		event.OccurredAt = now.UnixMilli()
	}
	return event
}
