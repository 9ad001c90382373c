package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/kindfund/kindfund/internal/events"
	"github.com/kindfund/kindfund/internal/handler/dto"
)

// EventPublisher appends donation events to the invalidation stream.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DonationEvent) (string, error)
}

// EventsHandler accepts donation signals from the payment side.
type EventsHandler struct {
	publisher EventPublisher
	logger    *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(publisher EventPublisher, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{publisher: publisher, logger: logger}
}

// Publish handles POST /api/v1/internal/donation-events.
func (h *EventsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req dto.DonationEventRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	event := events.DonationEvent{
		ID:             ulid.Make().String(),
		Type:           events.EventType(req.Type),
		DonationID:     req.DonationID,
		CampaignID:     req.CampaignID,
		OrganizationID: req.OrganizationID,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = req.OccurredAt.UnixMilli()
	}

	streamID, err := h.publisher.Publish(r.Context(), event)
	if errors.Is(err, events.ErrInvalidEvent) {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("donation event publish failed", "campaign_id", event.CampaignID, "error", err)
		writeErrorJSON(w, http.StatusServiceUnavailable, "PUBLISH_FAILED", "Event stream unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, dto.DonationEventResponse{EventID: event.ID, StreamID: streamID})
}
