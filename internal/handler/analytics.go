package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kindfund/kindfund/internal/handler/dto"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/service"
)

// AnalyticsReader serves cached analytics read models.
type AnalyticsReader interface {
	GetAnalytics(ctx context.Context, campaignID int64) (*model.AnalyticsReadModel, error)
	GetBulkAnalytics(ctx context.Context, campaignIDs []int64) (map[int64]*model.AnalyticsReadModel, error)
}

// AnalyticsHandler handles campaign analytics endpoints.
type AnalyticsHandler struct {
	svc    AnalyticsReader
	logger *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(svc AnalyticsReader, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// Get handles GET /api/v1/campaigns/{id}/analytics.
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	rm, err := h.svc.GetAnalytics(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// Bulk handles POST /api/v1/analytics/bulk.
func (h *AnalyticsHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkAnalyticsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if len(req.CampaignIDs) == 0 {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_IDS", "campaign_ids is required")
		return
	}

	out, err := h.svc.GetBulkAnalytics(r.Context(), req.CampaignIDs)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BulkAnalyticsResponse{Data: out})
}

func (h *AnalyticsHandler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCampaignNotFound):
		writeErrorJSON(w, http.StatusNotFound, "CAMPAIGN_NOT_FOUND", "Campaign not found")
	case errors.Is(err, service.ErrTooManyIDs):
		writeErrorJSON(w, http.StatusBadRequest, "TOO_MANY_IDS", err.Error())
	default:
		h.logger.Error("internal_error", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// campaignIDParam parses the {id} route parameter, writing a 400 when it
// is not a positive integer.
func campaignIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_ID", "Campaign ID must be a positive integer")
		return 0, false
	}
	return id, true
}
