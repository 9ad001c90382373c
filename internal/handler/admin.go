package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kindfund/kindfund/internal/handler/dto"
	"github.com/kindfund/kindfund/internal/service"
	"github.com/kindfund/kindfund/internal/tasks"
)

// CacheAdmin performs cache maintenance.
type CacheAdmin interface {
	InvalidateCampaignCache(ctx context.Context, campaignID, organizationID int64) error
	InvalidateAll(ctx context.Context) (int, error)
	HasCached(ctx context.Context, key string) (bool, error)
	WarmPopularCampaignsCache(ctx context.Context) (*service.WarmReport, error)
	WarmCacheForCampaigns(ctx context.Context, ids []int64) (*service.WarmReport, error)
}

// WarmDispatcher queues warm runs on the background worker.
type WarmDispatcher interface {
	EnqueueWarmPopular(ctx context.Context) (string, error)
	EnqueueWarmCampaigns(ctx context.Context, ids []int64) (string, error)
}

// AdminHandler handles cache administration endpoints.
type AdminHandler struct {
	cache      CacheAdmin
	dispatcher WarmDispatcher
	logger     *slog.Logger
}

// NewAdminHandler creates an AdminHandler. dispatcher may be nil, in which
// case async warm requests run inline.
func NewAdminHandler(cache CacheAdmin, dispatcher WarmDispatcher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{cache: cache, dispatcher: dispatcher, logger: logger}
}

// InvalidateCampaign handles POST /api/v1/admin/cache/campaigns/{id}/invalidate.
func (h *AdminHandler) InvalidateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	var orgID int64
	if raw := r.URL.Query().Get("organization_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_ORGANIZATION_ID", "organization_id must be a positive integer")
			return
		}
		orgID = v
	}

	if err := h.cache.InvalidateCampaignCache(r.Context(), id, orgID); err != nil {
		h.internalError(w, err)
		return
	}
	h.logger.Info("campaign cache invalidated", "campaign_id", id, "organization_id", orgID)
	writeJSON(w, http.StatusOK, dto.InvalidateResponse{CampaignID: id, Status: "invalidated"})
}

// Flush handles POST /api/v1/admin/cache/flush.
func (h *AdminHandler) Flush(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.InvalidateAll(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.logger.Info("campaign cache flushed", "entries", n)
	writeJSON(w, http.StatusOK, dto.InvalidateResponse{Entries: &n, Status: "flushed"})
}

// Has handles GET /api/v1/admin/cache/has?key=.
func (h *AdminHandler) Has(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_KEY", "key is required")
		return
	}

	cached, err := h.cache.HasCached(r.Context(), key)
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CacheHasResponse{Key: key, Cached: cached})
}

// WarmPopular handles POST /api/v1/admin/cache/warm/popular.
func (h *AdminHandler) WarmPopular(w http.ResponseWriter, r *http.Request) {
	if h.async(r) {
		id, err := h.dispatcher.EnqueueWarmPopular(r.Context())
		h.writeEnqueued(w, id, err)
		return
	}

	report, err := h.cache.WarmPopularCampaignsCache(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// WarmCampaigns handles POST /api/v1/admin/cache/warm/campaigns. An empty
// body warms the default candidate set.
func (h *AdminHandler) WarmCampaigns(w http.ResponseWriter, r *http.Request) {
	var req dto.WarmCampaignsRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if len(req.CampaignIDs) > service.MaxBulkIDs {
		writeErrorJSON(w, http.StatusBadRequest, "TOO_MANY_IDS", service.ErrTooManyIDs.Error())
		return
	}

	if h.async(r) {
		id, err := h.dispatcher.EnqueueWarmCampaigns(r.Context(), req.CampaignIDs)
		h.writeEnqueued(w, id, err)
		return
	}

	report, err := h.cache.WarmCacheForCampaigns(r.Context(), req.CampaignIDs)
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) async(r *http.Request) bool {
	return h.dispatcher != nil && parseBool(r.URL.Query().Get("async"), false)
}

func (h *AdminHandler) writeEnqueued(w http.ResponseWriter, taskID string, err error) {
	switch {
	case errors.Is(err, tasks.ErrAlreadyQueued):
		writeJSON(w, http.StatusAccepted, dto.EnqueuedResponse{Status: "already_queued"})
	case err != nil:
		h.internalError(w, err)
	default:
		writeJSON(w, http.StatusAccepted, dto.EnqueuedResponse{TaskID: taskID, Status: "queued"})
	}
}

func (h *AdminHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("internal_error", "error", err)
	writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}
