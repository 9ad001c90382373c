package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kindfund/kindfund/internal/auth"
	"github.com/kindfund/kindfund/internal/discovery"
	"github.com/kindfund/kindfund/internal/filter"
	"github.com/kindfund/kindfund/internal/handler/dto"
	"github.com/kindfund/kindfund/internal/model"
)

// indexRetryAfter is the Retry-After hint, in seconds, sent when the
// search index is unavailable.
const indexRetryAfter = "5"

// Discoverer runs discovery queries.
type Discoverer interface {
	Discover(ctx context.Context, req filter.Request) (*model.Page, error)
	DiscoverForOwner(ctx context.Context, req discovery.OwnerRequest) (*model.Page, error)
}

// CampaignLister serves the cached campaign lists.
type CampaignLister interface {
	PopularCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error)
	TrendingCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error)
	EndingSoonCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error)
	RecentCampaigns(ctx context.Context, limit int) ([]*model.Campaign, error)
}

// CampaignHandler handles campaign discovery and list endpoints.
type CampaignHandler struct {
	discovery   Discoverer
	lists       CampaignLister
	ownerHybrid bool
	logger      *slog.Logger
}

// NewCampaignHandler creates a CampaignHandler. ownerHybrid is the default
// for the owner view's hybrid parameter.
func NewCampaignHandler(d Discoverer, lists CampaignLister, ownerHybrid bool, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		discovery:   d,
		lists:       lists,
		ownerHybrid: ownerHybrid,
		logger:      logger,
	}
}

// Discover handles GET /api/v1/campaigns.
func (h *CampaignHandler) Discover(w http.ResponseWriter, r *http.Request) {
	req := parseDiscoveryRequest(r.URL.Query())
	req.Actor = auth.ActorFromContext(r.Context())

	page, err := h.discovery.Discover(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToCampaignPageResponse(page))
}

// DiscoverMine handles GET /api/v1/me/campaigns.
func (h *CampaignHandler) DiscoverMine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := discovery.OwnerRequest{
		Request:     parseDiscoveryRequest(q),
		WithTrashed: parseBool(q.Get("with_trashed"), false),
		Hybrid:      parseBool(q.Get("hybrid"), h.ownerHybrid),
	}
	req.Actor = auth.ActorFromContext(r.Context())

	page, err := h.discovery.DiscoverForOwner(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToCampaignPageResponse(page))
}

// Popular handles GET /api/v1/campaigns/popular.
func (h *CampaignHandler) Popular(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, h.lists.PopularCampaigns)
}

// Trending handles GET /api/v1/campaigns/trending.
func (h *CampaignHandler) Trending(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, h.lists.TrendingCampaigns)
}

// EndingSoon handles GET /api/v1/campaigns/ending-soon.
func (h *CampaignHandler) EndingSoon(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, h.lists.EndingSoonCampaigns)
}

// Recent handles GET /api/v1/campaigns/recent.
func (h *CampaignHandler) Recent(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, h.lists.RecentCampaigns)
}

func (h *CampaignHandler) serveList(w http.ResponseWriter, r *http.Request, load func(context.Context, int) ([]*model.Campaign, error)) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := load(r.Context(), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CampaignListResponse{Data: dto.ToCampaignList(items)})
}

func (h *CampaignHandler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, discovery.ErrIndexUnavailable):
		w.Header().Set("Retry-After", indexRetryAfter)
		writeErrorJSON(w, http.StatusServiceUnavailable, "INDEX_UNAVAILABLE", "Search index temporarily unavailable, retry shortly")
	case errors.Is(err, discovery.ErrActorRequired):
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authenticated user required")
	case errors.Is(err, context.Canceled):
		h.logger.Debug("request canceled", "error", err)
	default:
		h.logger.Error("internal_error", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// parseDiscoveryRequest maps query parameters onto a filter request.
// Bracketed keys such as start_date[gte] become operator maps.
func parseDiscoveryRequest(q url.Values) filter.Request {
	raw := make(map[string]any, len(q))
	for key, values := range q {
		if len(values) == 0 {
			continue
		}
		name, op, ok := splitBracket(key)
		if !ok {
			if _, taken := raw[key]; !taken {
				raw[key] = values[0]
			}
			continue
		}
		ops, _ := raw[name].(map[string]any)
		if ops == nil {
			ops = map[string]any{}
			raw[name] = ops
		}
		ops[op] = values[0]
	}

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	return filter.Request{
		Spec:      filter.Parse(raw),
		Sort:      q.Get("sort"),
		Direction: q.Get("direction"),
		Page:      page,
		PageSize:  perPage,
	}
}

// splitBracket splits "field[op]" into its parts.
func splitBracket(key string) (string, string, bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	op := key[open+1 : len(key)-1]
	if op == "" {
		return "", "", false
	}
	return key[:open], op, true
}

func parseBool(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}
