// Package discovery answers campaign list queries by federating the search
// index with the primary store.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kindfund/kindfund/internal/auth"
	"github.com/kindfund/kindfund/internal/clock"
	"github.com/kindfund/kindfund/internal/filter"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/repository"
	"github.com/kindfund/kindfund/internal/search"
)

// Pagination defaults.
const (
	DefaultPageSize = 12
	MaxPageSize     = 100
	MaxPage         = math.MaxInt32 / MaxPageSize

	DefaultOwnerFetchLimit = 1000
	DefaultIngestionLag    = 5 * time.Minute
)

// Discovery errors.
var (
	// ErrIndexUnavailable means an owner's index-backed listing could not be
	// served. Callers should retry shortly.
	ErrIndexUnavailable = errors.New("search index temporarily unavailable, retry shortly")

	// ErrActorRequired means an owner-scoped query had no authenticated actor.
	ErrActorRequired = errors.New("authenticated actor required")
)

// Searcher queries the search index.
type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Outcome
}

// Store reads campaigns from the primary store.
type Store interface {
	CampaignsByIDs(ctx context.Context, ids []int64) ([]*model.Campaign, error)
	ListCampaigns(ctx context.Context, q repository.CampaignQuery) ([]*model.Campaign, int, error)
	FindCampaigns(ctx context.Context, q repository.CampaignQuery) ([]*model.Campaign, error)
}

// Config tunes discovery.
type Config struct {
	// SearchEnabled routes queries through the index. When false every
	// query runs against the primary store.
	SearchEnabled bool

	// OwnerFetchLimit caps the index hits fetched for a hybrid owner view.
	OwnerFetchLimit int

	// IngestionLag is how far behind the primary store the index may be.
	IngestionLag time.Duration
}

// Service runs discovery queries.
type Service struct {
	translator *filter.Translator
	searcher   Searcher
	store      Store
	clock      clock.Clock
	cfg        Config
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewService creates a discovery Service.
func NewService(translator *filter.Translator, searcher Searcher, store Store, clk clock.Clock, cfg Config, logger *slog.Logger, recorder metrics.Recorder) *Service {
	if clk == nil {
		clk = clock.System()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.OwnerFetchLimit <= 0 {
		cfg.OwnerFetchLimit = DefaultOwnerFetchLimit
	}
	if cfg.IngestionLag <= 0 {
		cfg.IngestionLag = DefaultIngestionLag
	}
	return &Service{
		translator: translator,
		searcher:   searcher,
		store:      store,
		clock:      clk,
		cfg:        cfg,
		logger:     logger.With("component", "discovery.service"),
		metrics:    recorder,
	}
}

// OwnerRequest is an owner-scoped discovery query.
type OwnerRequest struct {
	filter.Request

	// WithTrashed includes the owner's soft-deleted campaigns.
	WithTrashed bool

	// Hybrid merges index hits with records the index does not hold yet.
	Hybrid bool
}

// Discover lists publicly visible campaigns. An unusable index yields an
// empty, degraded page rather than an error.
func (s *Service) Discover(ctx context.Context, req filter.Request) (*model.Page, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDiscoverDuration(time.Since(start)) }()

	req.Scope = filter.ScopePublic
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize)

	plan, err := s.translator.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	if plan.Empty {
		return model.EmptyPage(plan.Page, plan.PageSize), nil
	}

	if !s.cfg.SearchEnabled {
		return s.listFromStore(ctx, repository.QueryFromPlan(plan), plan)
	}

	out := s.searcher.Search(ctx, indexQuery(plan, plan.Page, plan.PageSize))
	if out.IsDegraded() {
		page := model.EmptyPage(plan.Page, plan.PageSize)
		page.Degraded = true
		return page, nil
	}

	items, err := s.resolve(ctx, out.IDs)
	if err != nil {
		return nil, err
	}
	page := model.EmptyPage(plan.Page, plan.PageSize)
	page.Items = items
	page.Total = out.Total
	return page, nil
}

// DiscoverForOwner lists the actor's own campaigns in any state.
//
// In hybrid mode the index result is merged with store records the index
// cannot reflect yet, and the merged sequence is paginated in memory. If
// the index is unusable the hybrid view falls back to the store alone and
// is flagged degraded. Outside hybrid mode an unusable index returns
// ErrIndexUnavailable.
func (s *Service) DiscoverForOwner(ctx context.Context, req OwnerRequest) (*model.Page, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDiscoverDuration(time.Since(start)) }()

	if !req.Actor.Authenticated() {
		return nil, ErrActorRequired
	}

	r := req.Request
	r.Scope = filter.ScopeOwner
	r.Page, r.PageSize = normalizePage(r.Page, r.PageSize)

	plan, err := s.translator.Translate(ctx, r)
	if err != nil {
		return nil, err
	}
	if plan.Empty {
		return model.EmptyPage(plan.Page, plan.PageSize), nil
	}

	storeQuery := repository.QueryFromPlan(plan)
	storeQuery.WithTrashed = req.WithTrashed

	if !s.cfg.SearchEnabled {
		return s.listFromStore(ctx, storeQuery, plan)
	}
	if req.Hybrid {
		return s.hybrid(ctx, plan, storeQuery, req.Actor)
	}

	out := s.searcher.Search(ctx, indexQuery(plan, plan.Page, plan.PageSize))
	if out.IsDegraded() {
		s.logger.Warn("owner listing unavailable", "user_id", req.Actor.UserID, "reason", string(out.Degraded))
		return nil, ErrIndexUnavailable
	}

	items, err := s.resolve(ctx, out.IDs)
	if err != nil {
		return nil, err
	}
	page := model.EmptyPage(plan.Page, plan.PageSize)
	page.Items = items
	page.Total = out.Total
	return page, nil
}

func (s *Service) hybrid(ctx context.Context, plan filter.Plan, storeQuery repository.CampaignQuery, actor auth.Actor) (*model.Page, error) {
	out := s.searcher.Search(ctx, indexQuery(plan, 1, s.cfg.OwnerFetchLimit))

	var (
		resolved []*model.Campaign
		fallback []*model.Campaign
		err      error
	)

	if out.IsDegraded() {
		s.logger.Warn("owner index unavailable, serving from primary store",
			"user_id", actor.UserID,
			"reason", string(out.Degraded),
		)
		fallback, err = s.store.FindCampaigns(ctx, storeQuery)
		if err != nil {
			return nil, fmt.Errorf("owner fallback query: %w", err)
		}
	} else {
		resolved, err = s.resolve(ctx, out.IDs)
		if err != nil {
			return nil, err
		}
		since := s.clock.Now().Add(-s.cfg.IngestionLag)
		storeQuery.UnindexedSince = &since
		fallback, err = s.store.FindCampaigns(ctx, storeQuery)
		if err != nil {
			return nil, fmt.Errorf("owner fallback query: %w", err)
		}
	}

	merged := Merge(out.IDs, resolved, fallback, plan.Sort)
	page := Paginate(merged, plan.Page, plan.PageSize)
	page.Degraded = out.IsDegraded()
	return page, nil
}

func (s *Service) listFromStore(ctx context.Context, q repository.CampaignQuery, plan filter.Plan) (*model.Page, error) {
	items, total, err := s.store.ListCampaigns(ctx, q.Paginate(plan.Page, plan.PageSize))
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	page := model.EmptyPage(plan.Page, plan.PageSize)
	page.Items = items
	page.Total = total
	return page, nil
}

// resolve loads campaigns for index ids in one query, keeping index order.
func (s *Service) resolve(ctx context.Context, ids []int64) ([]*model.Campaign, error) {
	if len(ids) == 0 {
		return []*model.Campaign{}, nil
	}
	items, err := s.store.CampaignsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve index hits: %w", err)
	}
	ordered := orderByIDs(items, ids)
	if len(ordered) < len(ids) {
		s.logger.Debug("index returned ids missing from store", "hits", len(ids), "resolved", len(ordered))
	}
	return ordered, nil
}

func indexQuery(plan filter.Plan, page, hitsPerPage int) search.Query {
	return search.Query{
		Term:        plan.SearchTerm(),
		Filters:     plan.IndexFilters(),
		Sort:        plan.IndexSort(),
		Page:        page,
		HitsPerPage: hitsPerPage,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return min(page, MaxPage), pageSize
}
