package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindfund/kindfund/internal/auth"
	"github.com/kindfund/kindfund/internal/clock"
	"github.com/kindfund/kindfund/internal/filter"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/repository"
	"github.com/kindfund/kindfund/internal/search"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	out     search.Outcome
	queries []search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) search.Outcome {
	f.queries = append(f.queries, q)
	return f.out
}

type fakeStore struct {
	campaigns map[int64]*model.Campaign
	found     []*model.Campaign
	listed    []*model.Campaign
	total     int
	err       error

	byIDCalls int
	findCalls int
	listCalls int
	lastFind  repository.CampaignQuery
	lastList  repository.CampaignQuery
}

func newFakeStore(cs ...*model.Campaign) *fakeStore {
	s := &fakeStore{campaigns: map[int64]*model.Campaign{}}
	for _, c := range cs {
		s.campaigns[c.ID] = c
	}
	return s
}

func (f *fakeStore) CampaignsByIDs(_ context.Context, ids []int64) ([]*model.Campaign, error) {
	f.byIDCalls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Campaign
	for _, id := range ids {
		if c, ok := f.campaigns[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCampaigns(_ context.Context, q repository.CampaignQuery) ([]*model.Campaign, int, error) {
	f.listCalls++
	f.lastList = q
	return f.listed, f.total, f.err
}

func (f *fakeStore) FindCampaigns(_ context.Context, q repository.CampaignQuery) ([]*model.Campaign, error) {
	f.findCalls++
	f.lastFind = q
	return f.found, f.err
}

func (f *fakeStore) calls() int { return f.byIDCalls + f.findCalls + f.listCalls }

func newTestService(searcher Searcher, store Store, cfg Config) *Service {
	clk := clock.Fixed(testNow)
	return NewService(
		filter.NewTranslator(nil, clk),
		searcher,
		store,
		clk,
		cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		nil,
	)
}

var owner = auth.Actor{UserID: 11}

func TestDiscover_ResolvesInIndexOrder(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{out: search.Outcome{IDs: []int64{3, 1, 2}, Total: 40}}
	store := newFakeStore(campaign(1), campaign(2), campaign(3))
	svc := newTestService(searcher, store, Config{SearchEnabled: true})

	page, err := svc.Discover(context.Background(), filter.Request{Page: 2, PageSize: 3})
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 1, 2}, ids(page.Items))
	assert.Equal(t, 40, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.False(t, page.Degraded)
	assert.Equal(t, 1, store.byIDCalls)

	require.Len(t, searcher.queries, 1)
	q := searcher.queries[0]
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 3, q.HitsPerPage)
	assert.Contains(t, q.Filters[0], "status IN")
}

func TestDiscover_EmptyIndexIsEmptyPage(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{out: search.Outcome{IDs: []int64{}, Degraded: search.ReasonIndexEmpty}}
	store := newFakeStore(campaign(1))
	svc := newTestService(searcher, store, Config{SearchEnabled: true})

	page, err := svc.Discover(context.Background(), filter.Request{})
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Zero(t, page.Total)
	assert.True(t, page.Degraded)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	assert.Zero(t, store.calls())
}

func TestDiscover_FavoritesAnonymousSkipsBackends(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	store := newFakeStore()
	svc := newTestService(searcher, store, Config{SearchEnabled: true})

	req := filter.Request{
		Spec: filter.Spec{Filters: []filter.Filter{filter.QuickFilter{Tag: filter.QuickFavorites}}},
	}
	page, err := svc.Discover(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)
	assert.Empty(t, searcher.queries)
	assert.Zero(t, store.calls())
}

func TestDiscover_SearchDisabledUsesStore(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	store := newFakeStore()
	store.listed = []*model.Campaign{campaign(8)}
	store.total = 1
	svc := newTestService(searcher, store, Config{})

	page, err := svc.Discover(context.Background(), filter.Request{Page: 3, PageSize: 500})
	require.NoError(t, err)

	assert.Equal(t, []int64{8}, ids(page.Items))
	assert.Equal(t, MaxPageSize, page.PageSize)
	assert.Empty(t, searcher.queries)
	assert.Equal(t, MaxPageSize, store.lastList.Limit)
	assert.Equal(t, 2*MaxPageSize, store.lastList.Offset)
	assert.False(t, store.lastList.WithTrashed)
}

func TestDiscover_StoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	store := newFakeStore()
	store.err = boom
	svc := newTestService(&fakeSearcher{out: search.Outcome{IDs: []int64{1}, Total: 1}}, store, Config{SearchEnabled: true})

	_, err := svc.Discover(context.Background(), filter.Request{})
	require.ErrorIs(t, err, boom)
}

func TestDiscoverForOwner_RequiresActor(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(&fakeSearcher{}, store, Config{SearchEnabled: true})

	_, err := svc.DiscoverForOwner(context.Background(), OwnerRequest{Hybrid: true})
	require.ErrorIs(t, err, ErrActorRequired)
	assert.Zero(t, store.calls())
}

func TestDiscoverForOwner_HybridMergesUnindexed(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{out: search.Outcome{IDs: []int64{5, 7}, Total: 2}}
	store := newFakeStore(campaign(5), campaign(7))
	draft := campaign(9)
	draft.Status = model.CampaignStatusDraft
	store.found = []*model.Campaign{campaign(7), draft}

	svc := newTestService(searcher, store, Config{SearchEnabled: true, IngestionLag: time.Minute})

	req := OwnerRequest{Request: filter.Request{Actor: owner}, Hybrid: true, WithTrashed: true}
	page, err := svc.DiscoverForOwner(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []int64{9, 7, 5}, ids(page.Items), "default sort is newest first")
	assert.Equal(t, 3, page.Total)
	assert.False(t, page.Degraded)

	require.Len(t, searcher.queries, 1)
	assert.Equal(t, 1, searcher.queries[0].Page)
	assert.Equal(t, DefaultOwnerFetchLimit, searcher.queries[0].HitsPerPage)

	require.NotNil(t, store.lastFind.UnindexedSince)
	assert.Equal(t, testNow.Add(-time.Minute), *store.lastFind.UnindexedSince)
	assert.True(t, store.lastFind.WithTrashed)
}

func TestDiscoverForOwner_HybridPaginatesMerged(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{out: search.Outcome{IDs: []int64{1, 2, 3}, Total: 3}}
	store := newFakeStore(campaign(1), campaign(2), campaign(3))
	store.found = []*model.Campaign{campaign(4)}
	svc := newTestService(searcher, store, Config{SearchEnabled: true})

	req := OwnerRequest{
		Request: filter.Request{Actor: owner, Sort: "created_at", Direction: "asc", Page: 2, PageSize: 3},
		Hybrid:  true,
	}
	page, err := svc.DiscoverForOwner(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []int64{4}, ids(page.Items))
	assert.Equal(t, 4, page.Total)
}

func TestDiscoverForOwner_HugePageIsEmpty(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{out: search.Outcome{IDs: []int64{1, 2}, Total: 2}}
	store := newFakeStore(campaign(1), campaign(2))
	store.found = []*model.Campaign{campaign(3)}
	svc := newTestService(searcher, store, Config{SearchEnabled: true})

	req := OwnerRequest{
		Request: filter.Request{Actor: owner, Page: 1 << 62, PageSize: 100},
		Hybrid:  true,
	}
	page, err := svc.DiscoverForOwner(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, MaxPage, page.Page)
	require.NotEmpty(t, searcher.queries)
	assert.Equal(t, 1, searcher.queries[0].Page, "hybrid reads the index from the first page")
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{2, 500, 2, MaxPageSize},
		{1 << 62, 100, MaxPage, 100},
		{-5, 12, 1, 12},
	}
	for _, tt := range tests {
		page, size := normalizePage(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, page, "page for %d", tt.page)
		assert.Equal(t, tt.wantSize, size, "size for %d", tt.size)
	}
}

func TestDiscoverForOwner_HybridDegradedFallsBack(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{out: search.Outcome{Degraded: search.ReasonIndexUnreachable}}
	store := newFakeStore()
	store.found = []*model.Campaign{campaign(2), campaign(1)}
	svc := newTestService(searcher, store, Config{SearchEnabled: true})

	req := OwnerRequest{Request: filter.Request{Actor: owner}, Hybrid: true}
	page, err := svc.DiscoverForOwner(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, page.Degraded)
	assert.Equal(t, []int64{2, 1}, ids(page.Items))
	assert.Nil(t, store.lastFind.UnindexedSince, "degraded fallback reads every owned record")
	assert.Zero(t, store.byIDCalls)
}

func TestDiscoverForOwner_IndexUnavailable(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{out: search.Outcome{Degraded: search.ReasonQueryFailed}}
	svc := newTestService(searcher, newFakeStore(), Config{SearchEnabled: true})

	_, err := svc.DiscoverForOwner(context.Background(), OwnerRequest{Request: filter.Request{Actor: owner}})
	require.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestDiscoverForOwner_SearchDisabled(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.listed = []*model.Campaign{campaign(3)}
	store.total = 1
	svc := newTestService(&fakeSearcher{}, store, Config{})

	page, err := svc.DiscoverForOwner(context.Background(), OwnerRequest{
		Request:     filter.Request{Actor: owner},
		WithTrashed: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, page.Total)
	assert.True(t, store.lastList.WithTrashed)
	assert.NotEmpty(t, store.lastList.Conds)
	assert.Equal(t, filter.FieldUserID, store.lastList.Conds[0].Field)
}
