package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindfund/kindfund/internal/cache"
	"github.com/kindfund/kindfund/internal/clock"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/model"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type fakeBuilder struct {
	mu        sync.Mutex
	models    map[int64]*model.AnalyticsReadModel
	errs      map[int64]error
	built     []int64
	bulkCalls [][]int64
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{
		models: map[int64]*model.AnalyticsReadModel{},
		errs:   map[int64]error{},
	}
}

func (f *fakeBuilder) add(id, orgID int64) {
	f.models[id] = &model.AnalyticsReadModel{
		CampaignID:     id,
		OrganizationID: orgID,
		Detail:         model.AnalyticsDetailFull,
		TotalRaised:    float64(id) * 10,
	}
}

func (f *fakeBuilder) Build(_ context.Context, id int64) (*model.AnalyticsReadModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.models[id], nil
}

func (f *fakeBuilder) BuildMany(_ context.Context, ids []int64) (map[int64]*model.AnalyticsReadModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	f.bulkCalls = append(f.bulkCalls, sorted)

	out := map[int64]*model.AnalyticsReadModel{}
	for _, id := range ids {
		if rm, ok := f.models[id]; ok {
			summary := *rm
			summary.Detail = model.AnalyticsDetailSummary
			out[id] = &summary
		}
	}
	return out, nil
}

func (f *fakeBuilder) buildCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.built {
		if b == id {
			n++
		}
	}
	return n
}

type listCall struct {
	name         string
	limit        int
	since, until time.Time
	minDonations int
}

type fakeCampaignStore struct {
	mu           sync.Mutex
	calls        []listCall
	items        []*model.Campaign
	topIDs       []int64
	donatedIDs   []int64
	candidateErr error
}

func (f *fakeCampaignStore) record(c listCall) []*model.Campaign {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.items
}

func (f *fakeCampaignStore) PopularCampaigns(_ context.Context, limit int) ([]*model.Campaign, error) {
	return f.record(listCall{name: "popular", limit: limit}), nil
}

func (f *fakeCampaignStore) TrendingCampaigns(_ context.Context, since time.Time, minDonations, limit int) ([]*model.Campaign, error) {
	return f.record(listCall{name: "trending", limit: limit, since: since, minDonations: minDonations}), nil
}

func (f *fakeCampaignStore) EndingSoonCampaigns(_ context.Context, now, until time.Time, limit int) ([]*model.Campaign, error) {
	return f.record(listCall{name: "ending_soon", limit: limit, since: now, until: until}), nil
}

func (f *fakeCampaignStore) RecentCampaigns(_ context.Context, limit int) ([]*model.Campaign, error) {
	return f.record(listCall{name: "recent", limit: limit}), nil
}

func (f *fakeCampaignStore) TopByProgress(_ context.Context, limit int) ([]int64, error) {
	f.record(listCall{name: "top_by_progress", limit: limit})
	return f.topIDs, f.candidateErr
}

func (f *fakeCampaignStore) MostDonatedSince(_ context.Context, since time.Time, minDonations, limit int) ([]int64, error) {
	f.record(listCall{name: "most_donated", limit: limit, since: since, minDonations: minDonations})
	return f.donatedIDs, f.candidateErr
}

func (f *fakeCampaignStore) callsNamed(name string) []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []listCall
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type testEnv struct {
	svc     *CampaignService
	store   *fakeCampaignStore
	builder *fakeBuilder
	layer   *cache.Layer
	rec     *metrics.InMemoryRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.Fixed(testNow)
	rec := metrics.NewInMemory()
	layer := cache.NewLayer(cache.NewMemory(clk), "kindfund", 1, rec, logger)
	store := &fakeCampaignStore{items: []*model.Campaign{{ID: 1, Title: "one"}}}
	builder := newFakeBuilder()

	return &testEnv{
		svc:     NewCampaignService(store, builder, layer, clk, Config{WarmLimit: 5}, logger, rec),
		store:   store,
		builder: builder,
		layer:   layer,
		rec:     rec,
	}
}

func (e *testEnv) cached(t *testing.T, key string) bool {
	t.Helper()
	ok, err := e.layer.Has(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestGetAnalytics_CachesReadModel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.builder.add(42, 7)
	ctx := context.Background()

	first, err := env.svc.GetAnalytics(ctx, 42)
	require.NoError(t, err)
	second, err := env.svc.GetAnalytics(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, first.TotalRaised, second.TotalRaised)
	assert.Equal(t, first.OrganizationID, second.OrganizationID)
	assert.Equal(t, 1, env.builder.buildCount(42))
	assert.Equal(t, uint64(1), env.rec.Snapshot().CacheHits["analytics"])
	assert.True(t, env.cached(t, cache.AnalyticsKey(42)))
}

func TestGetAnalytics_MissingIsNotCached(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.svc.GetAnalytics(ctx, 404)
		require.ErrorIs(t, err, ErrCampaignNotFound)
	}
	assert.Equal(t, 2, env.builder.buildCount(404))
	assert.False(t, env.cached(t, cache.AnalyticsKey(404)))

	_, err := env.svc.GetAnalytics(ctx, 0)
	require.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestGetAnalytics_BuildErrorIsReturned(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	boom := errors.New("deadlock detected")
	env.builder.errs[5] = boom

	_, err := env.svc.GetAnalytics(context.Background(), 5)
	require.ErrorIs(t, err, boom)
	assert.False(t, env.cached(t, cache.AnalyticsKey(5)))
}

func TestInvalidateCampaignCache(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.builder.add(42, 7)
	env.builder.add(43, 7)
	env.builder.add(44, 8)
	ctx := context.Background()

	for _, id := range []int64{42, 43, 44} {
		_, err := env.svc.GetAnalytics(ctx, id)
		require.NoError(t, err)
	}
	_, err := env.svc.PopularCampaigns(ctx, 20)
	require.NoError(t, err)

	require.NoError(t, env.svc.InvalidateCampaignCache(ctx, 42, 7))

	assert.False(t, env.cached(t, cache.AnalyticsKey(42)))
	assert.False(t, env.cached(t, cache.AnalyticsKey(43)), "same organization")
	assert.True(t, env.cached(t, cache.AnalyticsKey(44)), "other organization")
	assert.False(t, env.cached(t, cache.ListKey(cache.ListPopular, 20)))

	_, err = env.svc.GetAnalytics(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, env.builder.buildCount(42), "next read rebuilds")
}

func TestInvalidateCampaignCache_WithoutOrganization(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.builder.add(42, 7)
	env.builder.add(43, 7)
	ctx := context.Background()

	for _, id := range []int64{42, 43} {
		_, err := env.svc.GetAnalytics(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, env.svc.InvalidateCampaignCache(ctx, 42, 0))
	assert.False(t, env.cached(t, cache.AnalyticsKey(42)))
	assert.True(t, env.cached(t, cache.AnalyticsKey(43)))
}

func TestInvalidateAll(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.builder.add(1, 0)
	ctx := context.Background()

	_, err := env.svc.GetAnalytics(ctx, 1)
	require.NoError(t, err)
	_, err = env.svc.RecentCampaigns(ctx, 10)
	require.NoError(t, err)

	n, err := env.svc.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, env.cached(t, cache.AnalyticsKey(1)))
	assert.False(t, env.cached(t, cache.ListKey(cache.ListRecent, 10)))
}

func TestLists_ClampAndCache(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	for _, limit := range []int{0, 0, 500} {
		items, err := env.svc.PopularCampaigns(ctx, limit)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}

	calls := env.store.callsNamed("popular")
	require.Len(t, calls, 2, "second default-limit read is a cache hit")
	assert.Equal(t, DefaultListLimit, calls[0].limit)
	assert.Equal(t, MaxListLimit, calls[1].limit)
	assert.True(t, env.cached(t, cache.ListKey(cache.ListPopular, MaxListLimit)))
}

func TestLists_Windows(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.TrendingCampaigns(ctx, 5)
	require.NoError(t, err)
	_, err = env.svc.EndingSoonCampaigns(ctx, 5)
	require.NoError(t, err)

	trending := env.store.callsNamed("trending")
	require.Len(t, trending, 1)
	assert.Equal(t, testNow.Add(-48*time.Hour), trending[0].since)
	assert.Equal(t, TrendingMinDonations, trending[0].minDonations)

	ending := env.store.callsNamed("ending_soon")
	require.Len(t, ending, 1)
	assert.Equal(t, testNow, ending[0].since)
	assert.Equal(t, testNow.AddDate(0, 0, 7), ending[0].until)
}

func TestGetBulkAnalytics_BuildsOnlyMisses(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for id := int64(1); id <= 4; id++ {
		env.builder.add(id, 3)
	}
	ctx := context.Background()

	first, err := env.svc.GetBulkAnalytics(ctx, []int64{1, 2, 3, 2, 999})
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assert.NotContains(t, first, int64(999))
	assert.Equal(t, model.AnalyticsDetailSummary, first[1].Detail)

	second, err := env.svc.GetBulkAnalytics(ctx, []int64{2, 3, 4})
	require.NoError(t, err)
	assert.Len(t, second, 3)

	require.Len(t, env.builder.bulkCalls, 2)
	assert.Equal(t, []int64{1, 2, 3, 999}, env.builder.bulkCalls[0])
	assert.Equal(t, []int64{4}, env.builder.bulkCalls[1])

	assert.False(t, env.cached(t, cache.AnalyticsKey(1)), "summaries never occupy the full key")
	assert.True(t, env.cached(t, cache.AnalyticsSummaryKey(1)))

	require.NoError(t, env.svc.InvalidateCampaignCache(ctx, 2, 0))
	assert.False(t, env.cached(t, cache.AnalyticsSummaryKey(2)))
	assert.True(t, env.cached(t, cache.AnalyticsSummaryKey(3)))
}

func TestGetBulkAnalytics_Limits(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	out, err := env.svc.GetBulkAnalytics(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, env.builder.bulkCalls)

	ids := make([]int64, MaxBulkIDs+1)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	_, err = env.svc.GetBulkAnalytics(context.Background(), ids)
	require.ErrorIs(t, err, ErrTooManyIDs)
}

func TestWarmCacheForCampaigns_DefaultCandidates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.store.topIDs = []int64{1, 2, 3}
	env.builder.add(1, 0)
	env.builder.add(3, 0)
	env.builder.errs[2] = errors.New("statement timeout")

	report, err := env.svc.WarmCacheForCampaigns(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Warmed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, int64(2), report.Failures[0].CampaignID)
	assert.Equal(t, cache.AnalyticsKey(2), report.Failures[0].Key)

	calls := env.store.callsNamed("top_by_progress")
	require.Len(t, calls, 1)
	assert.Equal(t, 5, calls[0].limit)

	assert.True(t, env.cached(t, cache.AnalyticsKey(1)))
	assert.True(t, env.cached(t, cache.AnalyticsKey(3)))

	snap := env.rec.Snapshot()
	assert.Equal(t, uint64(2), snap.WarmResults[WarmStatusWarmed])
	assert.Equal(t, uint64(1), snap.WarmResults[WarmStatusFailed])
}

func TestWarmCacheForCampaigns_ExplicitIDs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.builder.add(8, 0)

	report, err := env.svc.WarmCacheForCampaigns(context.Background(), []int64{8, 8, 9})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Warmed)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Failures)
	assert.Empty(t, env.store.callsNamed("top_by_progress"))
}

func TestWarmCacheForCampaigns_CandidateError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.store.candidateErr = errors.New("connection reset")

	_, err := env.svc.WarmCacheForCampaigns(context.Background(), nil)
	require.Error(t, err)
}

func TestWarmPopularCampaignsCache(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.store.donatedIDs = []int64{4, 5}
	env.builder.add(4, 1)
	env.builder.add(5, 1)

	report, err := env.svc.WarmPopularCampaignsCache(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Attempted)
	assert.Equal(t, 4, report.Warmed)
	assert.Empty(t, report.Failures)

	donated := env.store.callsNamed("most_donated")
	require.Len(t, donated, 1)
	assert.Equal(t, testNow.Add(-TrendingWindow), donated[0].since)
	assert.Equal(t, TrendingMinDonations, donated[0].minDonations)

	assert.True(t, env.cached(t, cache.AnalyticsKey(4)))
	assert.True(t, env.cached(t, cache.ListKey(cache.ListPopular, DefaultListLimit)))
	assert.True(t, env.cached(t, cache.ListKey(cache.ListTrending, DefaultListLimit)))
}
