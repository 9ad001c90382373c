package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kindfund/kindfund/internal/analytics"
	"github.com/kindfund/kindfund/internal/cache"
	"github.com/kindfund/kindfund/internal/clock"
	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/repository"
	"github.com/kindfund/kindfund/internal/service"
)

// App holds the connections and core services shared by the API and the
// worker.
type App struct {
	Repo      *repository.Repository
	Campaigns *repository.CampaignRepository
	Redis     *cache.RedisStore
	Cache     *cache.Layer
	Service   *service.CampaignService
	Metrics   *metrics.InMemoryRecorder
	Clock     clock.Clock
}

// Open connects to PostgreSQL and Redis and builds the campaign service.
// Connection errors are returned with credentials redacted.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	repo, err := repository.New(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		return nil, fmt.Errorf("connect to database %s: %s", RedactURL(cfg.DatabaseURL), SanitizeError(err, cfg.DatabaseURL))
	}
	logger.Info("connected to database")

	redisStore, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("connect to redis %s: %s", RedactURL(cfg.RedisURL), SanitizeError(err, cfg.RedisURL))
	}
	logger.Info("connected to Redis")

	clk := clock.System()
	recorder := metrics.NewInMemory()

	var store cache.Store = redisStore
	if cfg.CacheDriver == config.CacheDriverMemory {
		store = cache.NewMemory(clk)
		logger.Warn("using in-process cache; entries are not shared between instances")
	}
	layer := cache.NewLayer(store, cfg.CacheNamespace, cfg.CacheVersion, recorder, logger)

	campaigns := repository.NewCampaignRepository(repo)
	builder := analytics.NewBuilder(repository.NewAnalyticsStore(repo), clk, logger, recorder)
	svc := service.NewCampaignService(campaigns, builder, layer, clk, service.Config{
		AnalyticsTTL: cfg.AnalyticsTTL,
		ListTTL:      cfg.ListTTL,
		WarmLimit:    cfg.WarmLimit,
	}, logger, recorder)

	return &App{
		Repo:      repo,
		Campaigns: campaigns,
		Redis:     redisStore,
		Cache:     layer,
		Service:   svc,
		Metrics:   recorder,
		Clock:     clk,
	}, nil
}

// Close releases the Redis client and the database pool.
func (a *App) Close(context.Context) error {
	err := a.Redis.Close()
	a.Repo.Close()
	return err
}
