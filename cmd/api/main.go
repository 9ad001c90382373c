// Package main is the entrypoint for the kindfund API server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/kindfund/kindfund/internal/bootstrap"
	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/discovery"
	"github.com/kindfund/kindfund/internal/events"
	"github.com/kindfund/kindfund/internal/filter"
	"github.com/kindfund/kindfund/internal/handler"
	"github.com/kindfund/kindfund/internal/repository"
	"github.com/kindfund/kindfund/internal/search"
	"github.com/kindfund/kindfund/internal/server"
	"github.com/kindfund/kindfund/internal/tasks"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := bootstrap.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat, "kindfund-api")

	if cfg.MigrateOnStart {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("failed to apply migrations", "error", bootstrap.SanitizeError(err, cfg.DatabaseURL))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	app, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	searchClient := search.New(search.Config{
		URL:     cfg.MeiliURL,
		APIKey:  cfg.MeiliAPIKey,
		Index:   cfg.MeiliIndex,
		Timeout: cfg.SearchTimeout,
	}, logger, app.Metrics)

	var searchCheck handler.HealthChecker
	if cfg.SearchEnabled {
		searchCheck = searchClient
	}

	discoverySvc := discovery.NewService(
		filter.NewTranslator(app.Campaigns, app.Clock),
		searchClient,
		app.Campaigns,
		app.Clock,
		discovery.Config{
			SearchEnabled:   cfg.SearchEnabled,
			OwnerFetchLimit: cfg.OwnerFetchLimit,
			IngestionLag:    cfg.SearchIngestionLag,
		},
		logger,
		app.Metrics,
	)

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL for task queue", "error", bootstrap.SanitizeError(err, cfg.RedisURL))
		os.Exit(1)
	}
	taskClient := asynq.NewClient(redisOpt)
	dispatcher := tasks.NewDispatcher(taskClient, cfg.WarmInterval, logger)
	publisher := events.NewPublisher(app.Redis.Client(), logger, app.Metrics)

	router := handler.NewRouter(handler.RouterConfig{
		Health:     handler.NewHealthHandler(app.Repo, app.Redis, searchCheck),
		Metrics:    handler.NewMetricsHandler(app.Metrics),
		Campaigns:  handler.NewCampaignHandler(discoverySvc, app.Service, cfg.OwnerHybridSearch, logger),
		Analytics:  handler.NewAnalyticsHandler(app.Service, logger),
		Admin:      handler.NewAdminHandler(app.Service, dispatcher, logger),
		Events:     handler.NewEventsHandler(publisher, logger),
		AdminToken: cfg.AdminToken,
		Logger:     logger,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Hooks run last-in first-out: the task client closes before the pools.
	srv.OnShutdown("connections", app.Close)
	srv.OnShutdown("task-client", func(context.Context) error { return taskClient.Close() })

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"search_enabled", cfg.SearchEnabled,
		"cache_driver", cfg.CacheDriver,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
