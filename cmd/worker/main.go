// Package main is the entrypoint for the kindfund background worker. It runs
// the cache-warming task server, the warm scheduler and the donation event
// consumer that invalidates campaign caches.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kindfund/kindfund/internal/bootstrap"
	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/events"
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

	logger := bootstrap.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat, "kindfund-worker")

	app, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL for task queue", "error", bootstrap.SanitizeError(err, cfg.RedisURL))
		os.Exit(1)
	}

	runner := server.NewRunner(cfg.ShutdownTimeout, logger)
	runner.Add("connections", blockUntilDone, app.Close)

	taskServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{tasks.Queue: 1},
		Logger:          tasks.NewLogger(logger),
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	mux := asynq.NewServeMux()
	tasks.NewHandlers(app.Service, logger).Register(mux)
	runner.Add("task-server", func(ctx context.Context) error {
		if err := taskServer.Start(mux); err != nil {
			return fmt.Errorf("start task server: %w", err)
		}
		<-ctx.Done()
		return nil
	}, func(context.Context) error {
		taskServer.Shutdown()
		return nil
	})

	scheduler, err := newScheduler(redisOpt, cfg.WarmInterval, logger)
	if err != nil {
		logger.Error("failed to configure scheduler", "error", err)
		os.Exit(1)
	}
	runner.Add("warm-scheduler", func(ctx context.Context) error {
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		<-ctx.Done()
		return nil
	}, func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})

	consumer := events.NewWorker(app.Redis.Client(), app.Service, logger, events.NewConsumerID(), app.Metrics)
	runner.Add("donation-events", consumer.Run, consumer.Shutdown)

	logger.Info("starting worker",
		"concurrency", cfg.WorkerConcurrency,
		"warm_interval", cfg.WarmInterval,
		"env", cfg.AppEnv,
	)

	if err := runner.Run(ctx); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
}

// newScheduler registers the periodic warm-popular run. The task is unique
// for one interval so a slow run is never stacked.
func newScheduler(redisOpt asynq.RedisConnOpt, interval time.Duration, logger *slog.Logger) (*asynq.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("WARM_INTERVAL must be positive, got %s", interval)
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   tasks.NewLogger(logger),
	})
	entryID, err := scheduler.Register("@every "+interval.String(), tasks.NewWarmPopularTask(interval))
	if err != nil {
		return nil, fmt.Errorf("register warm popular: %w", err)
	}
	logger.Info("warm popular scheduled", "entry_id", entryID, "interval", interval)
	return scheduler, nil
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
