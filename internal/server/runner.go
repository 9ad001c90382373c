package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner supervises long-running background components that have no HTTP
// listener of their own, such as queue consumers and schedulers.
type Runner struct {
	shutdownTimeout time.Duration
	logger          *slog.Logger
	components      []component
	hooks           hooks
}

type component struct {
	name string
	run  func(ctx context.Context) error
}

// NewRunner creates a Runner.
func NewRunner(shutdownTimeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With("component", "server.runner"),
	}
}

// Add registers a component. run must block until ctx is cancelled or the
// component fails. stop, when non-nil, is called during shutdown in reverse
// registration order.
func (r *Runner) Add(name string, run func(ctx context.Context) error, stop ShutdownFunc) {
	r.components = append(r.components, component{name: name, run: run})
	if stop != nil {
		r.hooks.add(name, stop)
	}
}

// Run starts every component and blocks until ctx is cancelled, a signal
// arrives, or a component returns an error. All components are then shut
// down and the first failure is returned.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range r.components {
		c := c
		g.Go(func() error {
			r.logger.Info("component starting", "name", c.name)
			if err := c.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			return nil
		})
	}

	// Wait cancels gctx once every component has returned.
	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()

	<-gctx.Done()
	r.logger.Info("shutdown requested", "cause", context.Cause(gctx))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	hookErr := r.hooks.run(shutdownCtx, r.logger)

	select {
	case err := <-waitErr:
		if err != nil {
			return err
		}
		return hookErr
	case <-shutdownCtx.Done():
		return fmt.Errorf("components did not stop within %s", r.shutdownTimeout)
	}
}
