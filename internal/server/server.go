// Package server provides process lifecycle management for the API and
// worker binaries: signal handling and ordered graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a function that shuts down a component gracefully.
type ShutdownFunc func(ctx context.Context) error

// Options configures the HTTP server.
type Options struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps http.Server with graceful shutdown.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	hooks           hooks
}

// New creates a new Server instance.
func New(handler http.Handler, opts Options, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          logger.With("component", "server"),
	}
}

// OnShutdown registers a function to be called during graceful shutdown.
// Hooks run in reverse registration order after the HTTP server stops.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.hooks.add(name, fn)
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown requested", "cause", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("stopping HTTP server", "timeout", s.shutdownTimeout)
	s.httpServer.SetKeepAlivesEnabled(false)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		// Registered components still get their chance to stop.
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	return s.hooks.run(shutdownCtx, s.logger)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

type namedHook struct {
	name string
	fn   ShutdownFunc
}

// hooks is a LIFO list of shutdown functions.
type hooks struct {
	mu    sync.Mutex
	items []namedHook
}

func (h *hooks) add(name string, fn ShutdownFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, namedHook{name: name, fn: fn})
}

// run calls every hook, last registered first, and returns the first error.
func (h *hooks) run(ctx context.Context, logger *slog.Logger) error {
	h.mu.Lock()
	items := append([]namedHook(nil), h.items...)
	h.mu.Unlock()

	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		logger.Info("shutting down component", "name", item.name)
		if err := item.fn(ctx); err != nil {
			logger.Error("component shutdown error", "name", item.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
			continue
		}
		logger.Info("component stopped", "name", item.name)
	}

	if len(errs) > 0 {
		logger.Error("shutdown completed with errors", "error_count", len(errs))
		return errs[0]
	}
	logger.Info("stopped gracefully")
	return nil
}
