package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kindfund/kindfund/internal/middleware"
)

// RouterConfig carries the handlers and settings mounted by NewRouter.
// Nil handlers leave their routes unmounted.
type RouterConfig struct {
	Health    *HealthHandler
	Metrics   *MetricsHandler
	Campaigns *CampaignHandler
	Analytics *AnalyticsHandler
	Admin     *AdminHandler
	Events    *EventsHandler

	// AdminToken guards /admin and /internal routes. Empty disables the check.
	AdminToken string
	Logger     *slog.Logger
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Actor)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Healthz)
		r.Get("/readyz", cfg.Health.Readyz)
	}
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if c := cfg.Campaigns; c != nil {
			r.Route("/campaigns", func(r chi.Router) {
				r.Get("/", c.Discover)
				r.Get("/popular", c.Popular)
				r.Get("/trending", c.Trending)
				r.Get("/ending-soon", c.EndingSoon)
				r.Get("/recent", c.Recent)
				if cfg.Analytics != nil {
					r.Get("/{id}/analytics", cfg.Analytics.Get)
				}
			})
			r.With(middleware.RequireActor).Get("/me/campaigns", c.DiscoverMine)
		}

		if cfg.Analytics != nil {
			r.Post("/analytics/bulk", cfg.Analytics.Bulk)
		}

		if a := cfg.Admin; a != nil {
			r.Route("/admin/cache", func(r chi.Router) {
				r.Use(middleware.RequireAdminToken(cfg.AdminToken))
				r.Post("/campaigns/{id}/invalidate", a.InvalidateCampaign)
				r.Post("/flush", a.Flush)
				r.Get("/has", a.Has)
				r.Post("/warm/popular", a.WarmPopular)
				r.Post("/warm/campaigns", a.WarmCampaigns)
			})
		}

		if e := cfg.Events; e != nil {
			r.With(middleware.RequireAdminToken(cfg.AdminToken)).Post("/internal/donation-events", e.Publish)
		}
	})

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
