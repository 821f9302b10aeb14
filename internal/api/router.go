// Package api provides the HTTP API for UrbanRoute.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/urbanroute/urbanroute/internal/api/handler"
	"github.com/urbanroute/urbanroute/internal/api/middleware"
	"github.com/urbanroute/urbanroute/internal/engine"
	"github.com/urbanroute/urbanroute/internal/gtfs"
	"github.com/urbanroute/urbanroute/internal/itinerary"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version       string
	BuildTime     string
	Logger        zerolog.Logger
	ServiceName   string
	Metrics       *middleware.Metrics
	Planner       *itinerary.Planner
	Scheduler     *gtfs.Scheduler
	Repository    gtfs.Repository
	FeedStaleness time.Duration
	DB            handler.Pinger
	Supervisor    *engine.Supervisor
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "urbanroute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Supervisor)
	routeHandler := handler.NewRouteHandler(cfg.Planner)
	stopsHandler := handler.NewStopsHandler(cfg.Repository)
	feedHandler := handler.NewFeedHandler(cfg.Scheduler, cfg.Repository, cfg.FeedStaleness)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (unlimited, used by orchestration probes)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Route computation - expensive, strict rate limiting
		r.With(expensiveRateLimit).Post("/routes:compute", routeHandler.ComputeRoutes)

		// Stop lookups
		r.With(standardRateLimit).Get("/stops/nearby", stopsHandler.NearbyStops)

		// Feed management
		r.Route("/feed", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Post("/sync", feedHandler.SyncFeed)
			r.Get("/status", feedHandler.FeedStatus)
		})
	})

	return r
}
