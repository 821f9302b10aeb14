// Package main provides the entrypoint for the UrbanRoute API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanroute/urbanroute/internal/api"
	"github.com/urbanroute/urbanroute/internal/api/middleware"
	"github.com/urbanroute/urbanroute/internal/config"
	"github.com/urbanroute/urbanroute/internal/database"
	"github.com/urbanroute/urbanroute/internal/engine"
	"github.com/urbanroute/urbanroute/internal/gtfs"
	"github.com/urbanroute/urbanroute/internal/itinerary"
	"github.com/urbanroute/urbanroute/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "urbanroute-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting UrbanRoute API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database and ensure the transit schema exists
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database schema")
	}
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Transit feed ingestion
	feedConfig := config.FeedConfigFromEnv()
	repo := gtfs.NewPostgresRepository(pool)
	loader := gtfs.NewLoader(gtfs.LoaderConfig{
		Feed:       feedConfig,
		Repository: repo,
		Logger:     log,
	})
	scheduler := gtfs.NewScheduler(gtfs.SchedulerConfig{
		Loader:             loader,
		Repository:         repo,
		StalenessThreshold: feedConfig.StalenessThreshold,
		CheckInterval:      feedConfig.CheckInterval,
		Logger:             log,
	})

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	if feedConfig.AutoSync {
		go scheduler.Run(schedulerCtx)
	} else {
		log.Info().Msg("feed auto-sync disabled, use POST /v1/feed/sync")
	}

	// Routing engine
	engineConfig := config.EngineConfigFromEnv()
	engineClient := engine.NewClient(engine.ClientConfig{
		BaseURL:             engineConfig.BaseURL,
		RouteTimeout:        engineConfig.RouteTimeout,
		TransitRouteTimeout: engineConfig.TransitRouteTimeout,
		Logger:              log,
	})
	supervisor := engine.NewSupervisor(engine.SupervisorConfig{
		Engine: engineConfig,
		Client: engineClient,
		Logger: log,
	})
	go func() {
		if err := supervisor.Start(schedulerCtx); err != nil {
			log.Error().Err(err).Msg("routing engine start failed, route requests will degrade")
		}
	}()
	defer func() {
		if err := supervisor.Stop(); err != nil {
			log.Error().Err(err).Msg("routing engine stop failed")
		}
	}()

	planner := itinerary.NewPlanner(itinerary.PlannerConfig{
		Supervisor: supervisor,
		Client:     engineClient,
		Logger:     log,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		Metrics:       metrics,
		Planner:       planner,
		Scheduler:     scheduler,
		Repository:    repo,
		FeedStaleness: feedConfig.StalenessThreshold,
		DB:            pool,
		Supervisor:    supervisor,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
