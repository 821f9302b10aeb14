// Package main provides the standalone feed sync worker. It runs the
// staleness-driven scheduler without serving the API, for deployments that
// separate ingestion from request traffic.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanroute/urbanroute/internal/config"
	"github.com/urbanroute/urbanroute/internal/database"
	"github.com/urbanroute/urbanroute/internal/gtfs"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "urbanroute-worker").
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting UrbanRoute feed worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8081"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database schema")
	}

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

	go scheduler.Run(ctx)

	// Health endpoint for orchestration probes.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q,"syncing":%t}`, Version, scheduler.Syncing())
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
