// Package config holds environment-driven configuration for the feed
// ingestion pipeline and the routing engine.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FeedConfig configures the transit feed ingestion pipeline.
type FeedConfig struct {
	// PrimaryURL is the feed archive source.
	PrimaryURL string

	// FallbackURL is attempted when the primary fails. Optional.
	FallbackURL string

	// AutoSync enables the background staleness-driven scheduler.
	AutoSync bool

	// StalenessThreshold is the maximum age a committed feed may reach
	// before a refresh is triggered.
	StalenessThreshold time.Duration

	// CheckInterval is how often the scheduler re-evaluates staleness.
	CheckInterval time.Duration

	// SyncDeadline bounds one whole sync, download included.
	SyncDeadline time.Duration
}

// FeedConfigFromEnv creates a FeedConfig from environment variables.
func FeedConfigFromEnv() FeedConfig {
	staleness := durationEnv("FEED_STALENESS_THRESHOLD", 30*24*time.Hour)

	return FeedConfig{
		PrimaryURL:         getEnvOrDefault("FEED_URL", ""),
		FallbackURL:        getEnvOrDefault("FEED_FALLBACK_URL", ""),
		AutoSync:           getEnvOrDefault("FEED_AUTO_SYNC", "true") == "true",
		StalenessThreshold: staleness,
		CheckInterval:      durationEnv("FEED_CHECK_INTERVAL", staleness),
		SyncDeadline:       durationEnv("FEED_SYNC_DEADLINE", 30*time.Minute),
	}
}

// EngineConfig configures the external routing engine: where its process
// lives on disk and how to reach it over HTTP.
type EngineConfig struct {
	// BaseURL is the engine's HTTP address.
	BaseURL string

	// ExecutableCandidates is the ordered list of filesystem locations
	// searched for the engine executable.
	ExecutableCandidates []string

	// ConfigPath is the engine configuration file, required before launch.
	ConfigPath string

	// GraphDir is the prebuilt graph/index directory, required before launch.
	GraphDir string

	// HealthAttempts bounds the startup health poll. At one probe per
	// second the default allows five minutes for graph loading.
	HealthAttempts int

	// HealthInterval is the pause between startup health probes.
	HealthInterval time.Duration

	// RouteTimeout bounds pedestrian/vehicle route queries.
	RouteTimeout time.Duration

	// TransitRouteTimeout bounds public-transit route queries, which the
	// engine answers considerably slower.
	TransitRouteTimeout time.Duration
}

// EngineConfigFromEnv creates an EngineConfig from environment variables.
func EngineConfigFromEnv() EngineConfig {
	home, _ := os.UserHomeDir()

	candidates := splitList(os.Getenv("ENGINE_EXECUTABLE_PATHS"))
	if len(candidates) == 0 {
		candidates = []string{
			filepath.Join("engine", "graphhopper.sh"),
			filepath.Join(home, "graphhopper", "graphhopper.sh"),
			filepath.Join("/opt", "graphhopper", "graphhopper.sh"),
		}
	}

	return EngineConfig{
		BaseURL:              getEnvOrDefault("ENGINE_BASE_URL", "http://127.0.0.1:8989"),
		ExecutableCandidates: candidates,
		ConfigPath:           getEnvOrDefault("ENGINE_CONFIG_PATH", filepath.Join("engine", "config.yml")),
		GraphDir:             getEnvOrDefault("ENGINE_GRAPH_DIR", filepath.Join("engine", "graph-cache")),
		HealthAttempts:       intEnv("ENGINE_HEALTH_ATTEMPTS", 300),
		HealthInterval:       durationEnv("ENGINE_HEALTH_INTERVAL", time.Second),
		RouteTimeout:         durationEnv("ENGINE_ROUTE_TIMEOUT", 10*time.Second),
		TransitRouteTimeout:  durationEnv("ENGINE_PT_ROUTE_TIMEOUT", 30*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, string(os.PathListSeparator))
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
