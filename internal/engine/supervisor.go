package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/urbanroute/urbanroute/internal/config"
)

// State is the supervisor's view of the engine process.
type State string

// Supervisor states. The engine moves NotStarted -> Starting ->
// Healthy or Failed, and from Healthy or Failed to Stopped.
const (
	StateNotStarted State = "not_started"
	StateStarting   State = "starting"
	StateHealthy    State = "healthy"
	StateFailed     State = "failed"
	StateStopped    State = "stopped"
)

// Default startup health poll settings.
const (
	DefaultHealthAttempts = 300
	DefaultHealthInterval = time.Second
)

// SupervisorConfig holds configuration for the engine supervisor.
type SupervisorConfig struct {
	// Engine carries executable candidates, provisioning paths and the
	// health poll budget.
	Engine config.EngineConfig

	// Client probes the engine's health endpoint.
	Client *Client

	// Launcher spawns the process (optional, defaults to the per-OS
	// implementation).
	Launcher ProcessLauncher

	// Logger for supervisor operations.
	Logger zerolog.Logger
}

// Supervisor owns the engine process lifecycle: it locates the executable,
// validates that the engine has been provisioned, spawns it, and polls its
// health endpoint until the engine serves traffic.
type Supervisor struct {
	engine   config.EngineConfig
	client   *Client
	launcher ProcessLauncher
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
	pid   int
}

// NewSupervisor creates an engine supervisor.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	launcher := cfg.Launcher
	if launcher == nil {
		launcher = newOSLauncher()
	}
	if cfg.Engine.HealthAttempts <= 0 {
		cfg.Engine.HealthAttempts = DefaultHealthAttempts
	}
	if cfg.Engine.HealthInterval <= 0 {
		cfg.Engine.HealthInterval = DefaultHealthInterval
	}

	return &Supervisor{
		engine:   cfg.Engine,
		client:   cfg.Client,
		launcher: launcher,
		logger:   cfg.Logger,
		state:    StateNotStarted,
	}
}

// State returns the supervisor's current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start brings the engine up. It is idempotent: when the engine is already
// healthy or another call is mid-start, Start returns nil without spawning a
// second process. A spawn whose health poll budget runs out is reported with
// a warning but not treated as fatal; the engine may still finish loading
// its graph, so the state stays Starting and Start returns nil.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateHealthy:
		s.mu.Unlock()
		return nil
	case StateStarting:
		// Another caller is mid-start; exactly one process is spawned.
		s.mu.Unlock()
		return nil
	case StateStopped:
		s.mu.Unlock()
		return ErrEngineStopped
	}

	// An engine already serving (started outside this process) needs no
	// spawn at all.
	if err := s.client.Health(ctx); err == nil {
		s.state = StateHealthy
		s.mu.Unlock()
		s.logger.Info().Msg("routing engine already running")
		return nil
	}

	executable, err := s.locateExecutable()
	if err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		return err
	}

	if err := s.validateProvisioning(); err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		return err
	}

	pid, err := s.launcher.Launch(LaunchSpec{
		Path: executable,
		Dir:  filepath.Dir(executable),
	})
	if err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		return fmt.Errorf("spawning routing engine: %w", err)
	}

	s.pid = pid
	s.state = StateStarting
	s.mu.Unlock()

	s.logger.Info().
		Int("pid", pid).
		Str("executable", executable).
		Msg("routing engine spawned, waiting for health")

	return s.awaitHealthy(ctx)
}

// awaitHealthy polls the health endpoint at a constant interval until it
// answers or the attempt budget runs out. The lock is not held while
// polling so concurrent callers can observe the in-flight start.
func (s *Supervisor) awaitHealthy(ctx context.Context) error {
	attempts := uint64(s.engine.HealthAttempts)

	poll := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.engine.HealthInterval), attempts-1),
		ctx,
	)

	started := time.Now()
	err := backoff.Retry(func() error {
		return s.client.Health(ctx)
	}, poll)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The graph may simply need longer than the budget allows.
		s.logger.Warn().
			Int("attempts", s.engine.HealthAttempts).
			Dur("waited", time.Since(started)).
			Msg("routing engine did not become healthy within the poll budget; it may still be loading")
		return nil
	}

	s.mu.Lock()
	if s.state == StateStarting {
		s.state = StateHealthy
	}
	s.mu.Unlock()

	s.logger.Info().
		Dur("startup", time.Since(started)).
		Msg("routing engine healthy")
	return nil
}

// Stop terminates the engine process. Only the PID recorded at spawn time
// is touched; an engine started outside this supervisor is left alone.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pid == 0 {
		s.state = StateStopped
		return nil
	}

	err := s.launcher.Terminate(s.pid)
	if err != nil {
		s.logger.Error().Err(err).Int("pid", s.pid).Msg("terminating routing engine failed")
	} else {
		s.logger.Info().Int("pid", s.pid).Msg("routing engine stopped")
	}

	s.pid = 0
	s.state = StateStopped
	return err
}

// HealthCheck probes the engine once, synchronously.
func (s *Supervisor) HealthCheck(ctx context.Context) error {
	return s.client.Health(ctx)
}

// locateExecutable walks the candidate paths in order and returns the first
// that exists. The error names every searched location.
func (s *Supervisor) locateExecutable() (string, error) {
	for _, candidate := range s.engine.ExecutableCandidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w; searched: %s",
		ErrExecutableNotFound, strings.Join(s.engine.ExecutableCandidates, ", "))
}

// validateProvisioning verifies the engine's config file and graph
// directory exist before any process is spawned.
func (s *Supervisor) validateProvisioning() error {
	if _, err := os.Stat(s.engine.ConfigPath); err != nil {
		return fmt.Errorf("%w: config file %s is missing, run setup first",
			ErrNotProvisioned, s.engine.ConfigPath)
	}
	info, err := os.Stat(s.engine.GraphDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: graph directory %s is missing, run setup first",
			ErrNotProvisioned, s.engine.GraphDir)
	}
	return nil
}
