package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanroute/urbanroute/internal/config"
)

// fakeLauncher records spawns and terminations instead of touching the OS.
type fakeLauncher struct {
	mu         sync.Mutex
	launches   int
	terminated []int
	launchErr  error
	onLaunch   func()
}

func (f *fakeLauncher) Launch(spec LaunchSpec) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launchErr != nil {
		return 0, f.launchErr
	}
	f.launches++
	if f.onLaunch != nil {
		f.onLaunch()
	}
	return 4242, nil
}

func (f *fakeLauncher) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *fakeLauncher) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.launches
}

// provisionedEngine lays out a fake executable, config file and graph
// directory under a temp dir.
func provisionedEngine(t *testing.T) config.EngineConfig {
	t.Helper()
	dir := t.TempDir()

	executable := filepath.Join(dir, "graphhopper.sh")
	require.NoError(t, os.WriteFile(executable, []byte("#!/bin/sh\n"), 0o755))
	configPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("graph.location: graph-cache\n"), 0o644))
	graphDir := filepath.Join(dir, "graph-cache")
	require.NoError(t, os.Mkdir(graphDir, 0o755))

	return config.EngineConfig{
		ExecutableCandidates: []string{filepath.Join(dir, "missing.sh"), executable},
		ConfigPath:           configPath,
		GraphDir:             graphDir,
		HealthAttempts:       3,
		HealthInterval:       5 * time.Millisecond,
	}
}

// healthSequence serves the health endpoint, failing until the given number
// of probes have been made.
func healthSequence(t *testing.T, failuresBeforeHealthy int) (*httptest.Server, *int) {
	t.Helper()
	probes := new(int)
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*probes++
		n := *probes
		mu.Unlock()
		if n <= failuresBeforeHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	return server, probes
}

func newTestSupervisor(engineCfg config.EngineConfig, baseURL string, launcher ProcessLauncher) *Supervisor {
	return NewSupervisor(SupervisorConfig{
		Engine:   engineCfg,
		Client:   NewClient(ClientConfig{BaseURL: baseURL, HTTPClient: http.DefaultClient}),
		Launcher: launcher,
		Logger:   zerolog.Nop(),
	})
}

func TestStart_SpawnsAndBecomesHealthy(t *testing.T) {
	// First probe is the pre-spawn check, then one failure, then healthy.
	server, _ := healthSequence(t, 2)
	defer server.Close()

	launcher := &fakeLauncher{}
	sup := newTestSupervisor(provisionedEngine(t), server.URL, launcher)

	require.NoError(t, sup.Start(context.Background()))
	assert.Equal(t, StateHealthy, sup.State())
	assert.Equal(t, 1, launcher.launchCount())
}

func TestStart_ConcurrentCallersSpawnOnce(t *testing.T) {
	server, _ := healthSequence(t, 4)
	defer server.Close()

	launcher := &fakeLauncher{}
	sup := newTestSupervisor(provisionedEngine(t), server.URL, launcher)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sup.Start(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, launcher.launchCount())
}

func TestStart_AlreadyRunningEngineIsAdopted(t *testing.T) {
	server, _ := healthSequence(t, 0)
	defer server.Close()

	launcher := &fakeLauncher{}
	sup := newTestSupervisor(provisionedEngine(t), server.URL, launcher)

	require.NoError(t, sup.Start(context.Background()))
	assert.Equal(t, StateHealthy, sup.State())
	assert.Zero(t, launcher.launchCount(), "a serving engine needs no spawn")
}

func TestStart_ExecutableNotFoundListsSearchedPaths(t *testing.T) {
	server, _ := healthSequence(t, 1000)
	defer server.Close()

	cfg := provisionedEngine(t)
	cfg.ExecutableCandidates = []string{"/nonexistent/a.sh", "/nonexistent/b.sh"}

	sup := newTestSupervisor(cfg, server.URL, &fakeLauncher{})
	err := sup.Start(context.Background())

	require.ErrorIs(t, err, ErrExecutableNotFound)
	assert.Contains(t, err.Error(), "/nonexistent/a.sh")
	assert.Contains(t, err.Error(), "/nonexistent/b.sh")
	assert.Equal(t, StateFailed, sup.State())
}

func TestStart_MissingGraphDirFailsBeforeSpawn(t *testing.T) {
	server, _ := healthSequence(t, 1000)
	defer server.Close()

	cfg := provisionedEngine(t)
	require.NoError(t, os.Remove(cfg.GraphDir))

	launcher := &fakeLauncher{}
	sup := newTestSupervisor(cfg, server.URL, launcher)
	err := sup.Start(context.Background())

	require.ErrorIs(t, err, ErrNotProvisioned)
	assert.Contains(t, err.Error(), "run setup first")
	assert.Zero(t, launcher.launchCount())
}

func TestStart_PollBudgetExhaustionIsNotFatal(t *testing.T) {
	server, _ := healthSequence(t, 1000)
	defer server.Close()

	launcher := &fakeLauncher{}
	sup := newTestSupervisor(provisionedEngine(t), server.URL, launcher)

	err := sup.Start(context.Background())

	assert.NoError(t, err, "exhausted poll budget must not fail the start")
	assert.Equal(t, StateStarting, sup.State())
	assert.Equal(t, 1, launcher.launchCount())
}

func TestStop_TerminatesOnlyRecordedPID(t *testing.T) {
	server, _ := healthSequence(t, 1)
	defer server.Close()

	launcher := &fakeLauncher{}
	sup := newTestSupervisor(provisionedEngine(t), server.URL, launcher)

	require.NoError(t, sup.Start(context.Background()))
	require.NoError(t, sup.Stop())

	assert.Equal(t, []int{4242}, launcher.terminated)
	assert.Equal(t, StateStopped, sup.State())
}

func TestStop_WithoutSpawnKillsNothing(t *testing.T) {
	server, _ := healthSequence(t, 0)
	defer server.Close()

	launcher := &fakeLauncher{}
	sup := newTestSupervisor(provisionedEngine(t), server.URL, launcher)

	// Adopted engine: healthy without a spawn.
	require.NoError(t, sup.Start(context.Background()))
	require.NoError(t, sup.Stop())

	assert.Empty(t, launcher.terminated, "no recorded PID means nothing to kill")
	assert.Equal(t, StateStopped, sup.State())
}

func TestStart_AfterStopIsRejected(t *testing.T) {
	server, _ := healthSequence(t, 0)
	defer server.Close()

	launcher := &fakeLauncher{}
	sup := newTestSupervisor(provisionedEngine(t), server.URL, launcher)

	require.NoError(t, sup.Start(context.Background()))
	require.NoError(t, sup.Stop())

	require.ErrorIs(t, sup.Start(context.Background()), ErrEngineStopped)
}

func TestStart_SpawnFailure(t *testing.T) {
	server, _ := healthSequence(t, 1000)
	defer server.Close()

	launcher := &fakeLauncher{launchErr: errors.New("fork failed")}
	sup := newTestSupervisor(provisionedEngine(t), server.URL, launcher)

	err := sup.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, sup.State())
}
