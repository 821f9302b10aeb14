package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanroute/urbanroute/internal/api"
	"github.com/urbanroute/urbanroute/internal/api/models"
	"github.com/urbanroute/urbanroute/internal/config"
	"github.com/urbanroute/urbanroute/internal/engine"
	"github.com/urbanroute/urbanroute/internal/gtfs"
	"github.com/urbanroute/urbanroute/internal/itinerary"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// testEngineServer serves a minimal routing engine: healthy, one foot path.
func testEngineServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paths":[{"distance":4500,"time":3240000,"points":""}]}`)) //nolint:errcheck
	}))
}

// testRouter wires a router against in-memory collaborators and a stub
// engine server.
func testRouter(t *testing.T, engineURL string, repo gtfs.Repository, scheduler *gtfs.Scheduler) http.Handler {
	t.Helper()

	client := engine.NewClient(engine.ClientConfig{
		BaseURL:    engineURL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})
	supervisor := engine.NewSupervisor(engine.SupervisorConfig{
		Engine: config.EngineConfig{
			ExecutableCandidates: []string{"/nonexistent/graphhopper.sh"},
			HealthAttempts:       1,
		},
		Client: client,
		Logger: zerolog.Nop(),
	})
	planner := itinerary.NewPlanner(itinerary.PlannerConfig{
		Supervisor: supervisor,
		Client:     client,
		Logger:     zerolog.Nop(),
	})

	return api.NewRouter(api.RouterConfig{
		Version:       "test",
		BuildTime:     "2026-01-01T00:00:00Z",
		Logger:        zerolog.New(io.Discard),
		Planner:       planner,
		Scheduler:     scheduler,
		Repository:    repo,
		FeedStaleness: 30 * 24 * time.Hour,
		DB:            stubPinger{},
		Supervisor:    supervisor,
	})
}

func computeBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(models.ComputeRoutesRequest{
		Origin:      models.LatLon{Lat: -33.4378, Lon: -70.6505},
		Destination: models.LatLon{Lat: -33.4211, Lon: -70.6063},
		Profile:     "foot",
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestHealthEndpoint(t *testing.T) {
	engineSrv := testEngineServer(t)
	defer engineSrv.Close()

	router := testRouter(t, engineSrv.URL, gtfs.NewInMemoryRepository(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestReadyEndpoint_DegradedEngineStillReady(t *testing.T) {
	// No engine listening at all.
	engineSrv := testEngineServer(t)
	engineSrv.Close()

	router := testRouter(t, engineSrv.URL, gtfs.NewInMemoryRepository(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code,
		"a down engine degrades routing but does not fail readiness")

	var ready models.Readiness
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, models.HealthStatusDegraded, ready.Status)
}

func TestComputeRoutes(t *testing.T) {
	engineSrv := testEngineServer(t)
	defer engineSrv.Close()

	router := testRouter(t, engineSrv.URL, gtfs.NewInMemoryRepository(), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:compute", computeBody(t))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ComputeRoutesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Itineraries, 1)
	assert.Greater(t, resp.Itineraries[0].DistanceMeters, 0.0)
}

func TestComputeRoutes_EngineDownDegrades(t *testing.T) {
	engineSrv := testEngineServer(t)
	engineSrv.Close()

	router := testRouter(t, engineSrv.URL, gtfs.NewInMemoryRepository(), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:compute", computeBody(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code,
		"an engine outage degrades the answer, it does not fail the request")

	var resp models.ComputeRoutesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Degraded)
	assert.Equal(t, itinerary.DegradeReasonEngineError, resp.DegradedReason)
}

func TestComputeRoutes_ValidationProblem(t *testing.T) {
	engineSrv := testEngineServer(t)
	defer engineSrv.Close()

	router := testRouter(t, engineSrv.URL, gtfs.NewInMemoryRepository(), nil)

	body, err := json.Marshal(models.ComputeRoutesRequest{
		Origin:      models.LatLon{Lat: 120, Lon: -70.65},
		Destination: models.LatLon{Lat: -33.42, Lon: -70.60},
		Profile:     "spaceship",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:compute", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.Len(t, problem.Errors, 2)
}

func TestFeedStatus_NoFeedYet(t *testing.T) {
	engineSrv := testEngineServer(t)
	defer engineSrv.Close()

	router := testRouter(t, engineSrv.URL, gtfs.NewInMemoryRepository(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/feed/status", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNearbyStops_RequiresCoordinates(t *testing.T) {
	engineSrv := testEngineServer(t)
	defer engineSrv.Close()

	router := testRouter(t, engineSrv.URL, gtfs.NewInMemoryRepository(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stops/nearby", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
