package itinerary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanroute/urbanroute/internal/config"
	"github.com/urbanroute/urbanroute/internal/engine"
	"github.com/urbanroute/urbanroute/pkg/geo"
)

func newTestPlanner(baseURL string) *Planner {
	client := engine.NewClient(engine.ClientConfig{
		BaseURL:    baseURL,
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
	return NewPlanner(PlannerConfig{
		Supervisor: supervisor,
		Client:     client,
		Logger:     zerolog.Nop(),
	})
}

func planRequest() PlanRequest {
	return PlanRequest{
		Origin:      geo.Point{Lat: -33.4378, Lon: -70.6505},
		Destination: geo.Point{Lat: -33.4211, Lon: -70.6063},
		Profile:     engine.ProfileFoot,
	}
}

func TestPlan_EngineRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paths":[{"distance":4800,"time":3300000,"points":""}]}`)) //nolint:errcheck
	}))
	defer server.Close()

	result, err := newTestPlanner(server.URL).Plan(context.Background(), planRequest())
	require.NoError(t, err)

	assert.False(t, result.Degraded)
	assert.Empty(t, result.DegradedReason)
	require.Len(t, result.Itineraries, 1)
	assert.False(t, result.Itineraries[0].Degraded, "engine routes are never marked degraded")
	assert.Equal(t, SourceEngine, result.Itineraries[0].Source)
}

func TestPlan_EngineFailureDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result, err := newTestPlanner(server.URL).Plan(context.Background(), planRequest())
	require.NoError(t, err, "engine failure degrades rather than failing the request")

	assert.True(t, result.Degraded)
	assert.Equal(t, DegradeReasonEngineError, result.DegradedReason)
	require.Len(t, result.Itineraries, 1)
	assert.True(t, result.Itineraries[0].Degraded)
	assert.Equal(t, SourceStraightLine, result.Itineraries[0].Source)
}

func TestPlan_NoRouteDegradesWithDistinctReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paths":[]}`)) //nolint:errcheck
	}))
	defer server.Close()

	result, err := newTestPlanner(server.URL).Plan(context.Background(), planRequest())
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, DegradeReasonNoRoute, result.DegradedReason,
		"an empty engine answer is not an engine failure")
	require.Len(t, result.Itineraries, 1)
	assert.True(t, result.Itineraries[0].Degraded)
}

func TestPlan_InvalidRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid requests must not reach the engine")
	}))
	defer server.Close()

	req := planRequest()
	req.Profile = "teleport"

	_, err := newTestPlanner(server.URL).Plan(context.Background(), req)
	assert.Error(t, err)
}
