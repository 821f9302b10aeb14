package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

func TestFallback(t *testing.T) {
	origin := geo.Point{Lat: -33.4378, Lon: -70.6505}
	destination := geo.Point{Lat: -33.4211, Lon: -70.6063}

	it := Fallback(origin, destination)

	assert.True(t, it.Degraded, "fallback itineraries are always degraded")
	assert.Equal(t, SourceStraightLine, it.Source)

	// Plaza de Armas to Los Leones is a bit over 4 km as the crow flies.
	assert.InDelta(t, 4500, it.DistanceMeters, 500)
	assert.Greater(t, it.Duration.Minutes(), 40.0)

	require.Len(t, it.Legs, 1)
	leg := it.Legs[0]
	assert.Equal(t, ModeWalk, leg.Mode)
	assert.Equal(t, []geo.Point{origin, destination}, leg.Geometry)
	assert.Empty(t, leg.Steps, "a straight line has no turn-by-turn guidance")
}

func TestFallback_SamePoint(t *testing.T) {
	p := geo.Point{Lat: -33.45, Lon: -70.66}
	it := Fallback(p, p)

	assert.True(t, it.Degraded)
	assert.Zero(t, it.DistanceMeters)
	assert.Zero(t, it.Duration)
}
