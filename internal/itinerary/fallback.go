package itinerary

import (
	"time"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

// walkingSpeed is the pace used to estimate straight-line walking time.
const walkingSpeed = 1.4 // m/s, roughly 5 km/h

// Fallback builds a degraded straight-line itinerary between two points. It
// is used when the routing engine cannot answer: a single synthetic walk
// leg over the great-circle distance at an average walking pace. The result
// is always marked degraded so callers can tell it apart from a real route.
func Fallback(origin, destination geo.Point) Itinerary {
	distance := geo.Haversine(origin, destination)
	duration := time.Duration(distance/walkingSpeed) * time.Second

	return Itinerary{
		Legs: []Leg{{
			Mode:           ModeWalk,
			DistanceMeters: distance,
			Duration:       duration,
			Geometry:       []geo.Point{origin, destination},
		}},
		DistanceMeters: distance,
		Duration:       duration,
		Degraded:       true,
		Source:         SourceStraightLine,
	}
}
