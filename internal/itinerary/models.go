// Package itinerary turns raw engine paths into presentable journeys and
// keeps route planning available, in degraded form, when the engine is not.
package itinerary

import (
	"time"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

// Leg travel modes.
const (
	ModeWalk    = "walk"
	ModeDrive   = "drive"
	ModeTransit = "transit"
)

// Itinerary sources.
const (
	SourceEngine       = "engine"
	SourceStraightLine = "straight-line"
)

// Degradation reasons. An engine failure and an engine that genuinely found
// no route are different situations and are reported as such.
const (
	DegradeReasonEngineError = "engine_error"
	DegradeReasonNoRoute     = "no_route"
)

// Itinerary is one complete journey option.
type Itinerary struct {
	Legs           []Leg         `json:"legs"`
	DistanceMeters float64       `json:"distance_meters"`
	Duration       time.Duration `json:"duration"`

	// Degraded marks itineraries produced without the routing engine.
	Degraded bool `json:"degraded"`

	// Source names where the itinerary came from.
	Source string `json:"source"`
}

// Leg is one segment of an itinerary.
type Leg struct {
	Mode           string        `json:"mode"`
	DistanceMeters float64       `json:"distance_meters"`
	Duration       time.Duration `json:"duration"`
	DepartureTime  time.Time     `json:"departure_time,omitzero"`
	ArrivalTime    time.Time     `json:"arrival_time,omitzero"`

	// Steps is turn-by-turn guidance for walk and drive legs.
	Steps []Step `json:"steps,omitempty"`

	// Transit is set for legs ridden on a transit vehicle.
	Transit *TransitDetail `json:"transit,omitempty"`

	// Geometry is the decoded leg shape.
	Geometry []geo.Point `json:"geometry,omitempty"`
}

// Step is one turn-by-turn instruction.
type Step struct {
	Text           string  `json:"text"`
	StreetName     string  `json:"street_name,omitempty"`
	DistanceMeters float64 `json:"distance_meters"`
	Sign           int     `json:"sign"`
}

// TransitDetail describes the ride portion of a transit leg.
type TransitDetail struct {
	RouteID           string     `json:"route_id"`
	TripID            string     `json:"trip_id,omitempty"`
	Headsign          string     `json:"headsign,omitempty"`
	BoardStop         StopCall   `json:"board_stop"`
	AlightStop        StopCall   `json:"alight_stop"`
	IntermediateStops int        `json:"intermediate_stops"`
	Stops             []StopCall `json:"stops,omitempty"`
}

// StopCall is one visit to a stop with its scheduled times.
type StopCall struct {
	StopID        string     `json:"stop_id"`
	StopName      string     `json:"stop_name"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
}
