// Package engine manages the local routing engine: supervising its process
// lifecycle and querying it for routes over HTTP.
package engine

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

// Profile selects the routing mode the engine computes with.
type Profile string

// Supported routing profiles.
const (
	ProfileFoot    Profile = "foot"
	ProfileCar     Profile = "car"
	ProfileTransit Profile = "pt"
)

// Valid reports whether p is a profile the engine understands.
func (p Profile) Valid() bool {
	switch p {
	case ProfileFoot, ProfileCar, ProfileTransit:
		return true
	}
	return false
}

// Default transit query parameters.
const (
	DefaultMaxWalkPerLeg  = 1000
	DefaultLimitSolutions = 5
)

// TransitOptions tunes public-transport queries. Zero values fall back to
// the engine defaults at request-build time.
type TransitOptions struct {
	// EarliestDeparture anchors the search window.
	EarliestDeparture time.Time

	// ArriveBy interprets EarliestDeparture as the latest arrival instead.
	ArriveBy bool

	// MaxWalkPerLegMeters caps the walking distance of each access or
	// transfer leg (default 1000).
	MaxWalkPerLegMeters int

	// LimitSolutions caps the number of itineraries returned (default 5).
	LimitSolutions int
}

// RouteQuery describes one routing request.
type RouteQuery struct {
	Points  []geo.Point
	Profile Profile
	Locale  string
	Transit TransitOptions
}

// Validate checks the query before it is sent to the engine.
func (q RouteQuery) Validate() error {
	if len(q.Points) < 2 {
		return fmt.Errorf("route query needs at least 2 points, got %d", len(q.Points))
	}
	for i, p := range q.Points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	if !q.Profile.Valid() {
		return fmt.Errorf("unknown routing profile %q", q.Profile)
	}
	return nil
}

// Encode renders the query as URL parameters in the engine's wire format:
// repeated point=lat,lon pairs plus profile and instruction flags, with the
// pt.* family added for transit queries.
func (q RouteQuery) Encode() url.Values {
	values := url.Values{}
	for _, p := range q.Points {
		values.Add("point", fmt.Sprintf("%f,%f", p.Lat, p.Lon))
	}
	values.Set("profile", string(q.Profile))

	locale := q.Locale
	if locale == "" {
		locale = "es"
	}
	values.Set("locale", locale)
	values.Set("points_encoded", "true")
	values.Set("instructions", "true")
	values.Set("details", "street_name")

	if q.Profile == ProfileTransit {
		departure := q.Transit.EarliestDeparture
		if departure.IsZero() {
			departure = time.Now()
		}
		values.Set("pt.earliest_departure_time", departure.UTC().Format(time.RFC3339))
		if q.Transit.ArriveBy {
			values.Set("pt.arrive_by", "true")
		}

		maxWalk := q.Transit.MaxWalkPerLegMeters
		if maxWalk <= 0 {
			maxWalk = DefaultMaxWalkPerLeg
		}
		values.Set("pt.max_walk_distance_per_leg", strconv.Itoa(maxWalk))

		limit := q.Transit.LimitSolutions
		if limit <= 0 {
			limit = DefaultLimitSolutions
		}
		values.Set("pt.limit_solutions", strconv.Itoa(limit))
	}

	return values
}

// RouteResponse is the engine's answer to a route query. An empty Paths
// slice means the engine found no route; that is a valid outcome, not an
// error.
type RouteResponse struct {
	Paths []Path `json:"paths"`
}

// Path is one computed route alternative.
type Path struct {
	// DistanceMeters is the total path length.
	DistanceMeters float64 `json:"distance"`

	// TimeMillis is the total travel time in milliseconds.
	TimeMillis int64 `json:"time"`

	// Points is the encoded polyline of the full path geometry.
	Points string `json:"points"`

	// Instructions is the turn-by-turn guidance for street profiles.
	Instructions []Instruction `json:"instructions,omitempty"`

	// Legs breaks transit paths into walk and pt segments.
	Legs []Leg `json:"legs,omitempty"`
}

// Instruction is one turn-by-turn step.
type Instruction struct {
	DistanceMeters float64 `json:"distance"`
	Sign           int     `json:"sign"`
	Text           string  `json:"text"`
	StreetName     string  `json:"street_name"`
	TimeMillis     int64   `json:"time"`
}

// Leg segment types in transit paths.
const (
	LegTypeWalk    = "walk"
	LegTypeTransit = "pt"
)

// Leg is one segment of a transit path: either a walk between boarding
// points or a ride on a transit vehicle.
type Leg struct {
	Type           string        `json:"type"`
	DistanceMeters float64       `json:"distance"`
	DepartureTime  time.Time     `json:"departure_time"`
	ArrivalTime    time.Time     `json:"arrival_time"`
	Instructions   []Instruction `json:"instructions,omitempty"`

	// Transit leg fields.
	RouteID      string    `json:"route_id,omitempty"`
	TripID       string    `json:"trip_id,omitempty"`
	TripHeadsign string    `json:"trip_headsign,omitempty"`
	Stops        []LegStop `json:"stops,omitempty"`
}

// LegStop is one stop visited by a transit leg, in visit order. The first
// entry is the boarding stop and the last the alighting stop.
type LegStop struct {
	StopID        string     `json:"stop_id"`
	StopName      string     `json:"stop_name"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
}
