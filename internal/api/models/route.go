package models

import (
	"time"

	"github.com/urbanroute/urbanroute/internal/engine"
	"github.com/urbanroute/urbanroute/internal/itinerary"
)

// LatLon is a coordinate pair in request and response bodies.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ComputeRoutesRequest is the body of POST /v1/routes:compute.
type ComputeRoutesRequest struct {
	Origin      LatLon `json:"origin"`
	Destination LatLon `json:"destination"`

	// Profile selects the travel mode: foot, car or pt.
	Profile string `json:"profile"`

	// Locale for instruction text (optional).
	Locale string `json:"locale,omitempty"`

	// Departure anchors transit searches (optional, defaults to now).
	Departure *time.Time `json:"departure,omitempty"`

	// ArriveBy interprets Departure as the latest arrival instead.
	ArriveBy bool `json:"arriveBy,omitempty"`
}

// Validate checks the request and returns field errors for the caller.
func (r *ComputeRoutesRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Origin.Lat < -90 || r.Origin.Lat > 90 || r.Origin.Lon < -180 || r.Origin.Lon > 180 {
		errs = append(errs, FieldError{
			Field:   "origin",
			Message: "coordinates out of range",
			Code:    "out_of_range",
		})
	}
	if r.Destination.Lat < -90 || r.Destination.Lat > 90 || r.Destination.Lon < -180 || r.Destination.Lon > 180 {
		errs = append(errs, FieldError{
			Field:   "destination",
			Message: "coordinates out of range",
			Code:    "out_of_range",
		})
	}
	if !engine.Profile(r.Profile).Valid() {
		errs = append(errs, FieldError{
			Field:   "profile",
			Message: "must be one of: foot, car, pt",
			Code:    "invalid_value",
		})
	}

	return errs
}

// ComputeRoutesResponse is the body of a successful route computation.
type ComputeRoutesResponse struct {
	Itineraries []itinerary.Itinerary `json:"itineraries"`

	// Degraded is set when the itineraries are straight-line estimates.
	Degraded bool `json:"degraded"`

	// DegradedReason says why the planner degraded, when it did.
	DegradedReason string `json:"degradedReason,omitempty"`

	ComputedAt time.Time `json:"computedAt"`
}
