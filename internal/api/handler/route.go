// Package handler provides HTTP handlers for the UrbanRoute API.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/urbanroute/urbanroute/internal/api/models"
	"github.com/urbanroute/urbanroute/internal/api/response"
	"github.com/urbanroute/urbanroute/internal/engine"
	"github.com/urbanroute/urbanroute/internal/itinerary"
	"github.com/urbanroute/urbanroute/pkg/geo"
)

// RouteHandler handles route computation requests.
type RouteHandler struct {
	planner *itinerary.Planner
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(planner *itinerary.Planner) *RouteHandler {
	return &RouteHandler{planner: planner}
}

// ComputeRoutes handles POST /v1/routes:compute.
func (h *RouteHandler) ComputeRoutes(w http.ResponseWriter, r *http.Request) {
	var req models.ComputeRoutesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid route request", fieldErrs)
		return
	}

	planReq := itinerary.PlanRequest{
		Origin:      geo.Point{Lat: req.Origin.Lat, Lon: req.Origin.Lon},
		Destination: geo.Point{Lat: req.Destination.Lat, Lon: req.Destination.Lon},
		Profile:     engine.Profile(req.Profile),
		Locale:      req.Locale,
		ArriveBy:    req.ArriveBy,
	}
	if req.Departure != nil {
		planReq.Departure = *req.Departure
	}

	result, err := h.planner.Plan(r.Context(), planReq)
	if err != nil {
		response.InternalError(w, r, "route computation failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.ComputeRoutesResponse{
		Itineraries:    result.Itineraries,
		Degraded:       result.Degraded,
		DegradedReason: result.DegradedReason,
		ComputedAt:     time.Now().UTC(),
	})
}
