package handler

import (
	"net/http"
	"strconv"

	"github.com/urbanroute/urbanroute/internal/api/models"
	"github.com/urbanroute/urbanroute/internal/api/response"
	"github.com/urbanroute/urbanroute/internal/gtfs"
	"github.com/urbanroute/urbanroute/pkg/geo"
)

// Nearby stop query bounds.
const (
	defaultNearbyRadiusMeters = 500.0
	maxNearbyRadiusMeters     = 5000.0
	defaultNearbyLimit        = 10
	maxNearbyLimit            = 50
)

// StopsHandler serves stop lookups from the committed transit dataset.
type StopsHandler struct {
	repo gtfs.Repository
}

// NewStopsHandler creates a new StopsHandler.
func NewStopsHandler(repo gtfs.Repository) *StopsHandler {
	return &StopsHandler{repo: repo}
}

// NearbyStops handles GET /v1/stops/nearby?lat=&lon=&radius=&limit=.
func (h *StopsHandler) NearbyStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		response.BadRequest(w, r, "lat and lon query parameters are required", nil)
		return
	}

	origin := geo.Point{Lat: lat, Lon: lon}
	if err := origin.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	radius := defaultNearbyRadiusMeters
	if raw := q.Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, r, "radius must be a positive number of meters", nil)
			return
		}
		radius = min(parsed, maxNearbyRadiusMeters)
	}

	limit := defaultNearbyLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		limit = min(parsed, maxNearbyLimit)
	}

	stops, err := h.repo.NearbyStops(r.Context(), origin, radius, limit)
	if err != nil {
		response.InternalError(w, r, "querying nearby stops failed")
		return
	}

	out := models.NearbyStopsResponse{Stops: make([]models.NearbyStop, 0, len(stops))}
	for _, s := range stops {
		out.Stops = append(out.Stops, models.NearbyStop{
			StopID:         s.ID,
			Name:           s.Name,
			Lat:            s.Latitude,
			Lon:            s.Longitude,
			DistanceMeters: s.DistanceMeters,
		})
	}
	response.JSON(w, r, http.StatusOK, out)
}
