package itinerary

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanroute/urbanroute/internal/engine"
	"github.com/urbanroute/urbanroute/pkg/geo"
)

// PlanRequest describes one journey to plan.
type PlanRequest struct {
	Origin      geo.Point
	Destination geo.Point
	Profile     engine.Profile
	Locale      string

	// Departure anchors transit searches (optional).
	Departure time.Time

	// ArriveBy interprets Departure as the latest arrival instead.
	ArriveBy bool
}

// PlanResult carries the planned itineraries. When the engine could not
// produce a route the result holds a single degraded straight-line
// itinerary and DegradedReason says why.
type PlanResult struct {
	Itineraries    []Itinerary `json:"itineraries"`
	Degraded       bool        `json:"degraded"`
	DegradedReason string      `json:"degraded_reason,omitempty"`
}

// PlannerConfig holds the planner's collaborators.
type PlannerConfig struct {
	Supervisor *engine.Supervisor
	Client     *engine.Client
	Logger     zerolog.Logger
}

// Planner answers journey requests. It makes sure the engine is up, queries
// it, and normalizes the answer; when the engine fails it degrades to a
// straight-line estimate instead of failing the request.
type Planner struct {
	supervisor *engine.Supervisor
	client     *engine.Client
	logger     zerolog.Logger
}

// NewPlanner creates a journey planner.
func NewPlanner(cfg PlannerConfig) *Planner {
	return &Planner{
		supervisor: cfg.Supervisor,
		client:     cfg.Client,
		logger:     cfg.Logger,
	}
}

// Plan computes itineraries for the request. Validation failures are
// returned as errors; engine failures degrade. An engine that answered but
// found no route degrades with a different reason than an engine that
// failed, so the caller can tell "nothing connects these points" from "the
// engine is down".
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	query := engine.RouteQuery{
		Points:  []geo.Point{req.Origin, req.Destination},
		Profile: req.Profile,
		Locale:  req.Locale,
		Transit: engine.TransitOptions{
			EarliestDeparture: req.Departure,
			ArriveBy:          req.ArriveBy,
		},
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if err := p.supervisor.Start(ctx); err != nil {
		// Start failures surface again as query errors below; the route
		// is still attempted in case the engine runs externally.
		p.logger.Warn().Err(err).Msg("routing engine start failed")
	}

	resp, err := p.client.Execute(ctx, query)
	if err != nil {
		var queryErr *engine.QueryError
		if errors.As(err, &queryErr) {
			p.logger.Warn().
				Err(err).
				Str("profile", string(req.Profile)).
				Msg("routing engine query failed, degrading to straight-line")
			return p.degrade(req, DegradeReasonEngineError), nil
		}
		return nil, err
	}

	if len(resp.Paths) == 0 {
		p.logger.Info().
			Str("profile", string(req.Profile)).
			Msg("routing engine found no route, degrading to straight-line")
		return p.degrade(req, DegradeReasonNoRoute), nil
	}

	itineraries := make([]Itinerary, 0, len(resp.Paths))
	for _, path := range resp.Paths {
		itineraries = append(itineraries, FromPath(path, req.Profile))
	}
	return &PlanResult{Itineraries: itineraries}, nil
}

func (p *Planner) degrade(req PlanRequest, reason string) *PlanResult {
	return &PlanResult{
		Itineraries:    []Itinerary{Fallback(req.Origin, req.Destination)},
		Degraded:       true,
		DegradedReason: reason,
	}
}
