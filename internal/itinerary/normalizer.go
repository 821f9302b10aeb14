package itinerary

import (
	"time"

	"github.com/urbanroute/urbanroute/internal/engine"
	"github.com/urbanroute/urbanroute/pkg/geo"
	"github.com/urbanroute/urbanroute/pkg/polyline"
)

// FromPath normalizes one engine path into an itinerary. Transit paths are
// split into their walk and ride legs; street paths become a single leg
// carrying the full turn-by-turn guidance.
func FromPath(path engine.Path, profile engine.Profile) Itinerary {
	it := Itinerary{
		DistanceMeters: path.DistanceMeters,
		Duration:       time.Duration(path.TimeMillis) * time.Millisecond,
		Source:         SourceEngine,
	}

	if len(path.Legs) > 0 {
		it.Legs = make([]Leg, 0, len(path.Legs))
		for _, leg := range path.Legs {
			it.Legs = append(it.Legs, fromEngineLeg(leg))
		}
		return it
	}

	mode := ModeWalk
	if profile == engine.ProfileCar {
		mode = ModeDrive
	}
	it.Legs = []Leg{{
		Mode:           mode,
		DistanceMeters: path.DistanceMeters,
		Duration:       it.Duration,
		Steps:          fromInstructions(path.Instructions),
		Geometry:       decodeGeometry(path.Points),
	}}
	return it
}

func fromEngineLeg(leg engine.Leg) Leg {
	out := Leg{
		DistanceMeters: leg.DistanceMeters,
		DepartureTime:  leg.DepartureTime,
		ArrivalTime:    leg.ArrivalTime,
	}
	if !leg.ArrivalTime.IsZero() && !leg.DepartureTime.IsZero() {
		out.Duration = leg.ArrivalTime.Sub(leg.DepartureTime)
	}

	if leg.Type == engine.LegTypeTransit {
		out.Mode = ModeTransit
		out.Transit = fromTransitLeg(leg)
		return out
	}

	out.Mode = ModeWalk
	out.Steps = fromInstructions(leg.Instructions)
	return out
}

func fromTransitLeg(leg engine.Leg) *TransitDetail {
	detail := &TransitDetail{
		RouteID:  leg.RouteID,
		TripID:   leg.TripID,
		Headsign: leg.TripHeadsign,
	}

	stops := make([]StopCall, 0, len(leg.Stops))
	for _, s := range leg.Stops {
		stops = append(stops, StopCall{
			StopID:        s.StopID,
			StopName:      s.StopName,
			ArrivalTime:   s.ArrivalTime,
			DepartureTime: s.DepartureTime,
		})
	}
	detail.Stops = stops

	if len(stops) > 0 {
		detail.BoardStop = stops[0]
		detail.AlightStop = stops[len(stops)-1]
	}
	if len(stops) > 2 {
		detail.IntermediateStops = len(stops) - 2
	}
	return detail
}

func fromInstructions(instructions []engine.Instruction) []Step {
	if len(instructions) == 0 {
		return nil
	}
	steps := make([]Step, 0, len(instructions))
	for _, inst := range instructions {
		steps = append(steps, Step{
			Text:           inst.Text,
			StreetName:     inst.StreetName,
			DistanceMeters: inst.DistanceMeters,
			Sign:           inst.Sign,
		})
	}
	return steps
}

func decodeGeometry(encoded string) []geo.Point {
	if encoded == "" {
		return nil
	}
	return polyline.Decode(encoded)
}
