// Package motion advances in-route vehicles along their route geometry.
package motion

import (
	"math"

	"github.com/ukydev/fleet-control/internal/geo"
	"github.com/ukydev/fleet-control/internal/models"
)

// Config tunes a motion step.
type Config struct {
	Step           float64 // progress added per tick
	BaseETAMinutes float64 // duration assumed for a whole route
	StopRadiusKm   float64 // arrival radius around a stop
}

// DefaultConfig returns the reference cadence parameters.
func DefaultConfig() Config {
	return Config{Step: 0.001, BaseETAMinutes: 30, StopRadiusKm: 0.2}
}

// Result is the outcome of advancing one vehicle by one tick.
type Result struct {
	Assignment    models.Assignment
	Completed     bool
	CompletedStop string // stop newly served this tick, if any
}

// Advance moves the assignment one step along route. traffic may be nil for routes that
// have not been seeded. At most one stop, the first pending one, is served per tick.
func Advance(cfg Config, a models.Assignment, route models.Route, traffic *models.TrafficState) Result {
	next := a.Clone()
	next.Progress = math.Min(a.Progress+cfg.Step, 1)
	if next.Progress < a.Progress {
		next.Progress = a.Progress
	}
	if len(route.Geometry) > 0 {
		next.Position = geo.Interpolate(route.Geometry, next.Progress)
	}

	res := Result{}
	for _, stop := range route.Stops {
		if next.HasCompleted(stop.ID) {
			continue
		}
		if geo.Distance(next.Position, stop.Coordinates) <= cfg.StopRadiusKm {
			next.CompletedStops = append(next.CompletedStops, stop.ID)
			res.CompletedStop = stop.ID
		}
		break
	}

	next.StopsRemaining = len(route.Stops) - len(next.CompletedStops)
	if next.StopsRemaining < 0 {
		next.StopsRemaining = 0
	}
	next.ETA = ETA(cfg, next.Progress, traffic)

	res.Assignment = next
	res.Completed = next.Progress >= 1
	return res
}

// ETA estimates remaining minutes: the base duration scaled by the remaining fraction,
// multiplied by the traffic multiplier plus the traffic delay, never below one minute.
func ETA(cfg Config, progress float64, traffic *models.TrafficState) int {
	minutes := cfg.BaseETAMinutes * (1 - progress)
	if traffic != nil {
		minutes = minutes*traffic.Status.Multiplier() + float64(traffic.DelayMinutes)
	}
	eta := int(math.Round(minutes))
	if eta < 1 {
		eta = 1
	}
	return eta
}
