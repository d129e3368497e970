// Package traffic synthesizes per-route traffic without an external feed. Routes are
// seeded deterministically from their identifier and then re-rolled on a timer, except
// for a pinned scripted incident which holds its state.
package traffic

import (
	"math/rand"
	"sort"
	"time"

	"github.com/ukydev/fleet-control/internal/geo"
	"github.com/ukydev/fleet-control/internal/models"
)

const (
	seedIncidentFraction   = 0.5
	scriptedIncidentAt     = 0.6
	seededClosedDelay      = 30
	closedDelay            = 45
	heavyBaseDelay         = 10
	heavyMaxExtraDelay     = 15
	normalWeight           = 0.75
	heavyWeight            = 0.20
	heavySeedThreshold     = 6
	closedSeedThreshold    = 8
	DefaultIncidentMinutes = closedDelay
)

// Synthesizer owns the route id to traffic state mapping. It is not safe for concurrent
// use; the fleet store serializes access.
type Synthesizer struct {
	rng      *rand.Rand
	now      func() time.Time
	states   map[string]models.TrafficState
	pinned   map[string]bool
	notified map[string]bool
}

// New creates a synthesizer drawing drift from rng and stamping states with now. Nil
// arguments fall back to a time-seeded source and time.Now.
func New(rng *rand.Rand, now func() time.Time) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{
		rng:      rng,
		now:      now,
		states:   make(map[string]models.TrafficState),
		pinned:   make(map[string]bool),
		notified: make(map[string]bool),
	}
}

// SeedValue derives the deterministic 0..9 value used to seed a route.
func SeedValue(routeID string) int {
	sum := 0
	for _, c := range routeID {
		sum += int(c)
	}
	return sum % 10
}

// InitialState computes the reproducible starting traffic of a route.
func InitialState(route models.Route, warehouses map[string]models.Warehouse, now time.Time) models.TrafficState {
	v := SeedValue(route.ID)
	st := models.TrafficState{
		RouteID:   route.ID,
		Status:    models.TrafficNormal,
		Incident:  incidentPoint(route, warehouses, seedIncidentFraction),
		UpdatedAt: now,
	}
	switch {
	case v > closedSeedThreshold:
		st.Status = models.TrafficClosed
		st.DelayMinutes = seededClosedDelay
	case v > heavySeedThreshold:
		st.Status = models.TrafficHeavy
		st.DelayMinutes = heavyBaseDelay + v
	}
	return st
}

// incidentPoint picks a point on the geometry, falling back to the stops' midpoint and
// then to the midpoint between origin and destination warehouses.
func incidentPoint(route models.Route, warehouses map[string]models.Warehouse, fraction float64) models.Location {
	if p, ok := geo.PointAt(route.Geometry, fraction); ok {
		return p
	}
	if len(route.Stops) > 0 {
		pts := make([]models.Location, 0, len(route.Stops))
		for _, s := range route.Stops {
			pts = append(pts, s.Coordinates)
		}
		return geo.Midpoint(pts...)
	}
	var ends []models.Location
	if w, ok := warehouses[route.OriginWarehouseID]; ok {
		ends = append(ends, w.Coordinates)
	}
	if w, ok := warehouses[route.DestinationWarehouseID]; ok {
		ends = append(ends, w.Coordinates)
	}
	return geo.Midpoint(ends...)
}

// Seed records the initial state of a route the first time it is seen. It reports
// whether the route was newly seeded.
func (s *Synthesizer) Seed(route models.Route, warehouses map[string]models.Warehouse) (models.TrafficState, bool) {
	if st, ok := s.states[route.ID]; ok {
		return st, false
	}
	st := InitialState(route, warehouses, s.now())
	s.states[route.ID] = st
	return st, true
}

// Drift re-rolls every unpinned route and returns the states whose status changed.
func (s *Synthesizer) Drift() []models.TrafficState {
	var changed []models.TrafficState
	for _, id := range s.routeIDs() {
		if s.pinned[id] {
			continue
		}
		st := s.states[id]
		prev := st.Status
		st.Status = s.roll()
		st.DelayMinutes = s.delayFor(st.Status)
		st.UpdatedAt = s.now()
		s.states[id] = st
		if st.Status != prev {
			changed = append(changed, st)
		}
	}
	return changed
}

func (s *Synthesizer) roll() models.TrafficStatus {
	r := s.rng.Float64()
	switch {
	case r < normalWeight:
		return models.TrafficNormal
	case r < normalWeight+heavyWeight:
		return models.TrafficHeavy
	default:
		return models.TrafficClosed
	}
}

func (s *Synthesizer) delayFor(status models.TrafficStatus) int {
	switch status {
	case models.TrafficClosed:
		return closedDelay
	case models.TrafficHeavy:
		return heavyBaseDelay + s.rng.Intn(heavyMaxExtraDelay+1)
	default:
		return 0
	}
}

// Inject closes the route with a fixed delay at a point 60% along its geometry and pins
// it against drift. notify is true only the first time the route is injected.
func (s *Synthesizer) Inject(route models.Route, warehouses map[string]models.Warehouse, delayMinutes int) (st models.TrafficState, notify bool) {
	st = models.TrafficState{
		RouteID:      route.ID,
		Status:       models.TrafficClosed,
		DelayMinutes: delayMinutes,
		Incident:     incidentPoint(route, warehouses, scriptedIncidentAt),
		Simulated:    true,
		UpdatedAt:    s.now(),
	}
	s.states[route.ID] = st
	s.pinned[route.ID] = true
	if s.notified[route.ID] {
		return st, false
	}
	s.notified[route.ID] = true
	return st, true
}

// Get returns the traffic state of a route. ok is false for unseeded routes.
func (s *Synthesizer) Get(routeID string) (models.TrafficState, bool) {
	st, ok := s.states[routeID]
	return st, ok
}

// Pinned reports whether drift is suspended for the route.
func (s *Synthesizer) Pinned(routeID string) bool {
	return s.pinned[routeID]
}

// All returns every known state ordered by route id.
func (s *Synthesizer) All() []models.TrafficState {
	out := make([]models.TrafficState, 0, len(s.states))
	for _, id := range s.routeIDs() {
		out = append(out, s.states[id])
	}
	return out
}

func (s *Synthesizer) routeIDs() []string {
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
