package fleet

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-control/internal/detour"
	"github.com/ukydev/fleet-control/internal/geo"
	"github.com/ukydev/fleet-control/internal/models"
	"github.com/ukydev/fleet-control/internal/motion"
)

const recordTimeout = 5 * time.Second

// Tick advances every in-route vehicle by one motion step. Vehicles on unknown routes are
// skipped. A vehicle reaching the end of its route goes idle, and its route loses focus
// and visibility. Tick is a no-op while the onboarding gate is open.
func (s *Store) Tick() {
	var finished []models.Trip
	var done []VehicleCompleted

	s.mu.Lock()
	if s.introOpen {
		s.mu.Unlock()
		return
	}
	for i := range s.vehicles {
		v := &s.vehicles[i]
		if !v.InRoute() {
			continue
		}
		ri, ok := s.routeIdx[v.Assignment.RouteID]
		if !ok {
			continue
		}
		route := s.routes[ri]
		var tr *models.TrafficState
		if st, ok := s.traffic.Get(route.ID); ok {
			tr = &st
		}

		res := motion.Advance(s.cfg.Motion, *v.Assignment, route, tr)
		if res.CompletedStop != "" {
			log.WithFields(log.Fields{
				"vehicle_id": v.ID,
				"route_id":   route.ID,
				"stop_id":    res.CompletedStop,
			}).Info("Stop completed")
		}
		if !res.Completed {
			*v.Assignment = res.Assignment
			continue
		}

		finished = append(finished, s.tripLocked(*v, route, res.Assignment))
		done = append(done, VehicleCompleted{VehicleID: v.ID, RouteID: route.ID})
		v.Release()
		if s.focusedRoute == route.ID {
			s.focusedRoute = ""
		}
		delete(s.visible, route.ID)
		log.WithFields(log.Fields{
			"vehicle_id": v.ID,
			"route_id":   route.ID,
		}).Info("Vehicle completed route")
	}
	s.mu.Unlock()

	for _, ev := range done {
		s.publish(ev)
	}
	s.recordTrips(finished)
}

func (s *Store) tripLocked(v models.Vehicle, route models.Route, a models.Assignment) models.Trip {
	end := s.now()
	trip := models.Trip{
		VehicleID:      v.ID,
		VehicleAlias:   v.Alias,
		RouteID:        route.ID,
		RouteName:      route.Name,
		EndLocation:    a.Position,
		StartTime:      a.StartedAt,
		EndTime:        end,
		Distance:       geo.Length(route.Geometry),
		StopsCompleted: len(a.CompletedStops),
		StopsTotal:     len(route.Stops),
		Status:         "completed",
		CreatedAt:      end,
	}
	if len(route.Geometry) > 0 {
		trip.StartLocation = route.Geometry[0]
	}
	if !a.StartedAt.IsZero() {
		trip.Duration = end.Sub(a.StartedAt).Minutes()
	}
	return trip
}

func (s *Store) recordTrips(trips []models.Trip) {
	if s.recorder == nil {
		return
	}
	for _, trip := range trips {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := s.recorder.RecordTrip(ctx, trip); err != nil {
			log.WithFields(log.Fields{
				"vehicle_id": trip.VehicleID,
				"route_id":   trip.RouteID,
			}).WithError(err).Warn("Failed to record trip")
		}
		cancel()
	}
}

// DriftTraffic re-rolls the traffic of every route except pinned incidents. It is a
// no-op while the onboarding gate is open.
func (s *Store) DriftTraffic() {
	s.mu.Lock()
	if s.introOpen {
		s.mu.Unlock()
		return
	}
	changed := s.traffic.Drift()
	s.mu.Unlock()

	for _, st := range changed {
		log.WithFields(log.Fields{
			"route_id":  st.RouteID,
			"status":    st.Status,
			"delay_min": st.DelayMinutes,
		}).Debug("Traffic changed")
	}
}

// InjectScriptedIncident closes the configured route and pins it. The first injection
// appends one traffic alert to the transcript. ok is false while the onboarding gate is
// open or when the route is unknown.
func (s *Store) InjectScriptedIncident() (models.TrafficState, bool) {
	s.mu.Lock()
	if s.introOpen {
		s.mu.Unlock()
		return models.TrafficState{}, false
	}
	ri, ok := s.routeIdx[s.cfg.IncidentRouteID]
	if !ok {
		s.mu.Unlock()
		log.WithField("route_id", s.cfg.IncidentRouteID).Warn("Scripted incident route not found")
		return models.TrafficState{}, false
	}
	route := s.routes[ri]
	st, notify := s.traffic.Inject(route, s.whByID, s.cfg.IncidentDelayMinutes)
	var msg models.ChatMessage
	if notify {
		msg = s.appendChatLocked(models.ChatAssistant, incidentAlert(route, st), nil)
	}
	s.mu.Unlock()

	if notify {
		log.WithFields(log.Fields{
			"route_id":  st.RouteID,
			"status":    st.Status,
			"delay_min": st.DelayMinutes,
		}).Warn("Scripted incident injected")
		s.publish(ChatAppended{Message: msg})
	}
	return st, true
}

func incidentAlert(route models.Route, st models.TrafficState) string {
	return fmt.Sprintf("🚧 **Traffic alert:** %s is closed near (%.4f, %.4f), adding about %d min. "+
		"Say \"reroute %s\" and I will propose a detour around the incident.",
		route.Name, st.Incident.Lat, st.Incident.Lng, st.DelayMinutes, route.ID)
}

// replaceGeometryLocked swaps a route's geometry and re-snaps its vehicles onto it. A
// detour keeps the old prefix, so vehicles never snap behind the vertex they had passed.
func (s *Store) replaceGeometryLocked(ri int, geometry []models.Location, isDetour bool) {
	old := s.routes[ri].Geometry
	line := append([]models.Location(nil), geometry...)
	s.routes[ri].Geometry = line
	routeID := s.routes[ri].ID
	if !isDetour {
		// A pending detour was built on the previous line.
		delete(s.pending, routeID)
	}
	for i := range s.vehicles {
		v := &s.vehicles[i]
		if !v.InRoute() || v.Assignment.RouteID != routeID {
			continue
		}
		if isDetour {
			*v.Assignment = detour.Resnap(*v.Assignment, old, line)
		} else {
			*v.Assignment = detour.Snap(*v.Assignment, line)
		}
	}
}
