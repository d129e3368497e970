package fleet

import (
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-control/internal/detour"
	"github.com/ukydev/fleet-control/internal/models"
)

// ProposeDetour computes a detour around the route's incident, ahead of every vehicle on
// the route, and holds it as pending. The live geometry is untouched. ok is false when
// the route is unknown or has no seeded traffic.
func (s *Store) ProposeDetour(routeID string) ([]models.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.traffic.Get(routeID)
	if !ok {
		return nil, false
	}
	return s.proposeLocked(routeID, st.Incident)
}

// ProposeDetourAround is ProposeDetour with an explicit avoidance point.
func (s *Store) ProposeDetourAround(routeID string, avoid models.Location) ([]models.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proposeLocked(routeID, avoid)
}

func (s *Store) proposeLocked(routeID string, avoid models.Location) ([]models.Location, bool) {
	ri, ok := s.routeIdx[routeID]
	if !ok {
		return nil, false
	}
	line := s.routes[ri].Geometry
	var onRoute []models.Assignment
	for _, v := range s.vehicles {
		if v.InRoute() && v.Assignment.RouteID == routeID {
			onRoute = append(onRoute, *v.Assignment)
		}
	}
	minStart := detour.MinForwardIndex(line, onRoute)
	proposed := detour.Compute(line, avoid, minStart)
	s.pending[routeID] = proposed

	log.WithFields(log.Fields{
		"route_id":  routeID,
		"min_start": minStart,
		"points":    len(proposed),
		"vehicles":  len(onRoute),
	}).Info("Detour proposed")
	return append([]models.Location(nil), proposed...), true
}

// PendingDetour returns the proposed geometry awaiting confirmation.
func (s *Store) PendingDetour(routeID string) ([]models.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	line, ok := s.pending[routeID]
	if !ok {
		return nil, false
	}
	return append([]models.Location(nil), line...), true
}

// ConfirmDetour applies the pending detour: the route takes the new geometry and every
// vehicle on it is re-snapped. Confirming without a pending detour is a no-op that
// returns false.
func (s *Store) ConfirmDetour(routeID string) bool {
	s.mu.Lock()
	line, ok := s.pending[routeID]
	ri, known := s.routeIdx[routeID]
	if !ok || !known {
		delete(s.pending, routeID)
		s.mu.Unlock()
		return false
	}
	delete(s.pending, routeID)
	s.replaceGeometryLocked(ri, line, true)
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"route_id": routeID,
		"points":   len(line),
	}).Info("Detour confirmed")
	s.publish(IncidentResolved{RouteID: routeID})
	return true
}

// CancelDetour discards the pending detour. It reports whether one existed.
func (s *Store) CancelDetour(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[routeID]; !ok {
		return false
	}
	delete(s.pending, routeID)
	log.WithField("route_id", routeID).Info("Detour cancelled")
	return true
}
