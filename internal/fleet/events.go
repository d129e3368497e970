package fleet

import (
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-control/internal/models"
)

// Event is a store notification: ChatAppended, IncidentResolved or VehicleCompleted.
type Event interface {
	Kind() string
	isEvent()
}

// ChatAppended is sent for every transcript message added after startup.
type ChatAppended struct {
	Message models.ChatMessage `json:"message"`
}

// IncidentResolved tells map clients to close the incident popup of a rerouted route.
type IncidentResolved struct {
	RouteID string `json:"route_id"`
}

// VehicleCompleted is sent when a vehicle finishes its route and goes idle.
type VehicleCompleted struct {
	VehicleID string `json:"vehicle_id"`
	RouteID   string `json:"route_id"`
}

func (ChatAppended) Kind() string     { return "chat_appended" }
func (IncidentResolved) Kind() string { return "incident_resolved" }
func (VehicleCompleted) Kind() string { return "vehicle_completed" }

func (ChatAppended) isEvent()     {}
func (IncidentResolved) isEvent() {}
func (VehicleCompleted) isEvent() {}

const subscriberBuffer = 32

// Subscribe returns a channel of store events and a function that ends the
// subscription. Slow subscribers miss events rather than block the store.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			log.WithFields(log.Fields{
				"subscriber": id,
				"event":      ev.Kind(),
			}).Debug("Dropped event for slow subscriber")
		}
	}
}
