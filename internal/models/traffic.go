package models

import "time"

// TrafficStatus is the synthesized congestion level of a route.
type TrafficStatus string

const (
	TrafficNormal TrafficStatus = "normal"
	TrafficHeavy  TrafficStatus = "heavy"
	TrafficClosed TrafficStatus = "closed"
)

// Multiplier scales remaining travel time for the status.
func (s TrafficStatus) Multiplier() float64 {
	switch s {
	case TrafficClosed:
		return 3
	case TrafficHeavy:
		return 1.5
	default:
		return 1
	}
}

// TrafficState is the traffic picture for one route.
type TrafficState struct {
	RouteID      string        `json:"route_id"`
	Status       TrafficStatus `json:"status"`
	DelayMinutes int           `json:"delay_minutes"`
	Incident     Location      `json:"incident"`
	Simulated    bool          `json:"simulated"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
