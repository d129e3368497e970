package models

import "time"

// VehicleStatus is the lifecycle state of a vehicle.
type VehicleStatus string

const (
	StatusIdle        VehicleStatus = "idle"
	StatusAvailable   VehicleStatus = "available"
	StatusInRoute     VehicleStatus = "in_route"
	StatusMaintenance VehicleStatus = "maintenance"
)

// IsValidStatus checks if a status is one of the known vehicle states.
func IsValidStatus(s VehicleStatus) bool {
	switch s {
	case StatusIdle, StatusAvailable, StatusInRoute, StatusMaintenance:
		return true
	default:
		return false
	}
}

// Assignment holds every route-scoped field of a vehicle. It exists only while the
// vehicle is in route, so the fields are set and cleared together.
type Assignment struct {
	RouteID        string    `json:"route_id"`
	Position       Location  `json:"position"`
	Progress       float64   `json:"progress"`
	StopsRemaining int       `json:"stops_remaining"`
	ETA            int       `json:"eta_minutes"`
	CompletedStops []string  `json:"completed_stops"`
	StartedAt      time.Time `json:"started_at"`
}

// HasCompleted reports whether the stop has already been served.
func (a *Assignment) HasCompleted(stopID string) bool {
	for _, id := range a.CompletedStops {
		if id == stopID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with a.
func (a Assignment) Clone() Assignment {
	out := a
	out.CompletedStops = append([]string(nil), a.CompletedStops...)
	return out
}

// Telemetry is illustrative vehicle telemetry shown by the dashboard.
type Telemetry struct {
	BatteryLevel       float64   `json:"battery_level"`
	BatteryTemperature float64   `json:"battery_temperature"`
	Speed              float64   `json:"speed"`
	Range              float64   `json:"range"`
	MotorTemperature   float64   `json:"motor_temperature"`
	PowerConsumption   float64   `json:"power_consumption"`
	AutonomyMode       string    `json:"autonomy_mode"` // "full", "assisted" or "manual"
	ObstaclesDetected  int       `json:"obstacles_detected"`
	SignalStrength     float64   `json:"signal_strength"`
	LastUpdate         time.Time `json:"last_update"`
}

// Vehicle represents a fleet vehicle. Status is StatusInRoute exactly when Assignment is
// non-nil; use Assign and Release to move between the two.
type Vehicle struct {
	ID           string        `json:"id"`
	Alias        string        `json:"alias"`
	LicensePlate string        `json:"license_plate"`
	Status       VehicleStatus `json:"status"`
	Assignment   *Assignment   `json:"assignment,omitempty"`
	Telemetry    *Telemetry    `json:"telemetry,omitempty"`
}

// InRoute reports whether the vehicle is currently assigned to a route.
func (v *Vehicle) InRoute() bool {
	return v.Status == StatusInRoute && v.Assignment != nil
}

// RouteID returns the assigned route or "".
func (v *Vehicle) RouteID() string {
	if v.Assignment == nil {
		return ""
	}
	return v.Assignment.RouteID
}

// CanDispatch reports whether the vehicle may be sent onto a route. In-route vehicles may
// be re-dispatched, which resets their assignment.
func (v *Vehicle) CanDispatch() bool {
	return v.Status != StatusMaintenance
}

// Assign puts the vehicle in route with the given assignment.
func (v *Vehicle) Assign(a Assignment) {
	v.Status = StatusInRoute
	v.Assignment = &a
}

// Release returns the vehicle to idle and drops every route-scoped field.
func (v *Vehicle) Release() {
	v.Status = StatusIdle
	v.Assignment = nil
}

// Clone returns a deep copy of the vehicle.
func (v Vehicle) Clone() Vehicle {
	out := v
	if v.Assignment != nil {
		a := v.Assignment.Clone()
		out.Assignment = &a
	}
	if v.Telemetry != nil {
		t := *v.Telemetry
		out.Telemetry = &t
	}
	return out
}
