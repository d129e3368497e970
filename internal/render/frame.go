// Package render turns fleet snapshots into declarative map frames for a rendering
// client: markers, polylines and a camera target.
package render

import (
	"context"
	"time"

	"github.com/ukydev/fleet-control/internal/fleet"
	"github.com/ukydev/fleet-control/internal/geo"
	"github.com/ukydev/fleet-control/internal/models"
)

// Line widths and opacities by focus state.
const (
	FocusedWidth   = 6.0
	DefaultWidth   = 4.0
	DimmedWidth    = 3.0
	FocusedOpacity = 1.0
	DefaultOpacity = 0.8
	DimmedOpacity  = 0.35
)

// Camera zoom levels.
const (
	RouteZoom = 12.5
	PointZoom = 14.0
)

type WarehouseMarker struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Position models.Location `json:"position"`
	Focused  bool            `json:"focused"`
}

type RouteLine struct {
	RouteID string            `json:"route_id"`
	Color   string            `json:"color"`
	Points  []models.Location `json:"points"`
	Width   float64           `json:"width"`
	Opacity float64           `json:"opacity"`
	Pending []models.Location `json:"pending,omitempty"`
}

type VehicleMarker struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Position models.Location `json:"position"`
	Style    string          `json:"style"`
	RouteID  string          `json:"route_id,omitempty"`
	Focused  bool            `json:"focused"`
}

type StopMarker struct {
	ID        string          `json:"id"`
	RouteID   string          `json:"route_id"`
	Label     string          `json:"label"`
	Position  models.Location `json:"position"`
	Completed bool            `json:"completed"`
}

type IncidentMarker struct {
	RouteID      string               `json:"route_id"`
	Position     models.Location      `json:"position"`
	Status       models.TrafficStatus `json:"status"`
	DelayMinutes int                  `json:"delay_minutes"`
}

// Camera is where the client should look.
type Camera struct {
	Center models.Location `json:"center"`
	Zoom   float64         `json:"zoom"`
}

// Frame is everything the map shows at one instant.
type Frame struct {
	Warehouses []WarehouseMarker `json:"warehouses"`
	Routes     []RouteLine       `json:"routes"`
	Vehicles   []VehicleMarker   `json:"vehicles"`
	Stops      []StopMarker      `json:"stops"`
	Incidents  []IncidentMarker  `json:"incidents"`
	Camera     *Camera           `json:"camera,omitempty"`
	At         time.Time         `json:"at"`
}

// VehicleStyle maps a status to the marker style.
func VehicleStyle(s models.VehicleStatus) string {
	switch s {
	case models.StatusInRoute:
		return "active"
	case models.StatusAvailable:
		return "ready"
	case models.StatusMaintenance:
		return "warning"
	default:
		return "muted"
	}
}

// LineStyle returns width and opacity of a visible route given the focused route.
func LineStyle(routeID, focused string) (width, opacity float64) {
	switch {
	case focused == "":
		return DefaultWidth, DefaultOpacity
	case routeID == focused:
		return FocusedWidth, FocusedOpacity
	default:
		return DimmedWidth, DimmedOpacity
	}
}

// Build renders a snapshot. Only visible routes get lines, stops and incidents. Vehicles
// are placed at their assignment position when in route; others are not drawn.
// pending holds proposed detour geometry by route id and may be nil.
func Build(snap fleet.Snapshot, pending map[string][]models.Location) Frame {
	f := Frame{At: snap.TakenAt}
	routes := snap.RouteMap()
	traffic := snap.TrafficMap()

	for _, w := range snap.Warehouses {
		f.Warehouses = append(f.Warehouses, WarehouseMarker{
			ID: w.ID, Label: w.Name, Position: w.Coordinates, Focused: w.ID == snap.FocusedWarehouseID,
		})
	}

	completed := make(map[string]bool)
	for _, v := range snap.Vehicles {
		if v.Assignment == nil {
			continue
		}
		for _, id := range v.Assignment.CompletedStops {
			completed[v.Assignment.RouteID+"/"+id] = true
		}
		f.Vehicles = append(f.Vehicles, VehicleMarker{
			ID:       v.ID,
			Label:    v.Alias,
			Position: v.Assignment.Position,
			Style:    VehicleStyle(v.Status),
			RouteID:  v.Assignment.RouteID,
			Focused:  v.ID == snap.FocusedVehicleID,
		})
	}

	for _, r := range snap.Routes {
		if !snap.Visible(r.ID) {
			continue
		}
		width, opacity := LineStyle(r.ID, snap.FocusedRouteID)
		f.Routes = append(f.Routes, RouteLine{
			RouteID: r.ID, Color: r.Color, Points: r.Geometry, Width: width, Opacity: opacity,
			Pending: pending[r.ID],
		})
		for _, s := range r.Stops {
			f.Stops = append(f.Stops, StopMarker{
				ID: s.ID, RouteID: r.ID, Label: s.BusinessName, Position: s.Coordinates,
				Completed: completed[r.ID+"/"+s.ID],
			})
		}
		if st, ok := traffic[r.ID]; ok && st.Status != models.TrafficNormal {
			f.Incidents = append(f.Incidents, IncidentMarker{
				RouteID: r.ID, Position: st.Incident, Status: st.Status, DelayMinutes: st.DelayMinutes,
			})
		}
	}

	f.Camera = camera(snap, routes)
	return f
}

// camera follows the focused vehicle, then route, then warehouse.
func camera(snap fleet.Snapshot, routes map[string]models.Route) *Camera {
	if snap.FocusedVehicleID != "" {
		for _, v := range snap.Vehicles {
			if v.ID == snap.FocusedVehicleID && v.Assignment != nil {
				return &Camera{Center: v.Assignment.Position, Zoom: PointZoom}
			}
		}
	}
	if r, ok := routes[snap.FocusedRouteID]; ok && len(r.Geometry) > 0 {
		return &Camera{Center: geo.Midpoint(r.Geometry...), Zoom: RouteZoom}
	}
	for _, w := range snap.Warehouses {
		if w.ID == snap.FocusedWarehouseID {
			return &Camera{Center: w.Coordinates, Zoom: PointZoom}
		}
	}
	return nil
}

// Sink receives rendered frames.
type Sink interface {
	PublishFrame(ctx context.Context, f Frame) error
}

// PendingSource exposes proposed detours for drawing.
type PendingSource interface {
	PendingDetour(routeID string) ([]models.Location, bool)
}

// PendingFunc adapts a function to PendingSource.
type PendingFunc func(routeID string) ([]models.Location, bool)

func (f PendingFunc) PendingDetour(routeID string) ([]models.Location, bool) { return f(routeID) }

// FramePublisher renders store snapshots and forwards them to a sink. It satisfies
// fleet.SnapshotPublisher.
type FramePublisher struct {
	sink    Sink
	pending PendingSource
}

// NewFramePublisher creates a publisher. pending may be nil.
func NewFramePublisher(sink Sink, pending PendingSource) *FramePublisher {
	return &FramePublisher{sink: sink, pending: pending}
}

func (p *FramePublisher) PublishSnapshot(ctx context.Context, snap fleet.Snapshot) error {
	var pending map[string][]models.Location
	if p.pending != nil && len(snap.PendingDetours) > 0 {
		pending = make(map[string][]models.Location, len(snap.PendingDetours))
		for _, id := range snap.PendingDetours {
			if line, ok := p.pending.PendingDetour(id); ok {
				pending[id] = line
			}
		}
	}
	return p.sink.PublishFrame(ctx, Build(snap, pending))
}
