package fleet

import (
	"fmt"
	"strings"

	"github.com/ukydev/fleet-control/internal/geo"
	"github.com/ukydev/fleet-control/internal/models"
)

// Seed is the initial state a store is built from.
type Seed struct {
	Warehouses []models.Warehouse
	Routes     []models.Route
	Vehicles   []SeedVehicle
}

// SeedVehicle describes a vehicle at session start. In-route vehicles carry their
// starting progress; position and completed stops are derived from the route.
type SeedVehicle struct {
	ID             string
	Alias          string
	LicensePlate   string
	Status         models.VehicleStatus
	RouteID        string
	Progress       float64
	StopsRemaining int
	ETA            int
}

var routeColors = []string{
	"#3b82f6", // blue
	"#10b981", // green
	"#f59e0b", // amber
	"#8b5cf6", // violet
	"#ec4899", // pink
	"#14b8a6", // teal
}

func loc(lat, lng float64) models.Location { return models.Location{Lat: lat, Lng: lng} }

// DefaultSeed returns the San Diego demo fleet.
func DefaultSeed() Seed {
	return Seed{
		Warehouses: []models.Warehouse{
			{ID: "wh-001", Name: "Downtown Hub", Address: "1050 Kettner Blvd, San Diego, CA 92101", Coordinates: loc(32.7193, -117.1697)},
			{ID: "wh-002", Name: "Mission Valley Center", Address: "7510 Hazard Center Dr, San Diego, CA 92108", Coordinates: loc(32.7684, -117.1658)},
			{ID: "wh-003", Name: "La Jolla Depot", Address: "8950 Villa La Jolla Dr, La Jolla, CA 92037", Coordinates: loc(32.8715, -117.2120)},
			{ID: "wh-004", Name: "Chula Vista Distribution", Address: "555 Broadway, Chula Vista, CA 91910", Coordinates: loc(32.6400, -117.0842)},
		},
		Routes: []models.Route{
			{
				ID: "rt-001", Name: "RT-001 Downtown Circuit",
				OriginWarehouseID: "wh-001", DestinationWarehouseID: "wh-001", Color: routeColors[0],
				Stops: []models.RouteStop{
					{ID: "stop-001-1", StopNumber: 1, BusinessName: "Seaport Village Market", Address: "849 W Harbor Dr, San Diego, CA", Coordinates: loc(32.7091, -117.1709)},
					{ID: "stop-001-2", StopNumber: 2, BusinessName: "Gaslamp Quarter Store", Address: "345 Fifth Ave, San Diego, CA", Coordinates: loc(32.7113, -117.1604)},
					{ID: "stop-001-3", StopNumber: 3, BusinessName: "Little Italy Cafe", Address: "2210 India St, San Diego, CA", Coordinates: loc(32.7280, -117.1695)},
				},
			},
			{
				ID: "rt-002", Name: "RT-002 Mission Valley Express",
				OriginWarehouseID: "wh-001", DestinationWarehouseID: "wh-002", Color: routeColors[1],
				Stops: []models.RouteStop{
					{ID: "stop-002-1", StopNumber: 1, BusinessName: "Hillcrest Medical Plaza", Address: "3737 Fifth Ave, San Diego, CA", Coordinates: loc(32.7485, -117.1610)},
					{ID: "stop-002-2", StopNumber: 2, BusinessName: "Fashion Valley Shop", Address: "7007 Friars Rd, San Diego, CA", Coordinates: loc(32.7677, -117.1663)},
				},
			},
			{
				ID: "rt-003", Name: "RT-003 La Jolla Coastal",
				OriginWarehouseID: "wh-002", DestinationWarehouseID: "wh-003", Color: routeColors[2],
				Stops: []models.RouteStop{
					{ID: "stop-003-1", StopNumber: 1, BusinessName: "Pacific Beach Market", Address: "4150 Mission Blvd, San Diego, CA", Coordinates: loc(32.7815, -117.2521)},
					{ID: "stop-003-2", StopNumber: 2, BusinessName: "La Jolla Shores Store", Address: "8320 La Jolla Shores Dr, La Jolla, CA", Coordinates: loc(32.8570, -117.2565)},
				},
			},
			{
				ID: "rt-004", Name: "RT-004 South Bay Run",
				OriginWarehouseID: "wh-001", DestinationWarehouseID: "wh-004", Color: routeColors[3],
				Stops: []models.RouteStop{
					{ID: "stop-004-1", StopNumber: 1, BusinessName: "National City Plaza", Address: "1100 E Plaza Blvd, National City, CA", Coordinates: loc(32.6709, -117.0914)},
					{ID: "stop-004-2", StopNumber: 2, BusinessName: "Chula Vista Center", Address: "555 Broadway, Chula Vista, CA", Coordinates: loc(32.6279, -117.0813)},
				},
			},
			{
				ID: "rt-005", Name: "RT-005 North County Express",
				OriginWarehouseID: "wh-003", DestinationWarehouseID: "wh-002", Color: routeColors[4],
				Stops: []models.RouteStop{
					{ID: "stop-005-1", StopNumber: 1, BusinessName: "UTC Shopping Center", Address: "4545 La Jolla Village Dr, San Diego, CA", Coordinates: loc(32.8717, -117.2092)},
				},
			},
			{
				ID: "rt-006", Name: "RT-006 Coastal Return",
				OriginWarehouseID: "wh-004", DestinationWarehouseID: "wh-001", Color: routeColors[5],
				Stops: []models.RouteStop{
					{ID: "stop-006-1", StopNumber: 1, BusinessName: "Barrio Logan Market", Address: "2060 Logan Ave, San Diego, CA", Coordinates: loc(32.7015, -117.1363)},
					{ID: "stop-006-2", StopNumber: 2, BusinessName: "Coronado Bridge Store", Address: "1201 First St, Coronado, CA", Coordinates: loc(32.6859, -117.1831)},
				},
			},
		},
		Vehicles: []SeedVehicle{
			{ID: "veh-001", Alias: "U-23", LicensePlate: "CA-7721", Status: models.StatusInRoute, RouteID: "rt-002", Progress: 0.3, StopsRemaining: 2, ETA: 18},
			{ID: "veh-002", Alias: "U-45", LicensePlate: "CA-8832", Status: models.StatusInRoute, RouteID: "rt-004", Progress: 0.6, StopsRemaining: 1, ETA: 12},
			{ID: "veh-003", Alias: "U-67", LicensePlate: "CA-9943", Status: models.StatusInRoute, RouteID: "rt-001", Progress: 0.15, StopsRemaining: 3, ETA: 25},
			{ID: "veh-004", Alias: "U-12", LicensePlate: "CA-5544", Status: models.StatusAvailable},
			{ID: "veh-005", Alias: "U-89", LicensePlate: "CA-3355", Status: models.StatusIdle},
			{ID: "veh-006", Alias: "U-34", LicensePlate: "CA-6677", Status: models.StatusAvailable},
			{ID: "veh-007", Alias: "U-56", LicensePlate: "CA-2211", Status: models.StatusIdle},
			{ID: "veh-008", Alias: "U-78", LicensePlate: "CA-4499", Status: models.StatusMaintenance},
			{ID: "veh-009", Alias: "U-90", LicensePlate: "CA-8800", Status: models.StatusAvailable},
			{ID: "veh-010", Alias: "U-11", LicensePlate: "CA-1122", Status: models.StatusIdle},
		},
	}
}

// buildVehicle materializes a seed vehicle. An in-route vehicle whose route is unknown
// starts idle.
func buildVehicle(sv SeedVehicle, routes map[string]models.Route) models.Vehicle {
	v := models.Vehicle{ID: sv.ID, Alias: sv.Alias, LicensePlate: sv.LicensePlate, Status: sv.Status}
	if sv.Status != models.StatusInRoute {
		return v
	}
	route, ok := routes[sv.RouteID]
	if !ok {
		v.Status = models.StatusIdle
		return v
	}
	a := models.Assignment{
		RouteID:        route.ID,
		Progress:       sv.Progress,
		StopsRemaining: sv.StopsRemaining,
		ETA:            sv.ETA,
	}
	if len(route.Geometry) > 0 {
		a.Position = geo.Interpolate(route.Geometry, sv.Progress)
	}
	served := len(route.Stops) - sv.StopsRemaining
	for i := 0; i < served && i < len(route.Stops); i++ {
		a.CompletedStops = append(a.CompletedStops, route.Stops[i].ID)
	}
	v.Assign(a)
	return v
}

const welcomeText = "Welcome to Fleet Control. Ask me about vehicles, routes, or warehouses. I can also help you dispatch vehicles and control the map."

// DescribeVehicle renders the markdown card the assistant uses for a single vehicle.
func DescribeVehicle(v models.Vehicle, routes map[string]models.Route, warehouses map[string]models.Warehouse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (License: %s)\n• **Status:** %s", v.Alias, v.LicensePlate, v.Status)
	if v.Assignment == nil {
		b.WriteString("\n• **Current Route:** —")
		return b.String()
	}
	route, ok := routes[v.Assignment.RouteID]
	if !ok {
		b.WriteString("\n• **Current Route:** —")
	} else {
		fmt.Fprintf(&b, "\n• **Current Route:** %s", route.Name)
		origin, okO := warehouses[route.OriginWarehouseID]
		dest, okD := warehouses[route.DestinationWarehouseID]
		if okO && okD {
			fmt.Fprintf(&b, "\n• **From/To:** %s → %s", origin.Name, dest.Name)
		}
	}
	if v.Assignment.ETA > 0 {
		fmt.Fprintf(&b, "\n• **ETA:** %d min", v.Assignment.ETA)
	}
	fmt.Fprintf(&b, "\n• **Stops Remaining:** %d", v.Assignment.StopsRemaining)
	return b.String()
}

// seedTranscript opens the session with a welcome and a demo exchange about U-67.
func seedTranscript(vehicles []models.Vehicle, routes map[string]models.Route, warehouses map[string]models.Warehouse) []models.ChatMessage {
	demo := "I could not find vehicle U-67."
	for _, v := range vehicles {
		if v.Alias == "U-67" {
			demo = DescribeVehicle(v, routes, warehouses)
			break
		}
	}
	return []models.ChatMessage{
		{ID: "welcome-msg", Role: models.ChatAssistant, Content: welcomeText},
		{ID: "demo-user", Role: models.ChatUser, Content: "Show me where the U-67 vehicle is"},
		{ID: "demo-assistant", Role: models.ChatAssistant, Content: demo},
	}
}
