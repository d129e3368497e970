package assistant

import (
	"fmt"
	"math"
	"strings"

	"github.com/ukydev/fleet-control/internal/fleet"
	"github.com/ukydev/fleet-control/internal/models"
)

// SuggestBestVehicle returns the first available or idle vehicle.
func SuggestBestVehicle(vehicles []models.Vehicle) (models.Vehicle, bool) {
	for _, v := range vehicles {
		if v.Status == models.StatusAvailable || v.Status == models.StatusIdle {
			return v, true
		}
	}
	return models.Vehicle{}, false
}

const maxSuggestions = 3

// AnalyzeEfficiency summarizes route utilization and proposes up to three assignments of
// free vehicles to routes nobody is driving.
func AnalyzeEfficiency(routes []models.Route, vehicles []models.Vehicle) string {
	assigned := make(map[string]bool)
	active := make(map[string]bool)
	var free []models.Vehicle
	for _, v := range vehicles {
		if rid := v.RouteID(); rid != "" {
			assigned[rid] = true
			if v.InRoute() {
				active[rid] = true
			}
		}
		if v.Status == models.StatusAvailable || v.Status == models.StatusIdle {
			free = append(free, v)
		}
	}
	activeCount := 0
	var inactive []models.Route
	for _, r := range routes {
		if active[r.ID] {
			activeCount++
		}
		if !assigned[r.ID] {
			inactive = append(inactive, r)
		}
	}

	var b strings.Builder
	b.WriteString("Fleet Efficiency Analysis:\n\n")
	fmt.Fprintf(&b, "Active Routes: %d/%d\n", activeCount, len(routes))
	fmt.Fprintf(&b, "Available Vehicles: %d/%d\n", len(free), len(vehicles))
	fmt.Fprintf(&b, "Inactive Routes: %d\n\n", len(inactive))

	switch {
	case len(inactive) > 0 && len(free) > 0:
		fmt.Fprintf(&b, "Recommendation: You have %d available vehicles and %d inactive routes. ", len(free), len(inactive))
		b.WriteString("Consider dispatching vehicles to optimize fleet utilization.\n")
		b.WriteString("\nSuggested assignments:\n")
		n := min(len(inactive), len(free), maxSuggestions)
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "- %s → %s\n", free[i].Alias, inactive[i].Name)
		}
	case len(free) == 0:
		b.WriteString("All vehicles are currently deployed or under maintenance. Fleet is at full capacity.")
	default:
		b.WriteString("Fleet is operating efficiently with good vehicle-to-route distribution.")
	}
	return b.String()
}

func assignedVehicle(routeID string, vehicles []models.Vehicle) (models.Vehicle, bool) {
	for _, v := range vehicles {
		if v.RouteID() == routeID {
			return v, true
		}
	}
	return models.Vehicle{}, false
}

func stopNames(r models.Route) string {
	names := make([]string, len(r.Stops))
	for i, s := range r.Stops {
		names[i] = s.BusinessName
	}
	return strings.Join(names, ", ")
}

func warehouseName(id string, warehouses map[string]models.Warehouse) string {
	if w, ok := warehouses[id]; ok {
		return w.Name
	}
	return "Unknown"
}

func percent(p float64) int { return int(math.Round(p * 100)) }

// BuildContext renders the plain-text fleet snapshot sent along with every model query.
func BuildContext(snap fleet.Snapshot) string {
	routes := snap.RouteMap()
	warehouses := snap.WarehouseMap()

	var b strings.Builder
	b.WriteString("FLEET MANAGEMENT SYSTEM DATA:\n\n")

	fmt.Fprintf(&b, "=== VEHICLES (%d total) ===\n", len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		fmt.Fprintf(&b, "- %s (ID: %s, License: %s)\n  Status: %s\n", v.Alias, v.ID, v.LicensePlate, v.Status)
		if a := v.Assignment; a != nil {
			name := a.RouteID
			if r, ok := routes[a.RouteID]; ok {
				name = r.Name
			}
			fmt.Fprintf(&b, "  Current Route: %s\n  ETA: %d minutes\n  Stops Remaining: %d\n  Progress: %d%%\n",
				name, a.ETA, a.StopsRemaining, percent(a.Progress))
		}
	}

	fmt.Fprintf(&b, "\n=== ROUTES (%d total) ===\n", len(snap.Routes))
	for i, r := range snap.Routes {
		if i > 0 {
			b.WriteString("\n")
		}
		assigned := "None"
		status := "Available"
		if v, ok := assignedVehicle(r.ID, snap.Vehicles); ok {
			assigned = v.Alias
			status = "Active"
		}
		fmt.Fprintf(&b, "- %s (%s)\n  Origin: %s\n  Destination: %s\n  Stops: %d (%s)\n  Assigned Vehicle: %s\n  Status: %s\n",
			strings.ToUpper(r.ID), r.Name,
			warehouseName(r.OriginWarehouseID, warehouses),
			warehouseName(r.DestinationWarehouseID, warehouses),
			len(r.Stops), stopNames(r), assigned, status)
	}

	fmt.Fprintf(&b, "\n=== WAREHOUSES (%d total) ===\n", len(snap.Warehouses))
	for i, w := range snap.Warehouses {
		if i > 0 {
			b.WriteString("\n")
		}
		out, in := routeCounts(w.ID, snap.Routes)
		fmt.Fprintf(&b, "- %s (%s)\n  Address: %s\n  Coordinates: %v, %v\n  Outbound Routes: %d\n  Inbound Routes: %d\n",
			strings.ToUpper(w.ID), w.Name, w.Address, w.Coordinates.Lat, w.Coordinates.Lng, out, in)
	}

	b.WriteString("\n=== EFFICIENCY ANALYSIS ===\n")
	b.WriteString(AnalyzeEfficiency(snap.Routes, snap.Vehicles))

	b.WriteString("\n\n=== TRAFFIC ===\n")
	for _, t := range snap.Traffic {
		name := t.RouteID
		if r, ok := routes[t.RouteID]; ok {
			name = r.Name
		}
		fmt.Fprintf(&b, "- %s: %s", name, t.Status)
		if t.DelayMinutes > 0 {
			fmt.Fprintf(&b, " (+%d min)", t.DelayMinutes)
		}
		if t.Status != models.TrafficNormal {
			fmt.Fprintf(&b, ", incident near %.4f, %.4f", t.Incident.Lat, t.Incident.Lng)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func routeCounts(warehouseID string, routes []models.Route) (outbound, inbound int) {
	for _, r := range routes {
		if r.OriginWarehouseID == warehouseID {
			outbound++
		}
		if r.DestinationWarehouseID == warehouseID {
			inbound++
		}
	}
	return outbound, inbound
}

// RouteTable lists every route with its assignment.
func RouteTable(snap fleet.Snapshot) *models.Table {
	warehouses := snap.WarehouseMap()
	rows := make([]models.RouteRow, 0, len(snap.Routes))
	for _, r := range snap.Routes {
		row := models.RouteRow{
			ID:              strings.ToUpper(r.ID),
			Name:            r.Name,
			Origin:          warehouseName(r.OriginWarehouseID, warehouses),
			Destination:     warehouseName(r.DestinationWarehouseID, warehouses),
			Stops:           len(r.Stops),
			StopsList:       stopNames(r),
			AssignedVehicle: "None",
			Status:          "Available",
		}
		if v, ok := assignedVehicle(r.ID, snap.Vehicles); ok {
			row.AssignedVehicle = v.Alias
			row.Status = "Active"
		}
		rows = append(rows, row)
	}
	return &models.Table{Kind: models.TableRoutes, Routes: rows}
}

// VehicleTable lists every vehicle; route fields show a dash when unassigned.
func VehicleTable(snap fleet.Snapshot) *models.Table {
	routes := snap.RouteMap()
	rows := make([]models.VehicleRow, 0, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		row := models.VehicleRow{
			Alias:          v.Alias,
			LicensePlate:   v.LicensePlate,
			Status:         string(v.Status),
			CurrentRoute:   "—",
			ETA:            "—",
			StopsRemaining: "—",
			Progress:       "—",
		}
		if a := v.Assignment; a != nil {
			if r, ok := routes[a.RouteID]; ok {
				row.CurrentRoute = r.Name
			}
			if a.ETA > 0 {
				row.ETA = fmt.Sprintf("%d min", a.ETA)
			}
			if a.StopsRemaining > 0 {
				row.StopsRemaining = fmt.Sprintf("%d", a.StopsRemaining)
			}
			if a.Progress > 0 {
				row.Progress = fmt.Sprintf("%d%%", percent(a.Progress))
			}
		}
		rows = append(rows, row)
	}
	return &models.Table{Kind: models.TableVehicles, Vehicles: rows}
}

// WarehouseTable lists every warehouse with its route counts.
func WarehouseTable(snap fleet.Snapshot) *models.Table {
	rows := make([]models.WarehouseRow, 0, len(snap.Warehouses))
	for _, w := range snap.Warehouses {
		out, in := routeCounts(w.ID, snap.Routes)
		rows = append(rows, models.WarehouseRow{
			ID:             strings.ToUpper(w.ID),
			Name:           w.Name,
			Address:        w.Address,
			Coordinates:    fmt.Sprintf("%.4f, %.4f", w.Coordinates.Lat, w.Coordinates.Lng),
			OutboundRoutes: out,
			InboundRoutes:  in,
		})
	}
	return &models.Table{Kind: models.TableWarehouses, Warehouses: rows}
}

// listTable answers "list ..." and "show all ..." queries locally.
func listTable(lower string, snap fleet.Snapshot) (string, *models.Table, bool) {
	if !(strings.Contains(lower, "list") || strings.Contains(lower, "show all") ||
		strings.Contains(lower, "all routes") || strings.Contains(lower, "all vehicles") ||
		strings.Contains(lower, "all warehouses")) {
		return "", nil, false
	}
	switch {
	case strings.Contains(lower, "route"):
		return "Here are all the routes in the system:", RouteTable(snap), true
	case strings.Contains(lower, "vehicle"):
		return "Here are all the vehicles in the fleet:", VehicleTable(snap), true
	case strings.Contains(lower, "warehouse"):
		return "Here are all the warehouses:", WarehouseTable(snap), true
	}
	return "", nil, false
}

// trafficAnswer reports current traffic without consulting the model.
func trafficAnswer(lower string, snap fleet.Snapshot) (string, bool) {
	if !containsAny(lower, "traffic", "jam", "congestion", "delay") {
		return "", false
	}
	routes := snap.RouteMap()
	if id := routeIDIn(lower); id != "" {
		r, ok := routes[id]
		if !ok {
			return fmt.Sprintf("I couldn't find route %s.", strings.ToUpper(id)), true
		}
		st, ok := snap.TrafficMap()[id]
		if !ok {
			return fmt.Sprintf("No traffic data yet for %s.", r.Name), true
		}
		return describeTraffic(r.Name, st), true
	}

	var b strings.Builder
	b.WriteString("**Current Traffic**\n")
	incidents := 0
	for _, st := range snap.Traffic {
		name := st.RouteID
		if r, ok := routes[st.RouteID]; ok {
			name = r.Name
		}
		fmt.Fprintf(&b, "• %s\n", describeTraffic(name, st))
		if st.Status != models.TrafficNormal {
			incidents++
		}
	}
	if incidents == 0 {
		b.WriteString("\nAll routes are flowing normally.")
	} else {
		fmt.Fprintf(&b, "\n%d route(s) affected. Ask me to reroute a closed route to avoid the incident.", incidents)
	}
	return b.String(), true
}

func describeTraffic(name string, st models.TrafficState) string {
	switch st.Status {
	case models.TrafficClosed:
		return fmt.Sprintf("**%s:** closed, +%d min (incident near %.4f, %.4f)", name, st.DelayMinutes, st.Incident.Lat, st.Incident.Lng)
	case models.TrafficHeavy:
		return fmt.Sprintf("**%s:** heavy traffic, +%d min", name, st.DelayMinutes)
	default:
		return fmt.Sprintf("**%s:** normal", name)
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
