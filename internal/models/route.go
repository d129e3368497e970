package models

// Warehouse is a static depot that routes start from and end at.
type Warehouse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Coordinates Location `json:"coordinates"`
}

// RouteStop is a business stop served along a route.
type RouteStop struct {
	ID           string   `json:"id"`
	StopNumber   int      `json:"stop_number"`
	BusinessName string   `json:"business_name"`
	Address      string   `json:"address"`
	Coordinates  Location `json:"coordinates"`
}

// Route is a saved delivery route. Geometry is the polyline vehicles follow; stops are
// ordered along it but not indexed into it.
type Route struct {
	ID                     string      `json:"id"`
	Name                   string      `json:"name"`
	OriginWarehouseID      string      `json:"origin_warehouse_id"`
	DestinationWarehouseID string      `json:"destination_warehouse_id"`
	Stops                  []RouteStop `json:"stops"`
	Geometry               []Location  `json:"geometry"`
	Color                  string      `json:"color"`
}

// Clone returns a deep copy of the route.
func (r Route) Clone() Route {
	out := r
	out.Stops = append([]RouteStop(nil), r.Stops...)
	out.Geometry = append([]Location(nil), r.Geometry...)
	return out
}

// Waypoints returns origin, stops and destination in travel order. Unknown warehouses are
// omitted.
func (r Route) Waypoints(warehouses map[string]Warehouse) []Location {
	pts := make([]Location, 0, len(r.Stops)+2)
	if w, ok := warehouses[r.OriginWarehouseID]; ok {
		pts = append(pts, w.Coordinates)
	}
	for _, s := range r.Stops {
		pts = append(pts, s.Coordinates)
	}
	if w, ok := warehouses[r.DestinationWarehouseID]; ok {
		pts = append(pts, w.Coordinates)
	}
	return pts
}
