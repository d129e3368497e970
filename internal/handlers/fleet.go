package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-control/internal/fleet"
	"github.com/ukydev/fleet-control/internal/models"
	"github.com/ukydev/fleet-control/internal/render"
)

// FleetStore is the store surface used by the fleet and detour handlers.
type FleetStore interface {
	Snapshot() fleet.Snapshot
	Vehicle(id string) (models.Vehicle, bool)
	Route(id string) (models.Route, bool)
	Dispatch(vehicleID, routeID string) bool
	CompleteOnboarding()
	ToggleRouteVisibility(routeID string) bool
	SetFocusedRoute(routeID string) bool
	SetFocusedWarehouse(id string) bool
	SetFocusedVehicle(id string) bool
	Traffic(routeID string) (models.TrafficState, bool)
	AllTraffic() []models.TrafficState
	PendingDetour(routeID string) ([]models.Location, bool)
	ProposeDetour(routeID string) ([]models.Location, bool)
	ProposeDetourAround(routeID string, avoid models.Location) ([]models.Location, bool)
	ConfirmDetour(routeID string) bool
	CancelDetour(routeID string) bool
	Subscribe() (<-chan fleet.Event, func())
}

// FleetHandler serves fleet state, render frames and operator commands.
type FleetHandler struct {
	store     FleetStore
	keepAlive time.Duration
}

// NewFleetHandler creates a fleet handler.
func NewFleetHandler(store FleetStore) *FleetHandler {
	return &FleetHandler{store: store, keepAlive: 15 * time.Second}
}

// DispatchRequest assigns a vehicle to a route.
type DispatchRequest struct {
	VehicleID string `json:"vehicle_id"`
	RouteID   string `json:"route_id"`
}

// FocusRequest selects a route, warehouse or vehicle. An empty ID clears that focus.
type FocusRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// State returns the full snapshot.
func (h *FleetHandler) State(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

// Frame returns the current map frame, including proposed detours.
func (h *FleetHandler) Frame(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	snap := h.store.Snapshot()
	pending := make(map[string][]models.Location, len(snap.PendingDetours))
	for _, id := range snap.PendingDetours {
		if line, ok := h.store.PendingDetour(id); ok {
			pending[id] = line
		}
	}
	writeJSON(w, http.StatusOK, render.Build(snap, pending))
}

// Traffic lists traffic for all routes, or one route with ?route_id=.
func (h *FleetHandler) Traffic(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if id := r.URL.Query().Get("route_id"); id != "" {
		st, ok := h.store.Traffic(id)
		if !ok {
			http.Error(w, "Route not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}
	writeJSON(w, http.StatusOK, h.store.AllTraffic())
}

// Dispatch assigns a vehicle to a route from its start.
func (h *FleetHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req DispatchRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.VehicleID == "" || req.RouteID == "" {
		http.Error(w, "vehicle_id and route_id are required", http.StatusBadRequest)
		return
	}
	if _, ok := h.store.Vehicle(req.VehicleID); !ok {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	if _, ok := h.store.Route(req.RouteID); !ok {
		http.Error(w, "Route not found", http.StatusNotFound)
		return
	}
	if !h.store.Dispatch(req.VehicleID, req.RouteID) {
		http.Error(w, "Vehicle cannot be dispatched", http.StatusConflict)
		return
	}
	v, _ := h.store.Vehicle(req.VehicleID)
	writeJSON(w, http.StatusOK, v)
}

// CompleteOnboarding closes the intro gate so the simulation starts running.
func (h *FleetHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	h.store.CompleteOnboarding()
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRoute flips visibility of the route named by the {id} path value.
func (h *FleetHandler) ToggleRoute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id := r.PathValue("id")
	if !h.store.ToggleRouteVisibility(id) {
		http.Error(w, "Route not found", http.StatusNotFound)
		return
	}
	snap := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"route_id": id,
		"visible":  snap.Visible(id),
		"focused":  snap.FocusedRouteID == id,
	})
}

// Focus changes the route, warehouse or vehicle selection.
func (h *FleetHandler) Focus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req FocusRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	var ok bool
	switch req.Kind {
	case "route":
		ok = h.store.SetFocusedRoute(req.ID)
	case "warehouse":
		ok = h.store.SetFocusedWarehouse(req.ID)
	case "vehicle":
		ok = h.store.SetFocusedVehicle(req.ID)
	default:
		http.Error(w, "kind must be route, warehouse or vehicle", http.StatusBadRequest)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown %s %q", req.Kind, req.ID), http.StatusNotFound)
		return
	}
	snap := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]string{
		"focused_route_id":     snap.FocusedRouteID,
		"focused_warehouse_id": snap.FocusedWarehouseID,
		"focused_vehicle_id":   snap.FocusedVehicleID,
	})
}

// Events streams store events as server-sent events until the client disconnects.
func (h *FleetHandler) Events(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	events, unsubscribe := h.store.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.WithError(err).WithField("kind", ev.Kind()).Warn("Failed to encode event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind(), data)
			flusher.Flush()
		}
	}
}
