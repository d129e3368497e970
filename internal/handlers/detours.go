package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-control/internal/models"
)

// DetourHandler manages the propose/confirm/cancel cycle of route detours.
type DetourHandler struct {
	store FleetStore
}

// NewDetourHandler creates a detour handler.
func NewDetourHandler(store FleetStore) *DetourHandler {
	return &DetourHandler{store: store}
}

// ProposeRequest optionally names the point to avoid. Without it the route's incident is used.
type ProposeRequest struct {
	Avoid *models.Location `json:"avoid,omitempty"`
}

// DetourResponse describes a route's pending detour.
type DetourResponse struct {
	RouteID  string            `json:"route_id"`
	Pending  bool              `json:"pending"`
	Geometry []models.Location `json:"geometry,omitempty"`
}

// Get returns the pending detour for {id}.
func (h *DetourHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id := r.PathValue("id")
	if _, ok := h.store.Route(id); !ok {
		http.Error(w, "Route not found", http.StatusNotFound)
		return
	}
	line, ok := h.store.PendingDetour(id)
	writeJSON(w, http.StatusOK, DetourResponse{RouteID: id, Pending: ok, Geometry: line})
}

// Propose computes a detour for {id} and holds it until confirmed or cancelled.
func (h *DetourHandler) Propose(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id := r.PathValue("id")
	var req ProposeRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	var (
		line []models.Location
		ok   bool
	)
	if req.Avoid != nil {
		line, ok = h.store.ProposeDetourAround(id, *req.Avoid)
	} else {
		line, ok = h.store.ProposeDetour(id)
	}
	if !ok {
		http.Error(w, "Route not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, DetourResponse{RouteID: id, Pending: true, Geometry: line})
}

// Confirm applies the pending detour for {id}.
func (h *DetourHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id := r.PathValue("id")
	if !h.store.ConfirmDetour(id) {
		http.Error(w, "No pending detour", http.StatusConflict)
		return
	}
	route, _ := h.store.Route(id)
	writeJSON(w, http.StatusOK, route)
}

// Cancel discards the pending detour for {id}.
func (h *DetourHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !h.store.CancelDetour(r.PathValue("id")) {
		http.Error(w, "No pending detour", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
