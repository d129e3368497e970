package handlers

import (
	"context"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-control/internal/db"
	"github.com/ukydev/fleet-control/internal/models"
)

// TripLister reads the completed-trip archive.
type TripLister interface {
	List(ctx context.Context, f db.TripFilter) ([]models.Trip, error)
}

// TripHandler serves the trip archive. A nil archive answers 503.
type TripHandler struct {
	archive TripLister
}

// NewTripHandler creates a trip handler.
func NewTripHandler(archive TripLister) *TripHandler {
	return &TripHandler{archive: archive}
}

// List supports ?vehicle_id=, ?route_id= and ?limit=.
func (h *TripHandler) List(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.archive == nil {
		http.Error(w, "Trip archive not configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	filter := db.TripFilter{VehicleID: q.Get("vehicle_id"), RouteID: q.Get("route_id")}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.ParseInt(l, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	trips, err := h.archive.List(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("Failed to list trips")
		http.Error(w, "Failed to list trips", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trips)
}
