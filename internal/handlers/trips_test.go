package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-control/internal/db"
	"github.com/ukydev/fleet-control/internal/models"
)

type mockTripLister struct {
	mock.Mock
}

func (m *mockTripLister) List(ctx context.Context, f db.TripFilter) ([]models.Trip, error) {
	args := m.Called(ctx, f)
	trips, _ := args.Get(0).([]models.Trip)
	return trips, args.Error(1)
}

func TestTripHandler_List(t *testing.T) {
	lister := &mockTripLister{}
	lister.On("List", mock.Anything, db.TripFilter{VehicleID: "veh-001", Limit: 10}).
		Return([]models.Trip{{VehicleID: "veh-001", RouteID: "rt-002"}}, nil)
	h := http.HandlerFunc(NewTripHandler(lister).List)

	w := do(t, h, http.MethodGet, "/api/trips?vehicle_id=veh-001&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trips []models.Trip
	decode(t, w, &trips)
	assert.Len(t, trips, 1)
	lister.AssertExpectations(t)
}

func TestTripHandler_Errors(t *testing.T) {
	lister := &mockTripLister{}
	lister.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	h := http.HandlerFunc(NewTripHandler(lister).List)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/trips?limit=-3", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodGet, "/api/trips", nil).Code)

	disabled := http.HandlerFunc(NewTripHandler(nil).List)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, disabled, http.MethodGet, "/api/trips", nil).Code)
}
