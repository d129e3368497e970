package db

import (
	"context"
	"fmt"

	"github.com/ukydev/fleet-control/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultTripLimit caps List when the filter names no limit.
const DefaultTripLimit = 50

// TripFilter narrows a trip listing.
type TripFilter struct {
	VehicleID string
	RouteID   string
	Limit     int64
}

// TripArchive stores completed trips. It satisfies fleet.TripRecorder.
type TripArchive struct {
	coll TripCollection
}

// NewTripArchive returns an archive over coll.
func NewTripArchive(coll TripCollection) *TripArchive {
	return &TripArchive{coll: coll}
}

// RecordTrip archives one completed trip.
func (a *TripArchive) RecordTrip(ctx context.Context, trip models.Trip) error {
	if trip.Status == "" {
		trip.Status = "completed"
	}
	if err := a.coll.InsertTrip(ctx, trip); err != nil {
		return fmt.Errorf("insert trip for %s: %w", trip.VehicleID, err)
	}
	log.WithFields(log.Fields{
		"vehicle_id":  trip.VehicleID,
		"route_id":    trip.RouteID,
		"distance_km": trip.Distance,
	}).Info("Trip archived")
	return nil
}

// List returns archived trips, newest first.
func (a *TripArchive) List(ctx context.Context, f TripFilter) ([]models.Trip, error) {
	filter := bson.M{}
	if f.VehicleID != "" {
		filter["vehicle_id"] = f.VehicleID
	}
	if f.RouteID != "" {
		filter["route_id"] = f.RouteID
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultTripLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "end_time", Value: -1}}).SetLimit(limit)

	cursor, err := a.coll.FindTrips(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find trips: %w", err)
	}
	defer cursor.Close(ctx)

	trips := []models.Trip{}
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, fmt.Errorf("decode trips: %w", err)
	}
	return trips, nil
}
