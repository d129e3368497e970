package db

import (
	"context"

	"github.com/ukydev/fleet-control/internal/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TripCollection defines the interface for trip archive operations.
type TripCollection interface {
	InsertTrip(ctx context.Context, trip models.Trip) error
	FindTrips(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (TripCursor, error)
}

// TripCursor defines the interface for trip cursor operations.
type TripCursor interface {
	All(ctx context.Context, out interface{}) error
	Close(ctx context.Context) error
}
