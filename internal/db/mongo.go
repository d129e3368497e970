package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-control/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNilCollection is returned when a MongoCollection has no backing collection.
var ErrNilCollection = errors.New("mongo collection is nil")

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoCollection wraps a MongoDB collection for trip operations.
type MongoCollection struct {
	Collection *mongo.Collection
}

// InsertTrip inserts a trip record into the collection.
func (c *MongoCollection) InsertTrip(ctx context.Context, trip models.Trip) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = time.Now()
	}
	_, err := c.Collection.InsertOne(ctx, trip)
	return err
}

// FindTrips queries trip records from the collection.
func (c *MongoCollection) FindTrips(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (TripCursor, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	cursor, err := c.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return &mongoTripCursor{cursor: cursor}, nil
}

type mongoTripCursor struct {
	cursor *mongo.Cursor
}

func (c *mongoTripCursor) All(ctx context.Context, out interface{}) error {
	return c.cursor.All(ctx, out)
}

func (c *mongoTripCursor) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}
