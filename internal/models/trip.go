package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trip is the archive record of a vehicle finishing a route.
type Trip struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID      string             `json:"vehicle_id" bson:"vehicle_id"`
	VehicleAlias   string             `json:"vehicle_alias" bson:"vehicle_alias"`
	RouteID        string             `json:"route_id" bson:"route_id"`
	RouteName      string             `json:"route_name" bson:"route_name"`
	StartLocation  Location           `json:"start_location" bson:"start_location"`
	EndLocation    Location           `json:"end_location" bson:"end_location"`
	StartTime      time.Time          `json:"start_time" bson:"start_time"`
	EndTime        time.Time          `json:"end_time" bson:"end_time"`
	Distance       float64            `json:"distance" bson:"distance"` // in kilometers
	Duration       float64            `json:"duration" bson:"duration"` // in minutes
	StopsCompleted int                `json:"stops_completed" bson:"stops_completed"`
	StopsTotal     int                `json:"stops_total" bson:"stops_total"`
	Status         string             `json:"status" bson:"status"` // "completed"
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}
