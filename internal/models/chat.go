package models

import "time"

// ChatRole identifies who authored a chat message.
type ChatRole string

const (
	ChatUser      ChatRole = "user"
	ChatAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of the append-only assistant transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Table     *Table    `json:"table,omitempty"`
}

// TableKind names the structured payload carried by a message.
type TableKind string

const (
	TableRoutes     TableKind = "routes"
	TableVehicles   TableKind = "vehicles"
	TableWarehouses TableKind = "warehouses"
)

// Table is tabular data rendered under a chat message. Only the slice matching Kind is set.
type Table struct {
	Kind       TableKind      `json:"kind"`
	Routes     []RouteRow     `json:"routes,omitempty"`
	Vehicles   []VehicleRow   `json:"vehicles,omitempty"`
	Warehouses []WarehouseRow `json:"warehouses,omitempty"`
}

type RouteRow struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	Stops           int    `json:"stops"`
	StopsList       string `json:"stops_list"`
	AssignedVehicle string `json:"assigned_vehicle"`
	Status          string `json:"status"`
}

type VehicleRow struct {
	Alias          string `json:"alias"`
	LicensePlate   string `json:"license_plate"`
	Status         string `json:"status"`
	CurrentRoute   string `json:"current_route"`
	ETA            string `json:"eta"`
	StopsRemaining string `json:"stops_remaining"`
	Progress       string `json:"progress"`
}

type WarehouseRow struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	Coordinates    string `json:"coordinates"`
	OutboundRoutes int    `json:"outbound_routes"`
	InboundRoutes  int    `json:"inbound_routes"`
}
