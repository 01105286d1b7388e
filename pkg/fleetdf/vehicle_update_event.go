package fleetdf

import "time"

// VehicleUpdateEvent is the JSON event pushed to live map subscribers.
type VehicleUpdateEvent struct {
	Type string                 `json:"type"`
	Data VehicleUpdateEventData `json:"data"`
}

type VehicleUpdateEventData struct {
	VehicleID string    `json:"vehicle_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	Name  string `json:"name"`
	Color string `json:"color"`
}

const (
	VehicleUpdateEventTypeLocation = "location"
	VehicleUpdateEventTypeMeta     = "meta"
)
