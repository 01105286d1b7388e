package fleetdf

import (
	"math"
	"time"
)

// KphToMphFactor converts kilometres-per-hour into the canonical
// miles-per-hour speed unit.
const KphToMphFactor = 0.621371

type LocationReading struct {
	VehicleID string  `json:"vehicle_id" bson:"vehicleid" groups:"basic"`
	Latitude  float64 `json:"latitude" bson:"latitude" groups:"basic"`
	Longitude float64 `json:"longitude" bson:"longitude" groups:"basic"`
	Speed     float64 `json:"speed" bson:"speed" groups:"basic"`
	Heading   float64 `json:"heading" bson:"heading" groups:"basic"`
	Status    string  `json:"status" bson:"status" groups:"basic"`

	// Timestamp is when the position was observed upstream, ReceivedAt is
	// when we persisted it. They are not in the same order across readings.
	Timestamp  time.Time `json:"timestamp" bson:"timestamp" groups:"basic"`
	ReceivedAt time.Time `json:"received_at" bson:"receivedat" groups:"detailed"`
}

// HasFix reports whether the coordinates look like a real GPS fix.
// An exact (0, 0) is treated as the upstream "no fix" sentinel.
func (r *LocationReading) HasFix() bool {
	if math.IsNaN(r.Latitude) || math.IsInf(r.Latitude, 0) {
		return false
	}
	if math.IsNaN(r.Longitude) || math.IsInf(r.Longitude, 0) {
		return false
	}

	return !(r.Latitude == 0 && r.Longitude == 0)
}
