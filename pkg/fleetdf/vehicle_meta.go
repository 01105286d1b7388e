package fleetdf

import (
	"strings"
	"time"
)

// AssetIDPrefix disambiguates "asset" class entities from vehicles within
// the shared identifier namespace.
const AssetIDPrefix = "asset-"

const (
	DefaultVehicleColor = "#2563eb"
	DefaultAssetColor   = "#f59e0b"
)

type TelemetryClass string

const (
	TelemetryClassVehicles TelemetryClass = "vehicles"
	TelemetryClassAssets   TelemetryClass = "assets"
)

type VehicleMeta struct {
	VehicleID string    `json:"vehicle_id" bson:"vehicleid" groups:"basic"`
	Name      string    `json:"name" bson:"name" groups:"basic"`
	Color     string    `json:"color" bson:"color" groups:"basic"`
	CreatedAt time.Time `json:"created_at" bson:"createdat" groups:"detailed"`
}

// DefaultColorForID returns the display color used when a vehicle has no
// explicit VehicleMeta record.
func DefaultColorForID(vehicleID string) string {
	if strings.HasPrefix(vehicleID, AssetIDPrefix) {
		return DefaultAssetColor
	}

	return DefaultVehicleColor
}

func (c TelemetryClass) DefaultColor() string {
	if c == TelemetryClassAssets {
		return DefaultAssetColor
	}

	return DefaultVehicleColor
}
