package fleetdf

// VehicleSnapshot is a vehicle's latest reading joined with its display
// metadata, as served to dashboard clients.
type VehicleSnapshot struct {
	LocationReading `bson:",inline"`

	Name  string `json:"name" groups:"basic"`
	Color string `json:"color" groups:"basic"`
}
