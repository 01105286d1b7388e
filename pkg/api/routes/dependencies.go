package routes

import (
	"github.com/fleetmap/fleetmap/pkg/broadcast"
	"github.com/fleetmap/fleetmap/pkg/caches"
	"github.com/fleetmap/fleetmap/pkg/realtime/locationtracker"
	"github.com/fleetmap/fleetmap/pkg/repository"
)

// Dependencies carries the shared components of the running process into
// the route handlers. Everything is constructed once at startup and passed
// down - no route reaches for ambient globals.
type Dependencies struct {
	LocationRepo repository.LocationRepository
	VehicleRepo  repository.VehicleRepository

	Metadata *caches.Metadata
	Latest   caches.LatestLocations

	Hub      *broadcast.Hub
	Pipeline *locationtracker.Pipeline

	WebhookSecret string
}
