package locationtracker

import (
	"math"
	"sync"
	"time"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
)

// UpdateGate decides, per vehicle, whether a canonical reading should be
// persisted and broadcast. It is a noise-suppression heuristic: state is
// in-memory only and resets on restart, so the first reading after a
// restart always passes.
type UpdateGate struct {
	mutex    sync.Mutex
	vehicles map[string]*gateState

	throttleWindow time.Duration
	spatialDelta   float64
}

type gateState struct {
	lastAcceptedAt time.Time
	lastLatitude   float64
	lastLongitude  float64
}

func NewUpdateGate(throttleWindow time.Duration, spatialDelta float64) *UpdateGate {
	return &UpdateGate{
		vehicles: map[string]*gateState{},

		throttleWindow: throttleWindow,
		spatialDelta:   spatialDelta,
	}
}

// ShouldAccept applies the time throttle and then the spatial dedup check,
// updating the per-vehicle state on acceptance. The reason string explains
// rejections for metrics and logging.
func (g *UpdateGate) ShouldAccept(reading *fleetdf.LocationReading, now time.Time) (bool, string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	state, seen := g.vehicles[reading.VehicleID]
	if !seen {
		g.vehicles[reading.VehicleID] = &gateState{
			lastAcceptedAt: now,
			lastLatitude:   reading.Latitude,
			lastLongitude:  reading.Longitude,
		}

		return true, "first_reading"
	}

	if now.Sub(state.lastAcceptedAt) < g.throttleWindow {
		return false, "throttled"
	}

	latitudeDelta := math.Abs(reading.Latitude - state.lastLatitude)
	longitudeDelta := math.Abs(reading.Longitude - state.lastLongitude)

	if latitudeDelta < g.spatialDelta && longitudeDelta < g.spatialDelta {
		return false, "unchanged"
	}

	state.lastAcceptedAt = now
	state.lastLatitude = reading.Latitude
	state.lastLongitude = reading.Longitude

	return true, "accepted"
}
