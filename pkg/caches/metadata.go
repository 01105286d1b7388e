package caches

import (
	"sync"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
)

// Metadata keeps every vehicle's display identity in memory so ingestion
// never needs a storage round-trip per reading. It is seeded once at
// startup and updated synchronously with every metadata write. Entries are
// never evicted.
type Metadata struct {
	mutex   sync.RWMutex
	entries map[string]fleetdf.VehicleMeta
}

func NewMetadata() *Metadata {
	return &Metadata{
		entries: map[string]fleetdf.VehicleMeta{},
	}
}

// Seed loads the cache from a full metadata scan.
func (m *Metadata) Seed(metas []*fleetdf.VehicleMeta) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, meta := range metas {
		m.entries[meta.VehicleID] = *meta
	}
}

// Get returns the display name and color for a vehicle. A miss is never an
// error - the id itself and the class default color are returned instead.
func (m *Metadata) Get(vehicleID string) (string, string) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if entry, exists := m.entries[vehicleID]; exists {
		return entry.Name, entry.Color
	}

	return vehicleID, fleetdf.DefaultColorForID(vehicleID)
}

// Has reports whether this vehicle id has ever been seen.
func (m *Metadata) Has(vehicleID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, exists := m.entries[vehicleID]
	return exists
}

func (m *Metadata) Set(meta *fleetdf.VehicleMeta) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries[meta.VehicleID] = *meta
}

func (m *Metadata) Delete(vehicleID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.entries, vehicleID)
}
