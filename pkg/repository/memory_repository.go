package repository

import (
	"sync"
	"time"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
)

// In-memory implementations used in tests and local development.

type MemoryLocationRepository struct {
	mutex    sync.RWMutex
	readings map[string][]*fleetdf.LocationReading
}

func NewMemoryLocationRepository() *MemoryLocationRepository {
	return &MemoryLocationRepository{
		readings: map[string][]*fleetdf.LocationReading{},
	}
}

func (r *MemoryLocationRepository) Append(reading *fleetdf.LocationReading) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	copied := *reading
	r.readings[reading.VehicleID] = append(r.readings[reading.VehicleID], &copied)
	return nil
}

func (r *MemoryLocationRepository) LatestForVehicle(vehicleID string) (*fleetdf.LocationReading, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return latestOf(r.readings[vehicleID]), nil
}

func (r *MemoryLocationRepository) LatestAll() ([]*fleetdf.LocationReading, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest []*fleetdf.LocationReading
	for _, vehicleReadings := range r.readings {
		if reading := latestOf(vehicleReadings); reading != nil {
			latest = append(latest, reading)
		}
	}

	return latest, nil
}

func (r *MemoryLocationRepository) History(vehicleID string, since time.Time, limit int64) ([]*fleetdf.LocationReading, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var history []*fleetdf.LocationReading
	for i := len(r.readings[vehicleID]) - 1; i >= 0; i-- {
		reading := r.readings[vehicleID][i]

		if !since.IsZero() && reading.Timestamp.Before(since) {
			continue
		}

		history = append(history, reading)

		if limit > 0 && int64(len(history)) >= limit {
			break
		}
	}

	return history, nil
}

func (r *MemoryLocationRepository) DeleteForVehicle(vehicleID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.readings, vehicleID)
	return nil
}

// Count reports the number of stored readings for a vehicle.
func (r *MemoryLocationRepository) Count(vehicleID string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.readings[vehicleID])
}

func latestOf(readings []*fleetdf.LocationReading) *fleetdf.LocationReading {
	var latest *fleetdf.LocationReading
	for _, reading := range readings {
		if latest == nil || reading.Timestamp.After(latest.Timestamp) {
			latest = reading
		}
	}

	return latest
}

type MemoryVehicleRepository struct {
	mutex sync.RWMutex
	metas map[string]*fleetdf.VehicleMeta
}

func NewMemoryVehicleRepository() *MemoryVehicleRepository {
	return &MemoryVehicleRepository{
		metas: map[string]*fleetdf.VehicleMeta{},
	}
}

func (r *MemoryVehicleRepository) Ensure(meta *fleetdf.VehicleMeta) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.metas[meta.VehicleID]; exists {
		return nil
	}

	copied := *meta
	r.metas[meta.VehicleID] = &copied
	return nil
}

func (r *MemoryVehicleRepository) Save(meta *fleetdf.VehicleMeta) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, exists := r.metas[meta.VehicleID]; exists {
		existing.Name = meta.Name
		existing.Color = meta.Color
		return nil
	}

	copied := *meta
	r.metas[meta.VehicleID] = &copied
	return nil
}

func (r *MemoryVehicleRepository) Get(vehicleID string) (*fleetdf.VehicleMeta, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	meta, exists := r.metas[vehicleID]
	if !exists {
		return nil, nil
	}

	copied := *meta
	return &copied, nil
}

func (r *MemoryVehicleRepository) All() ([]*fleetdf.VehicleMeta, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var metas []*fleetdf.VehicleMeta
	for _, meta := range r.metas {
		copied := *meta
		metas = append(metas, &copied)
	}

	return metas, nil
}

func (r *MemoryVehicleRepository) Delete(vehicleID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.metas, vehicleID)
	return nil
}
