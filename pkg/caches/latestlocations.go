package caches

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/fleetmap/fleetmap/pkg/fleetdf"
	"github.com/redis/go-redis/v9"
)

// LatestLocations absorbs repeated "current position of every vehicle"
// reads. The whole result set is cached as one value; invalidation is
// all-or-nothing.
type LatestLocations interface {
	Get(ctx context.Context) ([]fleetdf.VehicleSnapshot, bool)
	Set(ctx context.Context, snapshots []fleetdf.VehicleSnapshot)
	Invalidate(ctx context.Context)
}

const latestLocationsCacheKey = "latest_locations"

type RedisLatestLocations struct {
	cache *cache.Cache[string]
}

func NewRedisLatestLocations(client *redis.Client, ttl time.Duration) *RedisLatestLocations {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &RedisLatestLocations{
		cache: cache.New[string](redisStore),
	}
}

func (c *RedisLatestLocations) Get(ctx context.Context) ([]fleetdf.VehicleSnapshot, bool) {
	cached, err := c.cache.Get(ctx, latestLocationsCacheKey)
	if err != nil {
		return nil, false
	}

	var snapshots []fleetdf.VehicleSnapshot
	if err := json.Unmarshal([]byte(cached), &snapshots); err != nil {
		return nil, false
	}

	return snapshots, true
}

func (c *RedisLatestLocations) Set(ctx context.Context, snapshots []fleetdf.VehicleSnapshot) {
	jsonBytes, err := json.Marshal(snapshots)
	if err != nil {
		return
	}

	c.cache.Set(ctx, latestLocationsCacheKey, string(jsonBytes))
}

func (c *RedisLatestLocations) Invalidate(ctx context.Context) {
	c.cache.Delete(ctx, latestLocationsCacheKey)
}

// MemoryLatestLocations is the Redis-free variant used in tests.
type MemoryLatestLocations struct {
	mutex      sync.Mutex
	snapshots  []fleetdf.VehicleSnapshot
	capturedAt time.Time
	ttl        time.Duration
}

func NewMemoryLatestLocations(ttl time.Duration) *MemoryLatestLocations {
	return &MemoryLatestLocations{ttl: ttl}
}

func (c *MemoryLatestLocations) Get(ctx context.Context) ([]fleetdf.VehicleSnapshot, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.snapshots == nil || time.Since(c.capturedAt) > c.ttl {
		return nil, false
	}

	return c.snapshots, true
}

func (c *MemoryLatestLocations) Set(ctx context.Context, snapshots []fleetdf.VehicleSnapshot) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.snapshots = snapshots
	c.capturedAt = time.Now()
}

func (c *MemoryLatestLocations) Invalidate(ctx context.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.snapshots = nil
}
