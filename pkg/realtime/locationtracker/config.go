package locationtracker

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds the tracker tuning knobs. The throttle window and spatial
// delta are noise-suppression heuristics, not accuracy requirements.
type Config struct {
	PollInterval        time.Duration
	PageSize            int
	ThrottleWindow      time.Duration
	SpatialDeltaDegrees float64
	LatestCacheTTL      time.Duration
	PollLogCapacity     int
}

var defaultConfig = Config{
	PollInterval:        60 * time.Second,
	PageSize:            100,
	ThrottleWindow:      30 * time.Second,
	SpatialDeltaDegrees: 0.0001,
	LatestCacheTTL:      10 * time.Second,
	PollLogCapacity:     50,
}

type fileConfig struct {
	PollInterval        string  `yaml:"poll_interval"`
	PageSize            int     `yaml:"page_size"`
	ThrottleWindow      string  `yaml:"throttle_window"`
	SpatialDeltaDegrees float64 `yaml:"spatial_delta_degrees"`
	LatestCacheTTL      string  `yaml:"latest_cache_ttl"`
	PollLogCapacity     int     `yaml:"poll_log_capacity"`
}

// GetConfig returns the tracker configuration: defaults, overlaid with the
// optional YAML file named by FLEETMAP_TRACKER_CONFIG, overlaid with
// FLEETMAP_TRACKER_* environment variables.
func GetConfig() Config {
	config := defaultConfig

	if path := os.Getenv("FLEETMAP_TRACKER_CONFIG"); path != "" {
		config = loadConfigFile(config, path)
	}

	if val := os.Getenv("FLEETMAP_TRACKER_POLL_INTERVAL"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.PollInterval = parsed
		}
	}

	if val := os.Getenv("FLEETMAP_TRACKER_PAGE_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.PageSize = parsed
		}
	}

	if val := os.Getenv("FLEETMAP_TRACKER_THROTTLE_WINDOW"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.ThrottleWindow = parsed
		}
	}

	if val := os.Getenv("FLEETMAP_TRACKER_SPATIAL_DELTA"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.SpatialDeltaDegrees = parsed
		}
	}

	if val := os.Getenv("FLEETMAP_TRACKER_LATEST_CACHE_TTL"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.LatestCacheTTL = parsed
		}
	}

	if val := os.Getenv("FLEETMAP_TRACKER_POLL_LOG_CAPACITY"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.PollLogCapacity = parsed
		}
	}

	return config
}

func loadConfigFile(config Config, path string) Config {
	yamlBytes, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to read tracker config file")
		return config
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(yamlBytes, &parsed); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to parse tracker config file")
		return config
	}

	if parsed.PollInterval != "" {
		if d, err := time.ParseDuration(parsed.PollInterval); err == nil {
			config.PollInterval = d
		}
	}
	if parsed.PageSize > 0 {
		config.PageSize = parsed.PageSize
	}
	if parsed.ThrottleWindow != "" {
		if d, err := time.ParseDuration(parsed.ThrottleWindow); err == nil {
			config.ThrottleWindow = d
		}
	}
	if parsed.SpatialDeltaDegrees > 0 {
		config.SpatialDeltaDegrees = parsed.SpatialDeltaDegrees
	}
	if parsed.LatestCacheTTL != "" {
		if d, err := time.ParseDuration(parsed.LatestCacheTTL); err == nil {
			config.LatestCacheTTL = d
		}
	}
	if parsed.PollLogCapacity > 0 {
		config.PollLogCapacity = parsed.PollLogCapacity
	}

	return config
}
