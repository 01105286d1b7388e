package locationtracker

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/fleetmap/fleetmap/pkg/fleetapi"
	"github.com/fleetmap/fleetmap/pkg/fleetdf"
)

var (
	// ErrMalformedPayload means no known payload shape carried a parseable
	// coordinate pair. Callers skip the record, never the batch.
	ErrMalformedPayload = errors.New("no known payload shape matched")

	// ErrNoFix marks the (0, 0) coordinate sentinel.
	ErrNoFix = errors.New("coordinates report no GPS fix")
)

// UnknownVehicleID attributes records whose id could not be extracted.
// Degraded attribution still beats dropping the reading.
const UnknownVehicleID = "unknown"

// shapeMatch is the outcome of one payload shape matcher: the coordinate
// pair plus the record scope that carries the motion fields alongside it.
type shapeMatch struct {
	Latitude  float64
	Longitude float64
	Fields    fleetapi.RawRecord
}

// payloadShapes are tried in priority order. First shape with both
// coordinates parseable wins. The shapes come from three generations of the
// upstream API plus the legacy webhook format.
var payloadShapes = []func(fleetapi.RawRecord) *shapeMatch{
	matchFlat,
	matchNested("location"),
	matchNested("current_location"),
}

func matchFlat(record fleetapi.RawRecord) *shapeMatch {
	lat, latOK := numberField(record, "lat", "latitude")
	lon, lonOK := numberField(record, "lon", "lng", "longitude")

	if !latOK || !lonOK {
		return nil
	}

	return &shapeMatch{Latitude: lat, Longitude: lon, Fields: record}
}

func matchNested(key string) func(fleetapi.RawRecord) *shapeMatch {
	return func(record fleetapi.RawRecord) *shapeMatch {
		nested, ok := record[key].(map[string]interface{})
		if !ok {
			return nil
		}

		lat, latOK := numberField(nested, "lat", "latitude")
		lon, lonOK := numberField(nested, "lon", "lng", "longitude")

		if !latOK || !lonOK {
			return nil
		}

		return &shapeMatch{Latitude: lat, Longitude: lon, Fields: nested}
	}
}

// NormalizeRecord converts one raw record of unknown shape into a canonical
// reading, or rejects it. All output fields are populated.
func NormalizeRecord(record fleetapi.RawRecord, now time.Time) (*fleetdf.LocationReading, error) {
	var match *shapeMatch
	for _, shape := range payloadShapes {
		if match = shape(record); match != nil {
			break
		}
	}

	if match == nil {
		return nil, ErrMalformedPayload
	}

	reading := &fleetdf.LocationReading{
		VehicleID: extractVehicleID(record),
		Latitude:  match.Latitude,
		Longitude: match.Longitude,
		Speed:     extractSpeed(match.Fields, record),
		Heading:   extractHeading(match.Fields, record),
		Timestamp: extractTimestamp(match.Fields, record, now),
	}
	reading.Status = extractStatus(match.Fields, record, reading.Speed)

	if !reading.HasFix() {
		return nil, ErrNoFix
	}

	return reading, nil
}

func extractVehicleID(record fleetapi.RawRecord) string {
	if id, ok := stringField(record, "vehicle_id", "vehicleId", "id", "name"); ok {
		return id
	}

	return UnknownVehicleID
}

func extractSpeed(scopes ...fleetapi.RawRecord) float64 {
	var speed float64

	for _, scope := range scopes {
		if kph, ok := numberField(scope, "speed_kph", "speed_km_h"); ok {
			speed = kph * fleetdf.KphToMphFactor
			break
		}

		if mph, ok := numberField(scope, "speed", "speed_mph"); ok {
			if unit, unitOK := stringField(scope, "speed_unit"); unitOK && (unit == "kph" || unit == "km/h") {
				speed = mph * fleetdf.KphToMphFactor
			} else {
				speed = mph
			}
			break
		}
	}

	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0
	}

	return speed
}

func extractHeading(scopes ...fleetapi.RawRecord) float64 {
	for _, scope := range scopes {
		if heading, ok := numberField(scope, "heading", "bearing", "course"); ok {
			if math.IsNaN(heading) || math.IsInf(heading, 0) {
				return 0
			}
			return heading
		}
	}

	return 0
}

func extractStatus(fields fleetapi.RawRecord, record fleetapi.RawRecord, speed float64) string {
	for _, scope := range []fleetapi.RawRecord{fields, record} {
		if status, ok := stringField(scope, "status", "state"); ok {
			return status
		}
	}

	if speed > 0 {
		return "moving"
	}

	return "stopped"
}

func extractTimestamp(fields fleetapi.RawRecord, record fleetapi.RawRecord, now time.Time) time.Time {
	for _, scope := range []fleetapi.RawRecord{fields, record} {
		for _, key := range []string{"located_at", "timestamp", "time", "updated_at"} {
			value, exists := scope[key]
			if !exists {
				continue
			}

			switch typed := value.(type) {
			case string:
				if parsed, err := time.Parse(time.RFC3339, typed); err == nil {
					return parsed
				}
			case float64:
				// Epoch seconds, or milliseconds for newer accounts
				if typed > 1e12 {
					return time.UnixMilli(int64(typed))
				}
				return time.Unix(int64(typed), 0)
			}
		}
	}

	return now
}

func numberField(record fleetapi.RawRecord, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, exists := record[key]
		if !exists {
			continue
		}

		switch typed := value.(type) {
		case float64:
			return typed, true
		case string:
			if parsed, err := strconv.ParseFloat(typed, 64); err == nil {
				return parsed, true
			}
		}
	}

	return 0, false
}

func stringField(record fleetapi.RawRecord, keys ...string) (string, bool) {
	for _, key := range keys {
		if value, exists := record[key]; exists {
			if typed, ok := value.(string); ok && typed != "" {
				return typed, true
			}
		}
	}

	return "", false
}
