package fleetdf

import "time"

// PollOutcome records the result of one ingestion attempt for one telemetry
// class. Held in memory only - an operability aid, not an audit log.
type PollOutcome struct {
	Timestamp time.Time      `json:"timestamp" groups:"basic"`
	Class     TelemetryClass `json:"class" groups:"basic"`
	Success   bool           `json:"success" groups:"basic"`
	Processed int            `json:"processed" groups:"basic"`
	Error     string         `json:"error,omitempty" groups:"basic"`
	Detail    string         `json:"detail,omitempty" groups:"detailed"`
}
