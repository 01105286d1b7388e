package locationtracker

import (
	"fmt"
	"testing"
	"time"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
)

func TestPollLogMostRecentFirst(t *testing.T) {
	pollLog := NewPollLog(10)

	for i := 0; i < 3; i++ {
		pollLog.Record(fleetdf.PollOutcome{
			Timestamp: time.Now(),
			Class:     fleetdf.TelemetryClassVehicles,
			Success:   true,
			Processed: i,
		})
	}

	recent := pollLog.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("got %d entries, want 3", len(recent))
	}

	if recent[0].Processed != 2 || recent[2].Processed != 0 {
		t.Errorf("entries not most-recent-first: %v", recent)
	}
}

func TestPollLogBounded(t *testing.T) {
	pollLog := NewPollLog(5)

	for i := 0; i < 20; i++ {
		pollLog.Record(fleetdf.PollOutcome{
			Error: fmt.Sprintf("outcome-%d", i),
		})
	}

	recent := pollLog.Recent(0)
	if len(recent) != 5 {
		t.Fatalf("got %d entries, want capacity 5", len(recent))
	}

	if recent[0].Error != "outcome-19" {
		t.Errorf("newest entry = %q, want outcome-19", recent[0].Error)
	}
}

func TestPollLogRecentLimitAndClear(t *testing.T) {
	pollLog := NewPollLog(10)

	for i := 0; i < 6; i++ {
		pollLog.Record(fleetdf.PollOutcome{Processed: i})
	}

	if got := len(pollLog.Recent(2)); got != 2 {
		t.Errorf("Recent(2) returned %d entries", got)
	}

	if got := len(pollLog.Recent(100)); got != 6 {
		t.Errorf("Recent(100) returned %d entries, want 6", got)
	}

	pollLog.Clear()

	if got := len(pollLog.Recent(0)); got != 0 {
		t.Errorf("log not empty after Clear: %d entries", got)
	}
}
