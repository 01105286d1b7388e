package locationtracker

import (
	"sync"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
)

// PollLog is a bounded most-recent-first buffer of poll outcomes. It lives
// in memory only and is lost on restart.
type PollLog struct {
	mutex    sync.Mutex
	entries  []fleetdf.PollOutcome
	capacity int
}

func NewPollLog(capacity int) *PollLog {
	return &PollLog{
		capacity: capacity,
	}
}

func (l *PollLog) Record(outcome fleetdf.PollOutcome) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.entries = append([]fleetdf.PollOutcome{outcome}, l.entries...)

	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// Recent returns up to n outcomes, newest first. n <= 0 returns everything.
func (l *PollLog) Recent(n int) []fleetdf.PollOutcome {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}

	recent := make([]fleetdf.PollOutcome, n)
	copy(recent, l.entries[:n])

	return recent
}

func (l *PollLog) Clear() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.entries = nil
}
