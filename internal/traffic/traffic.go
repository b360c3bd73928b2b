package traffic

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MaxWindow is how long outcomes are kept; Snapshot windows beyond it undercount.
const MaxWindow = 15 * time.Minute

// Counts is a snapshot of outcomes within a window.
type Counts struct {
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	Denied    int `json:"denied"`
}

// ErrorPct returns failures as a percentage of acquisitions (denials excluded), or 0 with no traffic.
func (c Counts) ErrorPct() int {
	total := c.Successes + c.Failures
	if total == 0 {
		return 0
	}
	return c.Failures * 100 / total
}

// Tracker keeps sliding windows of acquisition outcomes and rate-limit denials for the health check.
// A nil *Tracker discards records. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	successes []time.Time
	failures  []time.Time
	denied    []time.Time
}

// NewTracker returns a Tracker on clock; nil uses the real clock.
func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{clock: clock}
}

// RecordSuccess records a successful acquisition.
func (t *Tracker) RecordSuccess() {
	t.record(func(t *Tracker) *[]time.Time { return &t.successes })
}

// RecordFailure records a failed acquisition (upstream error, timeout, cache write).
func (t *Tracker) RecordFailure() {
	t.record(func(t *Tracker) *[]time.Time { return &t.failures })
}

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() {
	t.record(func(t *Tracker) *[]time.Time { return &t.denied })
}

func (t *Tracker) record(slice func(*Tracker) *[]time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	s := slice(t)
	*s = append(*s, now)
	t.pruneLocked(now)
}

// Snapshot counts the outcomes recorded within window of now.
func (t *Tracker) Snapshot(window time.Duration) Counts {
	if t == nil {
		return Counts{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	return Counts{
		Successes: countSince(t.successes, cutoff),
		Failures:  countSince(t.failures, cutoff),
		Denied:    countSince(t.denied, cutoff),
	}
}

// countSince counts timestamps that are not before cutoff.
func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than MaxWindow. Slices are in append order, so the old ones lead.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-MaxWindow)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successes)
	prune(&t.failures)
	prune(&t.denied)
}
