// Package traffic keeps sliding-window counts of search outcomes and rate-limit denials.
// The health handler derives "degraded" from the failure ratio and the metrics gauges read
// request volume from the same tracker.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a recorded event.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeDenied
)

// retention bounds memory; windows longer than this are truncated.
const retention = 10 * time.Minute

var defaultTracker = NewTracker(retention)

// RecordSuccess records a search whose fetch sequence completed.
func RecordSuccess() { defaultTracker.Record(OutcomeSuccess) }

// RecordFailure records a search that ended in a fetch failure.
func RecordFailure() { defaultTracker.Record(OutcomeFailure) }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.Record(OutcomeDenied) }

// RequestCount returns successes + failures + denials within the window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.Count(OutcomeDenied, window) }

// FailureRate returns (failures, failures+successes) within the window.
func FailureRate(window time.Duration) (failures, total int) {
	return defaultTracker.FailureRate(window)
}

// Reset clears the process-wide tracker. For tests only.
func Reset() { defaultTracker.Reset() }

type event struct {
	at      time.Time
	outcome Outcome
}

// Tracker holds timestamped outcomes in arrival order.
type Tracker struct {
	mu        sync.Mutex
	events    []event
	retention time.Duration
	now       func() time.Time
}

// NewTracker returns a Tracker that forgets events older than retention.
func NewTracker(retention time.Duration) *Tracker {
	return &Tracker{retention: retention, now: time.Now}
}

// Record appends an outcome stamped with the current time.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, outcome: o})
	t.pruneLocked(now)
}

// Count returns the number of events of kind o within the window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, e := range t.events {
		if e.outcome == o && !e.at.Before(cutoff) {
			n++
		}
	}
	return n
}

// RequestCount returns all events within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, e := range t.events {
		if !e.at.Before(cutoff) {
			n++
		}
	}
	return n
}

// FailureRate returns (failures, failures+successes) within the window. Denials are excluded.
func (t *Tracker) FailureRate(window time.Duration) (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for _, e := range t.events {
		if e.at.Before(cutoff) {
			continue
		}
		switch e.outcome {
		case OutcomeFailure:
			failures++
			total++
		case OutcomeSuccess:
			total++
		}
	}
	return failures, total
}

// Reset drops all recorded events.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

// pruneLocked drops events older than retention. Events are time-ordered. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
