// ABOUTME: Refresh state and outcome tracking for the update scheduler
// ABOUTME: Thread-safe tracker retaining the latest refresh outcome

package geodb

import (
	"sync"
	"time"
)

// State represents the updater's current operational state.
type State string

// Updater states.
const (
	// StatePending indicates no refresh has run yet.
	StatePending State = "pending"

	// StateIdle indicates the updater is between refreshes.
	StateIdle State = "idle"

	// StateRefreshing indicates a refresh is in progress.
	StateRefreshing State = "refreshing"

	// StateFailed indicates the last refresh failed.
	StateFailed State = "failed"
)

// OutcomeKind classifies the result of one refresh attempt.
type OutcomeKind string

// Refresh outcome kinds.
const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Skip reasons.
const (
	// ReasonAlreadyRunning means another refresh held the single-flight
	// lock.
	ReasonAlreadyRunning = "refresh already in progress"

	// ReasonLocalStatic means the local file source is loaded at
	// startup only and never re-fetched on a timer tick.
	ReasonLocalStatic = "local file source never auto-updates"
)

// Outcome is the result of one refresh attempt. Only the latest
// outcome is retained.
type Outcome struct {
	// Kind classifies the attempt.
	Kind OutcomeKind `json:"kind"`

	// Reason explains a skipped attempt.
	Reason string `json:"reason,omitempty"`

	// Error is the failure message for a failed attempt.
	Error string `json:"error,omitempty"`

	// At is when the attempt finished.
	At time.Time `json:"at"`
}

// Status is a snapshot of the updater's state for reporting.
type Status struct {
	// State is the current operational state.
	State State `json:"state"`

	// LastOutcome is the most recent refresh outcome.
	LastOutcome Outcome `json:"last_outcome"`

	// LastSuccess is when the last successful refresh finished.
	LastSuccess time.Time `json:"last_success,omitzero"`

	// NextScheduled is when the next timer-driven refresh is due.
	NextScheduled time.Time `json:"next_scheduled,omitzero"`
}

// Tracker records updater state and the latest refresh outcome.
// Safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// NewTracker creates a tracker in the pending state.
func NewTracker() *Tracker {
	return &Tracker{status: Status{State: StatePending}}
}

// Status returns a copy of the current status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetState updates the operational state.
func (t *Tracker) SetState(s State) {
	t.mu.Lock()
	t.status.State = s
	t.mu.Unlock()
}

// SetNextScheduled records when the next timer-driven refresh is due.
func (t *Tracker) SetNextScheduled(next time.Time) {
	t.mu.Lock()
	t.status.NextScheduled = next
	t.mu.Unlock()
}

// RecordOutcome stores a refresh outcome and derives the follow-on
// state: failures park the updater in StateFailed until the next
// attempt, everything else returns it to StateIdle.
func (t *Tracker) RecordOutcome(o Outcome) {
	if o.At.IsZero() {
		o.At = time.Now().UTC()
	}

	t.mu.Lock()
	t.status.LastOutcome = o
	switch o.Kind {
	case OutcomeSuccess:
		t.status.LastSuccess = o.At
		t.status.State = StateIdle
	case OutcomeSkipped:
		if t.status.State == StateRefreshing || t.status.State == StatePending {
			t.status.State = StateIdle
		}
	case OutcomeFailed:
		t.status.State = StateFailed
	}
	t.mu.Unlock()
}
