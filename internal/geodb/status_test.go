// ABOUTME: Tests for refresh state tracking and outcome retention
// ABOUTME: Validates state derivation from success, skip, and failure

package geodb

import (
	"testing"
	"time"
)

func TestTracker_InitialState(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	if got := tr.Status().State; got != StatePending {
		t.Errorf("initial state = %v, want pending", got)
	}
}

func TestTracker_RecordOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		outcome   Outcome
		wantState State
	}{
		{"success goes idle", Outcome{Kind: OutcomeSuccess}, StateIdle},
		{"failure goes failed", Outcome{Kind: OutcomeFailed, Error: "boom"}, StateFailed},
		{"skip from pending goes idle", Outcome{Kind: OutcomeSkipped, Reason: ReasonLocalStatic}, StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := NewTracker()
			tr.RecordOutcome(tt.outcome)

			st := tr.Status()
			if st.State != tt.wantState {
				t.Errorf("state = %v, want %v", st.State, tt.wantState)
			}
			if st.LastOutcome.Kind != tt.outcome.Kind {
				t.Errorf("LastOutcome.Kind = %v, want %v", st.LastOutcome.Kind, tt.outcome.Kind)
			}
			if st.LastOutcome.At.IsZero() {
				t.Error("outcome timestamp should be filled in")
			}
		})
	}
}

func TestTracker_SkipDoesNotClearFailedState(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.RecordOutcome(Outcome{Kind: OutcomeFailed, Error: "boom"})
	tr.RecordOutcome(Outcome{Kind: OutcomeSkipped, Reason: ReasonLocalStatic})

	if got := tr.Status().State; got != StateFailed {
		t.Errorf("state = %v, want failed preserved across skips", got)
	}
}

func TestTracker_SuccessRecordsLastSuccess(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.RecordOutcome(Outcome{Kind: OutcomeSuccess, At: at})

	st := tr.Status()
	if !st.LastSuccess.Equal(at) {
		t.Errorf("LastSuccess = %v, want %v", st.LastSuccess, at)
	}

	// A later failure keeps the success timestamp.
	tr.RecordOutcome(Outcome{Kind: OutcomeFailed, Error: "boom"})
	if !tr.Status().LastSuccess.Equal(at) {
		t.Error("failure must not clear LastSuccess")
	}
}

func TestTracker_NextScheduled(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	next := time.Now().Add(time.Hour).UTC()
	tr.SetNextScheduled(next)

	if got := tr.Status().NextScheduled; !got.Equal(next) {
		t.Errorf("NextScheduled = %v, want %v", got, next)
	}
}
