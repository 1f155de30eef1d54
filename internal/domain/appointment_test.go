package domain

import "testing"

func TestParseState(t *testing.T) {
	valid := []string{"scheduled", "confirmed", "completed", "cancelled"}
	for _, s := range valid {
		got, ok := ParseState(s)
		if !ok {
			t.Fatalf("ParseState(%q) rejected", s)
		}
		if string(got) != s {
			t.Fatalf("ParseState(%q) = %q", s, got)
		}
	}

	for _, s := range []string{"", "pending", "SCHEDULED", "done", "canceled"} {
		if _, ok := ParseState(s); ok {
			t.Fatalf("ParseState(%q) accepted", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateScheduled, StateConfirmed, true},
		{StateScheduled, StateCompleted, true},
		{StateScheduled, StateCancelled, true},
		{StateConfirmed, StateCompleted, true},
		{StateConfirmed, StateCancelled, true},
		{StateConfirmed, StateScheduled, false},
		{StateCompleted, StateCancelled, false},
		{StateCompleted, StateScheduled, false},
		{StateCancelled, StateScheduled, false},
		{StateCancelled, StateConfirmed, false},
		{StateScheduled, StateScheduled, false},
		{StateConfirmed, StateConfirmed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatePredicates(t *testing.T) {
	if !StateScheduled.Active() || !StateConfirmed.Active() {
		t.Fatalf("scheduled and confirmed must be active")
	}
	if StateCompleted.Active() || StateCancelled.Active() {
		t.Fatalf("terminal states must not be active")
	}
	if StateScheduled.Terminal() || StateConfirmed.Terminal() {
		t.Fatalf("non-terminal states flagged terminal")
	}
	if !StateCompleted.Terminal() || !StateCancelled.Terminal() {
		t.Fatalf("terminal states not flagged terminal")
	}
}
