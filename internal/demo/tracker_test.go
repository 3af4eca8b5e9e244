package demo

import "testing"

func TestTrackerClearsBeforeIntervention(t *testing.T) {
	var tr Tracker
	if !tr.Observe(2, true) {
		t.Fatalf("first drifting verdict should be reported")
	}
	if tr.Observe(3, true) {
		t.Fatalf("continued drift is not a first detection")
	}
	tr.Observe(3, false)
	if tr.Drifting() {
		t.Fatalf("on-track verdict should clear the flag before any intervention")
	}
	if tr.ShouldIntervene(10) {
		t.Fatalf("no intervention without drift")
	}
}

func TestTrackerIntervenesOnceAfterTwoTurns(t *testing.T) {
	var tr Tracker
	tr.Observe(2, true)

	if tr.ShouldIntervene(3) {
		t.Fatalf("one turn of drift is not enough")
	}
	if tr.DriftingFor(4) != 2 {
		t.Fatalf("expected 2 turns of drift, got %d", tr.DriftingFor(4))
	}
	if !tr.ShouldIntervene(4) {
		t.Fatalf("expected intervention after two turns")
	}
	if tr.ShouldIntervene(5) {
		t.Fatalf("intervention must fire once")
	}

	tr.Observe(4, false)
	if !tr.Drifting() || !tr.Intervened() {
		t.Fatalf("flag must stick once an intervention happened")
	}
}

func TestIsNaturalEnding(t *testing.T) {
	cases := []struct {
		user, agent string
		want        bool
	}{
		{"No, that's all", "You're welcome, have a great day!", true},
		{"no thanks", "Is there anything else?", true},
		{"I don't know", "You're welcome!", false},
		{"nope", "Have a great day", false},
		{"no", "Let me check that order.", false},
	}
	for _, tc := range cases {
		if got := IsNaturalEnding(tc.user, tc.agent); got != tc.want {
			t.Fatalf("IsNaturalEnding(%q, %q) = %v, want %v", tc.user, tc.agent, got, tc.want)
		}
	}
}
