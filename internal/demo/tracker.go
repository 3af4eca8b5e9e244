package demo

import "strings"

// interventionAfter is how many turns drift must persist before the agent is
// told to refocus.
const interventionAfter = 2

var closingPhrases = []string{"great day", "anything else", "welcome"}

// Tracker smooths per-turn verdicts into a drift flag. The flag clears on an
// on-track verdict only while no intervention has happened, and the
// intervention fires at most once.
type Tracker struct {
	drifting    bool
	startedTurn int
	intervened  bool
}

// Observe records the verdict for turn and reports whether drift was first
// detected by it.
func (t *Tracker) Observe(turn int, drifting bool) bool {
	if drifting {
		if t.drifting {
			return false
		}
		t.drifting = true
		t.startedTurn = turn
		return true
	}
	if t.drifting && !t.intervened {
		t.drifting = false
		t.startedTurn = 0
	}
	return false
}

// ShouldIntervene reports whether turn should use the refocus prompt. A true
// result is returned once.
func (t *Tracker) ShouldIntervene(turn int) bool {
	if !t.drifting || t.intervened || turn-t.startedTurn < interventionAfter {
		return false
	}
	t.intervened = true
	return true
}

// DriftingFor returns how many turns drift has lasted as of turn.
func (t *Tracker) DriftingFor(turn int) int {
	if !t.drifting {
		return 0
	}
	return turn - t.startedTurn
}

func (t *Tracker) Drifting() bool   { return t.drifting }
func (t *Tracker) Intervened() bool { return t.intervened }

// IsNaturalEnding reports whether the customer declined further help and the
// agent signed off.
func IsNaturalEnding(userMessage, agentReply string) bool {
	declined := false
	for _, word := range strings.FieldsFunc(strings.ToLower(userMessage), notLetter) {
		if word == "no" {
			declined = true
			break
		}
	}
	if !declined {
		return false
	}
	reply := strings.ToLower(agentReply)
	for _, phrase := range closingPhrases {
		if strings.Contains(reply, phrase) {
			return true
		}
	}
	return false
}

func notLetter(r rune) bool {
	return (r < 'a' || r > 'z') && r != '\''
}
