// Package monitor serves drift monitoring for many concurrent conversations.
package monitor

import (
	"time"

	"github.com/wolfman30/context-rot-monitor/internal/drift"
	"github.com/wolfman30/context-rot-monitor/internal/supervisor"
)

// recentTurns is how many turns a state view carries.
const recentTurns = 5

// DriftReport is a verdict plus the supervisor's explanation when drifting.
type DriftReport struct {
	SessionID string `json:"session_id"`
	Trigger   string `json:"trigger"`
	drift.Verdict
	SupervisorAnalysis *supervisor.Analysis `json:"supervisor_analysis,omitempty"`
	InterventionPrompt string               `json:"intervention_prompt,omitempty"`
	CheckedAt          time.Time            `json:"checked_at"`
}

// StateView is the conversation summary with only the latest turns.
type StateView struct {
	SessionID          string       `json:"session_id"`
	TotalTurns         int          `json:"total_turns"`
	NorthStar          string       `json:"north_star"`
	LastGoodTurn       int          `json:"last_good_turn"`
	CurrentDriftStatus bool         `json:"current_drift_status"`
	DriftChecks        int          `json:"drift_checks"`
	RecentTurns        []drift.Turn `json:"recent_turns"`
}

func newStateView(id string, s drift.Summary) StateView {
	recent := s.History
	if len(recent) > recentTurns {
		recent = recent[len(recent)-recentTurns:]
	}
	if recent == nil {
		recent = []drift.Turn{}
	}
	return StateView{
		SessionID:          id,
		TotalTurns:         s.TotalTurns,
		NorthStar:          s.Goal,
		LastGoodTurn:       s.LastGoodTurn,
		CurrentDriftStatus: s.CurrentDriftStatus,
		DriftChecks:        s.DriftChecks,
		RecentTurns:        recent,
	}
}
