// Package drift detects when a conversation wanders away from the goal the
// user stated in the first turn (the "north star").
//
// An Engine owns one conversation. It is not safe for concurrent use; owners
// serving several goroutines must serialize access (see internal/session).
package drift

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// DefaultThreshold is the standalone engine default. The hosted service
	// overrides it with DRIFT_SIMILARITY_THRESHOLD (0.7).
	DefaultThreshold     = 0.45
	DefaultCheckInterval = 3
	DefaultWindowSize    = 3
	DefaultMaxFeatures   = 500
)

// Config controls scoring and evaluation cadence.
type Config struct {
	SimilarityThreshold float64
	CheckInterval       int
	WindowSize          int
	MaxFeatures         int
	Scorer              Scorer
	Now                 func() time.Time
}

// DefaultConfig returns the standalone engine defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultThreshold,
		CheckInterval:       DefaultCheckInterval,
		WindowSize:          DefaultWindowSize,
		MaxFeatures:         DefaultMaxFeatures,
	}
}

// Validate reports whether the config can build an engine.
func (c Config) Validate() error {
	if math.IsNaN(c.SimilarityThreshold) || c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold %v outside [0,1]", ErrConfiguration, c.SimilarityThreshold)
	}
	if c.CheckInterval < 1 {
		return fmt.Errorf("%w: check interval must be positive, got %d", ErrConfiguration, c.CheckInterval)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window size must be positive, got %d", ErrConfiguration, c.WindowSize)
	}
	if c.MaxFeatures < 0 {
		return fmt.Errorf("%w: max features cannot be negative, got %d", ErrConfiguration, c.MaxFeatures)
	}
	return nil
}

// Turn is one user message and the assistant's reply.
type Turn struct {
	Number            int       `json:"turn"`
	UserMessage       string    `json:"user"`
	AssistantResponse string    `json:"assistant"`
	Timestamp         time.Time `json:"timestamp"`
}

// Verdict is the result of one evaluation point.
type Verdict struct {
	TurnNumber      int     `json:"turn_number"`
	SimilarityScore float64 `json:"similarity_score"`
	IsDrifting      bool    `json:"is_drifting"`
	LastGoodTurn    int     `json:"last_good_turn"`
	// Reason is set only when the score came from the lexical fallback.
	Reason string `json:"drift_reason,omitempty"`
}

// Degraded reports whether the verdict was scored by the lexical fallback.
func (v Verdict) Degraded() bool {
	return v.Reason != ""
}

// Summary is a read-only snapshot of engine state.
type Summary struct {
	TotalTurns         int    `json:"total_turns"`
	Goal               string `json:"north_star"`
	LastGoodTurn       int    `json:"last_good_turn"`
	CurrentDriftStatus bool   `json:"current_drift_status"`
	DriftChecks        int    `json:"drift_checks"`
	History            []Turn `json:"conversation_history"`
}

// Engine tracks a single conversation against its goal.
type Engine struct {
	cfg    Config
	scorer Scorer
	now    func() time.Time

	goal         string
	initialized  bool
	turns        []Turn
	verdicts     []Verdict
	lastGoodTurn int
}

// New builds an uninitialized engine. Zero-valued scorer and clock fall back
// to the TF-IDF scorer and time.Now.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxFeatures == 0 {
		cfg.MaxFeatures = DefaultMaxFeatures
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewTFIDFScorer(cfg.MaxFeatures)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, scorer: scorer, now: now}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetGoal stores the north star and starts a fresh session: both histories
// are wiped and the last good turn resets to 1.
func (e *Engine) SetGoal(goal string) error {
	if strings.TrimSpace(goal) == "" {
		return fmt.Errorf("%w: north star cannot be empty", ErrConfiguration)
	}
	e.goal = goal
	e.initialized = true
	e.turns = nil
	e.verdicts = nil
	e.lastGoodTurn = 1
	return nil
}

// Goal returns the north star, or "" before SetGoal.
func (e *Engine) Goal() string {
	return e.goal
}

// Initialized reports whether a goal has been set.
func (e *Engine) Initialized() bool {
	return e.initialized
}

// AddTurn appends a turn and evaluates drift when the turn number is a
// multiple of the check interval. It returns nil when no evaluation ran.
func (e *Engine) AddTurn(userMessage, assistantResponse string) (*Verdict, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	number := len(e.turns) + 1
	e.turns = append(e.turns, Turn{
		Number:            number,
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		Timestamp:         e.now(),
	})
	if number%e.cfg.CheckInterval != 0 {
		return nil, nil
	}
	v, err := e.CheckDrift()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CheckDrift scores the recent window against the goal and records a verdict.
// Scoring failures degrade to LexicalOverlap; only a missing goal is an error.
func (e *Engine) CheckDrift() (Verdict, error) {
	if !e.initialized {
		return Verdict{}, ErrNotInitialized
	}
	state := e.StateSummary()

	var reason string
	score, err := e.scorer.Similarity(e.goal, state)
	if err != nil {
		score = LexicalOverlap(e.goal, state)
		reason = fmt.Sprintf("computation degraded: %v", err)
	}
	score = clamp01(score)

	drifting := score < e.cfg.SimilarityThreshold
	if n := len(e.turns); !drifting && n > e.lastGoodTurn {
		e.lastGoodTurn = n
	}

	v := Verdict{
		TurnNumber:      len(e.turns),
		SimilarityScore: score,
		IsDrifting:      drifting,
		LastGoodTurn:    e.lastGoodTurn,
		Reason:          reason,
	}
	e.verdicts = append(e.verdicts, v)
	return v, nil
}

// StateSummary joins the user and assistant text of the most recent
// WindowSize turns in chronological order.
func (e *Engine) StateSummary() string {
	start := len(e.turns) - e.cfg.WindowSize
	if start < 0 {
		start = 0
	}
	parts := make([]string, 0, len(e.turns)-start)
	for _, t := range e.turns[start:] {
		parts = append(parts, t.UserMessage+" "+t.AssistantResponse)
	}
	return strings.Join(parts, " ")
}

// LastVerdict returns the most recent verdict, if any.
func (e *Engine) LastVerdict() (Verdict, bool) {
	if len(e.verdicts) == 0 {
		return Verdict{}, false
	}
	return e.verdicts[len(e.verdicts)-1], true
}

// Summary returns a snapshot of the conversation. History is a copy.
func (e *Engine) Summary() Summary {
	history := make([]Turn, len(e.turns))
	copy(history, e.turns)
	last, ok := e.LastVerdict()
	return Summary{
		TotalTurns:         len(e.turns),
		Goal:               e.goal,
		LastGoodTurn:       e.lastGoodTurn,
		CurrentDriftStatus: ok && last.IsDrifting,
		DriftChecks:        len(e.verdicts),
		History:            history,
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
