// Package supervisor explains drift verdicts in plain language and builds
// the realignment prompt that steers an agent back to its goal.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/context-rot-monitor/internal/llm"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

// Confidence grades how sure the analyst is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Source records which analyst produced an Analysis.
type Source string

const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
)

const (
	DefaultRealignment     = "Return to the original goal."
	DefaultIssue           = "Conversation has drifted from original intent"
	unavailableDistraction = "Unable to analyze (API error)"

	// DefaultHeuristicThreshold is the score at or above which the heuristic
	// still treats the agent as pursuing its goal.
	DefaultHeuristicThreshold = 0.45
)

// ErrEmptyResponse is returned when the model answers with nothing to parse.
var ErrEmptyResponse = errors.New("supervisor: empty response")

// Request carries one drifting verdict to the analyst.
type Request struct {
	Goal         string
	CurrentState string
	Similarity   float64
}

// Analysis is the qualitative explanation attached to a drifting verdict.
type Analysis struct {
	PursuingGoal           bool       `json:"pursuing_goal"`
	Distraction            string     `json:"distraction,omitempty"`
	RealignmentInstruction string     `json:"realignment"`
	Confidence             Confidence `json:"confidence"`
	Source                 Source     `json:"source"`
}

// Analyst explains drift. Implementations always return a usable Analysis.
type Analyst interface {
	Analyze(ctx context.Context, req Request) Analysis
}

// Heuristic builds the analysis used when no language model answer is available.
func Heuristic(req Request, threshold float64) Analysis {
	return Analysis{
		PursuingGoal:           req.Similarity >= threshold,
		Distraction:            unavailableDistraction,
		RealignmentInstruction: "Refocus on: " + req.Goal,
		Confidence:             ConfidenceLow,
		Source:                 SourceHeuristic,
	}
}

// HeuristicAnalyst never calls out; it is used when the supervisor is disabled.
type HeuristicAnalyst struct {
	Threshold float64
}

func (h HeuristicAnalyst) Analyze(_ context.Context, req Request) Analysis {
	threshold := h.Threshold
	if threshold <= 0 {
		threshold = DefaultHeuristicThreshold
	}
	return Heuristic(req, threshold)
}

// Config configures the LLM supervisor.
type Config struct {
	Model              string
	Timeout            time.Duration
	MaxTokens          int32
	Temperature        float32
	SystemPrompt       string
	DriftThreshold     float64
	HeuristicThreshold float64
}

// LLMSupervisor asks a language model why the conversation drifted.
type LLMSupervisor struct {
	client             llm.Client
	model              string
	timeout            time.Duration
	maxTokens          int32
	temperature        float32
	systemPrompt       string
	driftThreshold     float64
	heuristicThreshold float64
	logger             *logging.Logger
}

const defaultSystemPrompt = `You are a conversation quality supervisor. Your job is to detect when an AI agent has drifted from the user's original goal and provide clear guidance to get back on track.

Be concise and actionable. Focus on what matters.`

// NewLLMSupervisor constructs an LLM-backed analyst.
func NewLLMSupervisor(client llm.Client, cfg Config, logger *logging.Logger) *LLMSupervisor {
	if client == nil {
		panic("supervisor: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	driftThreshold := cfg.DriftThreshold
	if driftThreshold <= 0 {
		driftThreshold = 0.7
	}
	heuristic := cfg.HeuristicThreshold
	if heuristic <= 0 {
		heuristic = DefaultHeuristicThreshold
	}
	return &LLMSupervisor{
		client:             client,
		model:              strings.TrimSpace(cfg.Model),
		timeout:            cfg.Timeout,
		maxTokens:          maxTokens,
		temperature:        temperature,
		systemPrompt:       prompt,
		driftThreshold:     driftThreshold,
		heuristicThreshold: heuristic,
		logger:             logger,
	}
}

// Analyze implements Analyst. Provider and parse failures degrade to Heuristic.
func (s *LLMSupervisor) Analyze(ctx context.Context, req Request) Analysis {
	analysis, err := s.review(ctx, req)
	if err != nil {
		s.logger.Warn("supervisor analysis failed, using heuristic", "error", err.Error())
		return Heuristic(req, s.heuristicThreshold)
	}
	return analysis
}

func (s *LLMSupervisor) review(ctx context.Context, req Request) (Analysis, error) {
	reviewCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		reviewCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	resp, err := s.client.Complete(reviewCtx, llm.Request{
		Model:       s.model,
		System:      []string{s.systemPrompt},
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: s.userPrompt(req)}},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		JSONMode:    true,
	})
	if err != nil {
		return Analysis{}, err
	}
	return parseAnalysis(resp.Text)
}

func (s *LLMSupervisor) userPrompt(req Request) string {
	return fmt.Sprintf(`Original Goal: %s

Current Conversation State:
%s

Drift Score: %.3f (below %.2f indicates drift)

Analyze this conversation and provide:
1. Is the agent still pursuing the original goal? (Yes/No)
2. If No, what specific distraction occurred?
3. One-sentence instruction to realign the agent.

Format your response as JSON:
{
    "pursuing_goal": true/false,
    "distraction": "brief description or null",
    "realignment": "one-sentence instruction",
    "confidence": "high/medium/low"
}`, req.Goal, req.CurrentState, req.Similarity, s.driftThreshold)
}

type analysisPayload struct {
	PursuingGoal *bool   `json:"pursuing_goal"`
	Distraction  *string `json:"distraction"`
	Realignment  *string `json:"realignment"`
	Confidence   *string `json:"confidence"`
}

func parseAnalysis(raw string) (Analysis, error) {
	text := sanitizeJSON(raw)
	if text == "" {
		return Analysis{}, ErrEmptyResponse
	}
	var payload analysisPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Analysis{}, fmt.Errorf("supervisor: decode analysis: %w", err)
	}

	analysis := Analysis{
		RealignmentInstruction: DefaultRealignment,
		Confidence:             ConfidenceMedium,
		Source:                 SourceLLM,
	}
	if payload.PursuingGoal != nil {
		analysis.PursuingGoal = *payload.PursuingGoal
	}
	if payload.Distraction != nil {
		analysis.Distraction = strings.TrimSpace(*payload.Distraction)
	}
	if payload.Realignment != nil && strings.TrimSpace(*payload.Realignment) != "" {
		analysis.RealignmentInstruction = strings.TrimSpace(*payload.Realignment)
	}
	if payload.Confidence != nil {
		analysis.Confidence = ParseConfidence(*payload.Confidence)
	}
	return analysis, nil
}

// ParseConfidence normalizes a confidence label, defaulting to medium.
func ParseConfidence(raw string) Confidence {
	c := Confidence(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c
	default:
		return ConfidenceMedium
	}
}

func sanitizeJSON(raw string) string {
	text := stripCodeFence(raw)
	text = extractJSONObject(text)
	return strings.TrimSpace(text)
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func extractJSONObject(text string) string {
	if strings.HasPrefix(text, "{") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
