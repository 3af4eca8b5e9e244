package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wolfman30/context-rot-monitor/internal/llm"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

type stubLLM struct {
	text string
	err  error
	req  llm.Request
}

func (s *stubLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.req = req
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.text}, nil
}

var refundRequest = Request{
	Goal:         "I need help processing a refund for order #12345",
	CurrentState: "User: I can't log in\nAssistant: Let me reset your password.",
	Similarity:   0.31,
}

func TestParseAnalysisAcceptsValidJSON(t *testing.T) {
	a, err := parseAnalysis(`{"pursuing_goal":false,"distraction":"login issue","realignment":"Ask about the refund.","confidence":"high"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.PursuingGoal || a.Distraction != "login issue" || a.RealignmentInstruction != "Ask about the refund." || a.Confidence != ConfidenceHigh {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if a.Source != SourceLLM {
		t.Fatalf("expected llm source, got %q", a.Source)
	}
}

func TestParseAnalysisHandlesCodeFence(t *testing.T) {
	raw := "```json\n{\"pursuing_goal\":true,\"confidence\":\"LOW\"}\n```"
	a, err := parseAnalysis(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.PursuingGoal || a.Confidence != ConfidenceLow {
		t.Fatalf("unexpected analysis %+v", a)
	}
}

func TestParseAnalysisExtractsEmbeddedJSON(t *testing.T) {
	a, err := parseAnalysis(`Here you go: {"pursuing_goal":false,"distraction":null} done`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Distraction != "" {
		t.Fatalf("null distraction should be empty, got %q", a.Distraction)
	}
}

func TestParseAnalysisDefaultsMissingFields(t *testing.T) {
	a, err := parseAnalysis(`{}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.PursuingGoal {
		t.Fatalf("missing pursuing_goal must default to false")
	}
	if a.RealignmentInstruction != DefaultRealignment {
		t.Fatalf("unexpected realignment %q", a.RealignmentInstruction)
	}
	if a.Confidence != ConfidenceMedium {
		t.Fatalf("unexpected confidence %q", a.Confidence)
	}
}

func TestParseAnalysisRejectsGarbage(t *testing.T) {
	if _, err := parseAnalysis("   "); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if _, err := parseAnalysis("not json at all"); err == nil {
		t.Fatalf("expected error for non-json response")
	}
}

func TestParseConfidence(t *testing.T) {
	cases := map[string]Confidence{
		"high":    ConfidenceHigh,
		" Medium": ConfidenceMedium,
		"LOW":     ConfidenceLow,
		"certain": ConfidenceMedium,
		"":        ConfidenceMedium,
	}
	for raw, want := range cases {
		if got := ParseConfidence(raw); got != want {
			t.Fatalf("ParseConfidence(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestLLMSupervisorBuildsRequest(t *testing.T) {
	client := &stubLLM{text: `{"pursuing_goal":false,"distraction":"login","realignment":"Go back.","confidence":"high"}`}
	sup := NewLLMSupervisor(client, Config{Model: "m", DriftThreshold: 0.7}, logging.Discard())

	a := sup.Analyze(context.Background(), refundRequest)
	if a.Source != SourceLLM || a.Distraction != "login" {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if client.req.Temperature != 0.2 || client.req.MaxTokens != 300 || !client.req.JSONMode {
		t.Fatalf("unexpected request settings %+v", client.req)
	}
	prompt := client.req.Messages[0].Content
	for _, want := range []string{refundRequest.Goal, refundRequest.CurrentState, "Drift Score: 0.310", "below 0.70"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestLLMSupervisorFallsBackOnError(t *testing.T) {
	sup := NewLLMSupervisor(&stubLLM{err: errors.New("unavailable")}, Config{}, logging.Discard())

	a := sup.Analyze(context.Background(), refundRequest)
	if a.Source != SourceHeuristic || a.Confidence != ConfidenceLow {
		t.Fatalf("expected heuristic analysis, got %+v", a)
	}
	if a.PursuingGoal {
		t.Fatalf("score 0.31 is below the heuristic threshold")
	}
	if a.RealignmentInstruction != "Refocus on: "+refundRequest.Goal {
		t.Fatalf("unexpected realignment %q", a.RealignmentInstruction)
	}
	if a.Distraction != "Unable to analyze (API error)" {
		t.Fatalf("unexpected distraction %q", a.Distraction)
	}
}

func TestLLMSupervisorFallsBackOnBadJSON(t *testing.T) {
	sup := NewLLMSupervisor(&stubLLM{text: "sorry, I can't"}, Config{}, logging.Discard())
	if a := sup.Analyze(context.Background(), refundRequest); a.Source != SourceHeuristic {
		t.Fatalf("expected heuristic analysis, got %+v", a)
	}
}

func TestHeuristicThresholdBoundary(t *testing.T) {
	req := refundRequest
	req.Similarity = 0.45
	if a := (HeuristicAnalyst{}).Analyze(context.Background(), req); !a.PursuingGoal {
		t.Fatalf("score equal to the threshold counts as pursuing")
	}
	req.Similarity = 0.4499
	if a := (HeuristicAnalyst{}).Analyze(context.Background(), req); a.PursuingGoal {
		t.Fatalf("score below the threshold is not pursuing")
	}
}

func TestInterventionPrompt(t *testing.T) {
	p := InterventionPrompt("refund order 12345", Analysis{RealignmentInstruction: "Ask for the order."})
	for _, want := range []string{"Original Goal: refund order 12345", "Issue Identified: " + DefaultIssue, "Action Required: Ask for the order."} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}

	p = InterventionPrompt("g", Analysis{Distraction: "login detour"})
	if !strings.Contains(p, "Issue Identified: login detour") || !strings.Contains(p, "Action Required: "+DefaultRealignment) {
		t.Fatalf("unexpected prompt:\n%s", p)
	}
}
