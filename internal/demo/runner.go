package demo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wolfman30/context-rot-monitor/internal/monitor"
	"github.com/wolfman30/context-rot-monitor/internal/supervisor"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

const rule = "--------------------------------------------------------------------------------"

// Summary describes a finished demo conversation.
type Summary struct {
	SessionID     string
	Turns         int
	DriftDetected bool
	Intervened    bool
}

// Runner reads customer messages from In and writes the conversation to Out.
type Runner struct {
	API    *APIClient
	Agent  *Agent
	In     io.Reader
	Out    io.Writer
	Logger *logging.Logger
}

// Run plays one conversation until quit, a natural ending, EOF or ctx is done.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if err := r.API.Health(ctx); err != nil {
		return Summary{}, fmt.Errorf("demo: backend not reachable: %w", err)
	}
	r.printf("Backend ready\n\n")
	r.printf("Type as the customer. The first message sets the north star.\n")
	r.printf("Type 'quit' to end.\n")

	var (
		summary Summary
		tracker Tracker
		history []Exchange
		goal    string
		refocus string
	)
	scanner := bufio.NewScanner(r.In)
	turn := 1
	for ctx.Err() == nil {
		r.printf("\n%s\nTurn %d\n%s\n", rule, turn, rule)
		r.printf("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if lower := strings.ToLower(input); lower == "quit" || lower == "exit" {
			break
		}
		if input == "" {
			continue
		}

		if turn == 1 {
			id, err := r.API.CreateSession(ctx, input)
			if err != nil {
				return summary, err
			}
			goal, summary.SessionID = input, id
			r.printf("\nNorth Star: %s\n", goal)
		}

		var instruction string
		if tracker.ShouldIntervene(turn) {
			instruction = refocus
			if instruction == "" {
				instruction = supervisor.DefaultRealignment
			}
			r.printf("\nINTERVENTION TRIGGERED: %d turns of drift, instructing the agent to refocus\n", tracker.DriftingFor(turn))
		}

		reply := r.Agent.Reply(ctx, history, input, goal, instruction)
		r.printf("\nAgent: %s\n", reply)
		history = append(history, Exchange{User: input, Agent: reply})
		summary.Turns = len(history)

		report, err := r.API.AddTurn(ctx, summary.SessionID, input, reply)
		if err != nil {
			logger.Warn("failed to record turn", "turn", turn, "error", err.Error())
		}
		if report != nil {
			if first := r.showReport(&tracker, turn, report); first {
				summary.DriftDetected = true
			}
			if report.InterventionPrompt != "" {
				refocus = report.InterventionPrompt
			}
		}

		if IsNaturalEnding(input, reply) {
			r.printf("\nConversation ended naturally\n")
			break
		}
		turn++
	}

	summary.Intervened = tracker.Intervened()
	if summary.Turns > 0 {
		r.printSummary(summary)
	}
	return summary, nil
}

func (r *Runner) showReport(tracker *Tracker, turn int, report *monitor.DriftReport) bool {
	r.printf("\nAnalysis:\n   Similarity: %.3f\n", report.SimilarityScore)
	if !report.IsDrifting {
		r.printf("   Status: ON TRACK\n")
		tracker.Observe(turn, false)
		return false
	}
	r.printf("   Status: DRIFTING (last good turn %d)\n", report.LastGoodTurn)
	first := tracker.Observe(turn, true)
	if first {
		r.printf("   Drift first detected!\n")
	}
	if a := report.SupervisorAnalysis; a != nil && a.Distraction != "" {
		r.printf("   Topic: %s\n", a.Distraction)
	}
	return first
}

func (r *Runner) printSummary(s Summary) {
	r.printf("\n%s\nSummary\n%s\n", rule, rule)
	r.printf("Session: %s\n", s.SessionID)
	r.printf("Total turns: %d\n", s.Turns)
	r.printf("Drift detected: %s\n", yesNo(s.DriftDetected))
	r.printf("Intervention: %s\n", yesNo(s.Intervened))
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.Out, format, args...)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
