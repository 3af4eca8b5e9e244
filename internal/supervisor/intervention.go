package supervisor

import "fmt"

// InterventionPrompt renders the system message injected into an agent to
// pull it back to goal.
func InterventionPrompt(goal string, a Analysis) string {
	issue := a.Distraction
	if issue == "" {
		issue = DefaultIssue
	}
	action := a.RealignmentInstruction
	if action == "" {
		action = DefaultRealignment
	}
	return fmt.Sprintf(`DRIFT DETECTED - REALIGNMENT REQUIRED

Original Goal: %s

Issue Identified: %s

Action Required: %s

Please acknowledge the user's current question briefly, then redirect focus back to the original goal.`, goal, issue, action)
}
