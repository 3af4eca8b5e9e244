package demo

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/context-rot-monitor/internal/llm"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

// CannedReply is used when no model is configured or the model call fails.
const CannedReply = "Let me help you with that."

const supportPrompt = `You are a customer support agent.

IMPORTANT RULES:
- Keep responses SHORT (1-2 sentences)
- Answer whatever the customer just asked
- Stay focused on their current question
- Be helpful and friendly

If they ask about login issues, help with that.
If they ask about refunds, help with that.
Focus on what they're asking RIGHT NOW.`

const refocusPrompt = `You are a customer support agent.

CRITICAL: The customer's original request was: %q

You got sidetracked helping with other things. Now COMPLETE the original request.
Be specific and final. 1-2 sentences maximum.`

// Exchange is one completed user/agent turn.
type Exchange struct {
	User  string
	Agent string
}

// Agent role-plays a support agent with an LLM.
type Agent struct {
	client llm.Client
	model  string
	logger *logging.Logger
}

// NewAgent builds an agent. A nil client makes every reply CannedReply.
func NewAgent(client llm.Client, model string, logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.Default()
	}
	return &Agent{client: client, model: model, logger: logger}
}

// Reply answers userMessage given the prior exchanges. When refocus is
// non-empty the agent is told to complete goal, with refocus as the
// realignment message from the monitor.
func (a *Agent) Reply(ctx context.Context, history []Exchange, userMessage, goal, refocus string) string {
	if a.client == nil {
		return CannedReply
	}

	system := []string{supportPrompt}
	if refocus != "" {
		system = []string{fmt.Sprintf(refocusPrompt, goal), refocus}
	}

	messages := make([]llm.ChatMessage, 0, 2*len(history)+1)
	for _, ex := range history {
		messages = append(messages,
			llm.ChatMessage{Role: llm.RoleUser, Content: ex.User},
			llm.ChatMessage{Role: llm.RoleAssistant, Content: ex.Agent},
		)
	}
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: userMessage})

	resp, err := a.client.Complete(ctx, llm.Request{
		Model:       a.model,
		System:      system,
		Messages:    messages,
		MaxTokens:   100,
		Temperature: 0.8,
	})
	if err != nil {
		a.logger.Warn("agent reply failed", "error", err.Error())
		return CannedReply
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return CannedReply
	}
	return text
}
