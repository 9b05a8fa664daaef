// Package llm defines the reply-generation interface. Backends receive the
// customer's transcribed utterance plus a snapshot of the conversation
// memory, and return the agent's next line in Hebrew.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/talmor-labs/callflow/internal/flow"
	"github.com/talmor-labs/callflow/internal/memory"
)

// Responder generates the agent's next utterance.
type Responder interface {
	// Name returns a short identifier for the backend (e.g. "openai").
	Name() string

	// Reply generates a response to userText given the conversation
	// snapshot. Implementations must respect ctx cancellation.
	Reply(ctx context.Context, userText string, pc memory.PromptContext) (string, error)
}

// basePrompt is the persona instruction. Responses are kept short because
// they are spoken over a phone line.
const basePrompt = `אתה עוזר וירטואלי דובר עברית. התנהג באופן טבעי, חברי ומועיל.
ענה בעברית בצורה קצרה וממוקדת (2-3 משפטים מקסימום).
היה שיחתי - כאילו אתה מדבר בטלפון עם אדם.`

// BuildSystemPrompt assembles the per-turn system prompt: persona, current
// stage goal and action, and the customer facts gathered so far.
func BuildSystemPrompt(agentName string, pc memory.PromptContext) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n")
	if agentName != "" {
		fmt.Fprintf(&sb, "השם שלך הוא %s.\n", agentName)
	}

	if stage, ok := flow.Lookup(flow.StageID(pc.CurrentStage)); ok {
		sb.WriteString("\nהשלב הנוכחי בשיחה: " + string(stage.ID) + "\n")
		sb.WriteString("מטרה: " + stage.Goal + "\n")
		sb.WriteString("פעולה: " + stage.Action + "\n")
	}

	if pc.CustomerName != "" {
		sb.WriteString("\nשם הלקוח: " + pc.CustomerName + " (פנה אליו בשמו)\n")
	}
	if len(pc.Needs) > 0 {
		sb.WriteString("צרכים שזוהו: " + strings.Join(pc.Needs, ", ") + "\n")
	}
	if len(pc.Objections) > 0 {
		sb.WriteString("התנגדויות שהועלו: " + strings.Join(pc.Objections, ", ") + "\n")
	}
	if len(pc.Interests) > 0 {
		sb.WriteString("תחומי עניין: " + strings.Join(pc.Interests, ", ") + "\n")
	}
	if pc.Sentiment != "" && pc.Sentiment != memory.SentimentNeutral {
		sb.WriteString("מצב הרוח של הלקוח: " + string(pc.Sentiment) + "\n")
	}

	return sb.String()
}

// HistoryRoles maps memory roles to chat API roles.
func HistoryRoles(r memory.Role) string {
	if r == memory.RoleAgent {
		return "assistant"
	}
	return "user"
}
