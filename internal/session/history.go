package session

import (
	"github.com/youruser/parley/internal/api"
)

// window derives the bounded context slice for a request from the full log.
// Excluded entries: the in-flight turns themselves (sent separately as the
// final turn), hidden messages, attachment placeholders (their content is
// folded into the composed turn), failed entries, and assistant turns with
// no plain textual content. The result keeps the most recent maxPairs
// role-pairs, oldest first; truncation drops from the front so recency wins
// over completeness.
func window(messages []Message, exclude map[string]bool, maxPairs int) []api.ChatMessage {
	var qualified []Message
	for _, m := range messages {
		if exclude[m.ID] || m.Hidden || m.IsFileAttachment || m.State == StateFailed {
			continue
		}
		switch m.Role {
		case RoleUser:
			qualified = append(qualified, m)
		case RoleAssistant:
			// Assistant turns with no plain text, such as
			// tool-call-only replies, are not resent.
			if m.Content != "" {
				qualified = append(qualified, m)
			}
		}
	}

	limit := maxPairs * 2
	if len(qualified) > limit {
		qualified = qualified[len(qualified)-limit:]
	}

	out := make([]api.ChatMessage, 0, len(qualified))
	for _, m := range qualified {
		out = append(out, api.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
