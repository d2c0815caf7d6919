package session

import (
	"encoding/json"
	"time"
)

// Store is the ordered, append-only log of messages for one session. Append
// order defines conversation order; entries are never reordered and content
// is never rewritten. The Store is not safe for concurrent use: the
// Controller is its single writer.
type Store struct {
	messages []Message
}

// NewStore creates a store populated with a fresh seed.
func NewStore() *Store {
	return &Store{messages: NewSeed()}
}

// AppendUser appends a pending user turn and returns it.
func (s *Store) AppendUser(content string) Message {
	msg := Message{
		ID:        newID(),
		Role:      RoleUser,
		Content:   content,
		State:     StatePending,
		Timestamp: time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	return msg
}

// AppendPlaceholder appends a pending attachment placeholder for a
// successfully ingested file. The placeholder itself is never sent verbatim;
// its payload is folded into the composed turn at send time.
func (s *Store) AppendPlaceholder(fileName string) Message {
	msg := Message{
		ID:               newID(),
		Role:             RoleUser,
		Content:          "[attached: " + fileName + "]",
		State:            StatePending,
		IsFileAttachment: true,
		Timestamp:        time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	return msg
}

// AppendFailedFile appends a terminal entry reporting a per-file ingestion
// failure. It is excluded from history and never resubmitted.
func (s *Store) AppendFailedFile(fileName, cause string) Message {
	msg := Message{
		ID:        newID(),
		Role:      RoleUser,
		Content:   "[file error: " + fileName + "]",
		State:     StateFailed,
		Error:     cause,
		Timestamp: time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	return msg
}

// AppendAssistant appends an assistant turn built from a backend reply.
func (s *Store) AppendAssistant(content, reasoning string, toolCalls, executedTools json.RawMessage) Message {
	msg := Message{
		ID:            newID(),
		Role:          RoleAssistant,
		Content:       content,
		State:         StateConfirmed,
		Reasoning:     reasoning,
		ToolCalls:     toolCalls,
		ExecutedTools: executedTools,
		Timestamp:     time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	return msg
}

// MarkSent flips the given pending turns to in-flight. This is the
// optimistic-commit step, performed before the network call.
func (s *Store) MarkSent(ids []string) {
	s.transition(ids, StatePending, StateInFlight)
}

// Rollback returns the given in-flight turns to pending so the same content
// can be resent without duplication.
func (s *Store) Rollback(ids []string) {
	s.transition(ids, StateInFlight, StatePending)
}

// Confirm marks the given in-flight turns as terminally delivered.
func (s *Store) Confirm(ids []string) {
	s.transition(ids, StateInFlight, StateConfirmed)
}

func (s *Store) transition(ids []string, from, to DeliveryState) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range s.messages {
		if want[s.messages[i].ID] && s.messages[i].State == from {
			s.messages[i].State = to
		}
	}
}

// FindPendingUser returns the most recent pending, non-placeholder user
// turn with the given content. Lets a resend after rollback reuse the
// existing entry instead of duplicating it.
func (s *Store) FindPendingUser(content string) (Message, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Role == RoleUser && !m.IsFileAttachment && m.State == StatePending && m.Content == content {
			return m, true
		}
	}
	return Message{}, false
}

// failPending marks a pending entry as terminally failed with the
// given cause. Used when a late ingestion step (upload offload) fails after
// the placeholder was already appended.
func (s *Store) failPending(id, cause string) {
	for i := range s.messages {
		if s.messages[i].ID == id && s.messages[i].State == StatePending {
			s.messages[i].State = StateFailed
			s.messages[i].Error = cause
		}
	}
}

// Clear resets the log to a fresh seed. Local only; the backend keeps no
// session state to clear.
func (s *Store) Clear() {
	s.messages = NewSeed()
}

// Messages returns a snapshot copy of the log.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the log.
func (s *Store) Len() int { return len(s.messages) }

// PendingAttachments returns the in-order attachment placeholders that have
// not yet been folded into a request.
func (s *Store) PendingAttachments() []Message {
	var out []Message
	for _, m := range s.messages {
		if m.IsFileAttachment && m.State == StatePending {
			out = append(out, m)
		}
	}
	return out
}
