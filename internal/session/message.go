package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies who contributed a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DeliveryState tracks a user turn through the send lifecycle. Modeling the
// lifecycle as a tagged state keeps illegal transitions unrepresentable:
// only pending turns can go in-flight, only in-flight turns can confirm or
// roll back, and failed entries are terminal.
type DeliveryState int

const (
	StatePending   DeliveryState = iota // appended, not yet part of a request
	StateInFlight                       // included in the outbound request
	StateConfirmed                      // request succeeded; terminal
	StateFailed                         // ingestion or dispatch failed; terminal
)

func (s DeliveryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalJSON emits the state name so view layers see "pending" etc.
func (s DeliveryState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// SentToAPI reports whether this state counts as already submitted. It is
// the derived form of the classic sentToApi flag.
func (s DeliveryState) SentToAPI() bool {
	return s == StateInFlight || s == StateConfirmed
}

// Message is the atomic conversation unit. Content is never rewritten after
// creation; only State moves during optimistic commit and rollback.
type Message struct {
	ID               string          `json:"id"`
	Role             Role            `json:"role"`
	Content          string          `json:"content"`
	State            DeliveryState   `json:"state"`
	IsFileAttachment bool            `json:"is_file_attachment,omitempty"`
	Error            string          `json:"error,omitempty"`
	Hidden           bool            `json:"hidden,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`

	// Assistant-only auxiliary fields, carried through from the backend
	// response and opaque to the controller.
	Reasoning     string          `json:"reasoning,omitempty"`
	ToolCalls     json.RawMessage `json:"tool_calls,omitempty"`
	ExecutedTools json.RawMessage `json:"executed_tools,omitempty"`
}

// SentToAPI reports whether the message has been included in a request.
func (m *Message) SentToAPI() bool { return m.State.SentToAPI() }

// NewSeed returns a fresh initial message list for a session. A factory
// rather than a shared constant so sessions never alias seed state.
func NewSeed() []Message {
	return []Message{}
}

func newID() string { return uuid.NewString() }
