package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Wire types for the parley backend (/api/chat, /api/models, /api/upload).

// ChatMessage is one turn of request context. Content marshals as a plain
// string unless Parts is set, in which case the ordered parts array is sent
// (used for the final user turn when images are attached).
type ChatMessage struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// ContentPart is one element of a structured user turn.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image payload as a base64 data URI.
type ImageURL struct {
	URL string `json:"url"`
}

type chatMessageWire struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON emits {role, content} with content as a string or a parts array.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	var content any = m.Content
	if len(m.Parts) > 0 {
		content = m.Parts
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(chatMessageWire{Role: m.Role, Content: raw})
}

// UnmarshalJSON accepts both content forms.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var wire chatMessageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.Content = ""
	m.Parts = nil
	if len(wire.Content) == 0 {
		return nil
	}
	if wire.Content[0] == '[' {
		return json.Unmarshal(wire.Content, &m.Parts)
	}
	return json.Unmarshal(wire.Content, &m.Content)
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	Purpose   string        `json:"purpose"`
	ModelName string        `json:"model_name"`
}

// ChatReply is a successful POST /api/chat response. The auxiliary fields
// are carried through verbatim; the session layer treats them as opaque.
type ChatReply struct {
	Content       string          `json:"content"`
	Reasoning     json.RawMessage `json:"reasoning,omitempty"`
	ToolCalls     json.RawMessage `json:"tool_calls,omitempty"`
	ExecutedTools json.RawMessage `json:"executed_tools,omitempty"`
}

// ReasoningText renders the reasoning field for display. Backends are not
// consistent about its shape, so a JSON string is unquoted and anything
// else is shown raw.
func (r *ChatReply) ReasoningText() string {
	if len(r.Reasoning) == 0 || string(r.Reasoning) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Reasoning, &s); err == nil {
		return s
	}
	return string(r.Reasoning)
}

// ModelsResponse is the GET /api/models body. A missing or empty list is a
// valid "no models available" response.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// UploadResponse is the POST /api/upload body.
type UploadResponse struct {
	Filename   string `json:"filename"`
	SavedPath  string `json:"saved_path,omitempty"`
	GroqFileID string `json:"groq_file_id,omitempty"`
}

// errorBody is the backend's error envelope. Detail is either a plain
// string or a list of field-level validation entries.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationEntry struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// flattenErrorBody turns an error response body into a single readable
// string. Validation entry lists become "[loc->path]: msg" joined with "; ".
// Unparseable bodies fall back to an HTTP status summary.
func flattenErrorBody(status int, body []byte) string {
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
			return detail
		}
		var entries []validationEntry
		if err := json.Unmarshal(envelope.Detail, &entries); err == nil && len(entries) > 0 {
			flat := make([]string, 0, len(entries))
			for _, e := range entries {
				flat = append(flat, fmt.Sprintf("[%s]: %s", joinLoc(e.Loc), e.Msg))
			}
			return strings.Join(flat, "; ")
		}
		return string(envelope.Detail)
	}
	return fmt.Sprintf("HTTP %d: %s", status, truncateBody(body, 200))
}

func joinLoc(loc []any) string {
	if len(loc) == 0 {
		return "N/A"
	}
	parts := make([]string, 0, len(loc))
	for _, l := range loc {
		parts = append(parts, fmt.Sprint(l))
	}
	return strings.Join(parts, "->")
}

func truncateBody(body []byte, max int) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
