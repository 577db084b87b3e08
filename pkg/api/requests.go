package api

import (
	"encoding/json"
	"errors"
	"strings"
)

// AskRequest is the body accepted by the single-prompt endpoints (/ask, /ask-stream).
type AskRequest struct {
	// the prompt is required and must be a non-empty string
	Prompt string `json:"prompt" binding:"required"`

	// Optional system instruction
	System string `json:"system,omitempty"`

	// LLM Parameters
	Temperature     *float64 `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=1"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty" binding:"omitempty,gt=0"`
}

// ChatRequest is the body accepted by /chat. It mirrors what the UI chat hooks send.
type ChatRequest struct {
	// message array is required, dive in and deep validate
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`

	System string `json:"system,omitempty"`

	Temperature     *float64 `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=1"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty" binding:"omitempty,gt=0"`
}

type ChatMessage struct {
	ID      string  `json:"id,omitempty"`
	Role    Role    `json:"role" binding:"required,oneof=user assistant system"`
	Content Content `json:"content"` // string or []ContentPart

	// UI messages carry their text in parts instead of content
	Parts []ContentPart `json:"parts,omitempty"`
}

// Text flattens the message into plain text, preferring content over UI parts.
func (m ChatMessage) Text() string {
	if text := m.Content.String(); text != "" {
		return text
	}
	return joinParts(m.Parts)
}

// Content handles the union type: string | []ContentPart
type Content struct {
	Text  string
	Parts []ContentPart
}

var errInvalidContent = errors.New("content must be a string or an array of parts")

func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &c.Text)
	case '[':
		return json.Unmarshal(data, &c.Parts)
	default:
		return errInvalidContent
	}
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// String returns the plain text of the content, joining text parts.
func (c Content) String() string {
	if c.Text != "" {
		return c.Text
	}
	return joinParts(c.Parts)
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func joinParts(parts []ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type != "text" {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
)
