package llm

import (
	"context"
	"iter"
)

type ProviderName string

const (
	Anthropic ProviderName = "anthropic"
)

// Client is the language-model capability the gateway depends on. Concrete
// vendor integrations live in sub-packages and register themselves with
// Register from an init function.
type Client interface {
	Name() string

	// Generate blocks until the provider returns the complete answer.
	Generate(ctx context.Context, params *Params) (string, error)

	// Stream returns a lazy, single-pass sequence of chat events. No network
	// I/O happens until the sequence is ranged over. Breaking out of the loop
	// releases the upstream connection.
	Stream(ctx context.Context, params *Params) iter.Seq2[ChatEvent, error]
}

// Params is the fully resolved upstream request. Exactly one of Prompt and
// Messages is populated.
type Params struct {
	Model           string
	System          string
	Temperature     float64
	MaxOutputTokens *int

	Prompt   string
	Messages []Message
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
