// Package modeldata holds the static catalog of chat models the gateway can
// target and the rules for picking one.
package modeldata

// ModelID names one entry of the catalog.
type ModelID string

const (
	ClaudeSonnet4  ModelID = "claude-sonnet-4-20250514"
	ClaudeOpus4    ModelID = "claude-opus-4-20250514"
	Claude35Sonnet ModelID = "claude-3-5-sonnet-20241022"
	Claude35Haiku  ModelID = "claude-3-5-haiku-20241022"
	Claude3Haiku   ModelID = "claude-3-haiku-20240307"
)

const (
	DefaultModel    = ClaudeSonnet4
	defaultProvider = "anthropic"
)

// Definition describes a catalog entry.
type Definition struct {
	ID              ModelID
	Name            string
	Description     string
	OwnedBy         string
	ContextLength   int
	MaxOutputTokens int
}

// KnownModels is ordered newest first. It is never mutated.
var KnownModels = []Definition{
	{
		ID:              ClaudeSonnet4,
		Name:            "Claude Sonnet 4",
		Description:     "High-performance model balancing intelligence and speed.",
		OwnedBy:         defaultProvider,
		ContextLength:   200000,
		MaxOutputTokens: 64000,
	},
	{
		ID:              ClaudeOpus4,
		Name:            "Claude Opus 4",
		Description:     "Most capable model for complex reasoning and long-horizon tasks.",
		OwnedBy:         defaultProvider,
		ContextLength:   200000,
		MaxOutputTokens: 32000,
	},
	{
		ID:              Claude35Sonnet,
		Name:            "Claude 3.5 Sonnet",
		OwnedBy:         defaultProvider,
		ContextLength:   200000,
		MaxOutputTokens: 8192,
	},
	{
		ID:              Claude35Haiku,
		Name:            "Claude 3.5 Haiku",
		Description:     "Fast model for lightweight, latency sensitive workloads.",
		OwnedBy:         defaultProvider,
		ContextLength:   200000,
		MaxOutputTokens: 8192,
	},
	{
		ID:              Claude3Haiku,
		Name:            "Claude 3 Haiku",
		OwnedBy:         defaultProvider,
		ContextLength:   200000,
		MaxOutputTokens: 4096,
	},
}

// Default returns the model used when no valid model is configured.
func Default() ModelID {
	return DefaultModel
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Definition, bool) {
	for _, def := range KnownModels {
		if string(def.ID) == id {
			return def, true
		}
	}
	return Definition{}, false
}

// IsKnown reports whether id is a catalog member.
func IsKnown(id string) bool {
	_, ok := Lookup(id)
	return ok
}

// Resolve returns candidate when it names a catalog entry and the default
// otherwise. Unknown or empty names fall back silently; callers that need
// strict validation should use IsKnown.
func Resolve(candidate string) ModelID {
	if def, ok := Lookup(candidate); ok {
		return def.ID
	}
	return Default()
}

// List returns a copy of the catalog.
func List() []Definition {
	out := make([]Definition, len(KnownModels))
	copy(out, KnownModels)
	return out
}
