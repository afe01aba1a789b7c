package ai

import (
	"context"
	"strings"
)

// ProviderKind identifies a supported LLM backend.
type ProviderKind string

const (
	ProviderOpenAI   ProviderKind = "openai"
	ProviderDeepSeek ProviderKind = "deepseek"
)

// DefaultProvider is used when an operator has not picked a provider yet.
const DefaultProvider = ProviderOpenAI

var modelCatalog = map[ProviderKind][]string{
	ProviderOpenAI:   {"gpt-4", "gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
	ProviderDeepSeek: {"deepseek-chat", "deepseek-reasoner", "deepseek-coder"},
}

// ParseProviderKind normalises a provider identifier.
func ParseProviderKind(value string) (ProviderKind, bool) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(value)))
	_, ok := modelCatalog[kind]
	return kind, ok
}

// Models returns the model identifiers accepted for the provider.
func Models(kind ProviderKind) []string {
	models := modelCatalog[kind]
	out := make([]string, len(models))
	copy(out, models)
	return out
}

// SupportsModel reports whether model belongs to the provider's catalog.
func SupportsModel(kind ProviderKind, model string) bool {
	for _, candidate := range modelCatalog[kind] {
		if candidate == model {
			return true
		}
	}
	return false
}

// APIKeyField is the settings key holding the credential for the provider.
func (k ProviderKind) APIKeyField() string {
	return string(k) + "_api_key"
}

func (k ProviderKind) String() string {
	return string(k)
}

// Scorer grades a scoring prompt with a single chat completion and returns a
// value in [0.0, 1.0].
type Scorer interface {
	Provider() ProviderKind
	Score(ctx context.Context, prompt, apiKey, model string) (float64, error)
}
