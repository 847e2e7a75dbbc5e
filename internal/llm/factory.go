package llm

import (
	"context"
	"fmt"
)

// Provider kinds accepted by NewGenerator.
const (
	KindOpenAI    = "openai"
	KindGemini    = "gemini"
	KindCustom    = "custom"
	KindAnthropic = "anthropic"
)

// ProviderSpec describes one configured provider and the model a task uses.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type ProviderSpec struct {
	// Kind is the provider kind (openai, gemini, custom, anthropic).
	Kind string
	// APIKey authenticates requests.
	APIKey string
	// Endpoint is the base URL; required for custom, optional otherwise.
	Endpoint string
	// Model is the model identifier.
	Model string
}

// NewGenerator creates a Generator for the provider described by p.
// A custom provider speaks the OpenAI Chat Completions protocol at Endpoint.
func NewGenerator(ctx context.Context, p ProviderSpec, opts Options) (Generator, error) {
	switch p.Kind {
	case KindOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			Name:    KindOpenAI,
			APIKey:  p.APIKey,
			Model:   p.Model,
			BaseURL: p.Endpoint,
		}, opts), nil
	case KindCustom:
		if p.Endpoint == "" {
			return nil, fmt.Errorf("custom LLM provider requires an endpoint")
		}
		return NewOpenAIProvider(OpenAIConfig{
			Name:    KindCustom,
			APIKey:  p.APIKey,
			Model:   p.Model,
			BaseURL: p.Endpoint,
		}, opts), nil
	case KindAnthropic:
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:  p.APIKey,
			Model:   p.Model,
			BaseURL: p.Endpoint,
		}, opts), nil
	case KindGemini:
		return NewGeminiProvider(ctx, GeminiConfig{
			APIKey:  p.APIKey,
			Model:   p.Model,
			BaseURL: p.Endpoint,
		}, opts)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", p.Kind)
	}
}
