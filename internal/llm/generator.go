// Package llm provides text generation clients for the daily digest pipeline.
//
// Three pipeline tasks talk to a language model: turning a keyword into a
// PubMed query, writing the narrative review, and translating abstracts. All
// of them use the same contract: a rendered prompt goes in and generated text
// comes out. Providers cover the OpenAI Chat Completions API (and any
// OpenAI-compatible endpoint), the Anthropic Messages API, and Google Gemini.
//
// Example usage:
//
//	gen, err := llm.NewGenerator(ctx, llm.ProviderSpec{
//		Kind:   llm.KindOpenAI,
//		APIKey: key,
//		Model:  "gpt-4o-mini",
//	}, llm.Options{Temperature: 0.3, MaxRetries: 3})
//	completion, err := gen.Generate(ctx, prompt)
package llm

import (
	"context"
	"time"
)

// Completion is the text returned for one prompt.
type Completion struct {
	// Text is the generated text, fully buffered.
	Text string

	// Model is the model that produced the text.
	Model string

	// InputTokens is the number of input tokens used, when reported.
	InputTokens int

	// OutputTokens is the number of output tokens used, when reported.
	OutputTokens int
}

// Generator produces text for a prompt.
//
// Implementations should handle provider-specific API calls, response parsing,
// and retrying transient errors while conforming to this unified interface.
type Generator interface {
	// Generate sends prompt as a single user message and returns the text.
	// The context should be used for cancellation and deadline propagation.
	Generate(ctx context.Context, prompt string) (*Completion, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "gemini").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// Options holds request settings shared by every provider.
type Options struct {
	// Temperature controls randomness (0.0 to 2.0).
	Temperature float64

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the number of retries on transient errors.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// MaxTokens caps the generated tokens. Zero uses the provider default.
	MaxTokens int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 180 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	return o
}
