package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// defaultGeminiModel is used when no model is configured.
const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig holds the parameters needed to create a Gemini provider.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string
	// Model is the model identifier (e.g., "gemini-2.5-flash").
	Model string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

// GeminiProvider implements Generator using the Google Gen AI SDK against the
// Gemini Developer API.
type GeminiProvider struct {
	client *genai.Client
	model  string
	opts   Options
}

// NewGeminiProvider creates a Gemini client. The context is only used while
// constructing the SDK client.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, opts Options) (*GeminiProvider, error) {
	opts = opts.withDefaults()

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		opts:   opts,
	}, nil
}

// Generate sends prompt to GenerateContent and returns the text of the first
// candidate. Rate limiting and server errors are retried.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (*Completion, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	temperature := float32(p.opts.Temperature)
	genCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if p.opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(p.opts.MaxTokens)
	}

	return withRetry(ctx, KindGemini, p.opts.MaxRetries, p.opts.RetryDelay, func() (*Completion, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()

		resp, err := p.client.Models.GenerateContent(callCtx, p.model, contents, genCfg)
		if err != nil {
			return nil, wrapGeminiError(ctx, err)
		}

		text := resp.Text()
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
		}

		completion := &Completion{Text: text, Model: p.model}
		if resp.UsageMetadata != nil {
			completion.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			completion.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		return completion, nil
	})
}

// Provider returns the provider name.
func (p *GeminiProvider) Provider() string {
	return KindGemini
}

// Model returns the model identifier being used.
func (p *GeminiProvider) Model() string {
	return p.model
}

// wrapGeminiError converts SDK errors into APIError so retry classification
// matches the HTTP providers.
func wrapGeminiError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("gemini: request failed: %w", ctx.Err())
	}

	var sdkErr genai.APIError
	if errors.As(err, &sdkErr) {
		return &APIError{
			Provider:   KindGemini,
			StatusCode: sdkErr.Code,
			Message:    sdkErr.Message,
			Type:       sdkErr.Status,
		}
	}

	return &APIError{
		Provider: KindGemini,
		Message:  fmt.Sprintf("request failed: %v", err),
		Type:     "network_error",
	}
}
