package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage contains token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openAIErrorResponse represents an error response from the OpenAI API.
type openAIErrorResponse struct {
	Error openAIErrorDetail `json:"error"`
}

// openAIErrorDetail contains error details from the OpenAI API.
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// OpenAIProvider implements Generator using the OpenAI Chat Completions API.
// The same wire format serves OpenAI-compatible endpoints such as DeepSeek,
// Moonshot or a local vLLM server.
type OpenAIProvider struct {
	httpClient *http.Client
	name       string
	apiKey     string
	model      string
	baseURL    string
	opts       Options
}

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
// This is defined in the llm package to avoid importing the config package.
type OpenAIConfig struct {
	// Name is reported by Provider(). Defaults to "openai".
	Name string
	// APIKey is the API key sent as a bearer token.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o-mini").
	Model string
	// BaseURL is the API base URL (empty means the official endpoint).
	BaseURL string
}

// NewOpenAIProvider creates a new OpenAI-compatible text generation provider.
func NewOpenAIProvider(cfg OpenAIConfig, opts Options) *OpenAIProvider {
	opts = opts.withDefaults()

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	name := cfg.Name
	if name == "" {
		name = KindOpenAI
	}

	return &OpenAIProvider{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		name:    name,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		opts:    opts,
	}
}

// Generate sends prompt to the Chat Completions endpoint.
//
// Transient errors (network, 429 and 5xx) are retried up to MaxRetries
// times with linearly growing delays.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (*Completion, error) {
	chatReq := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
	}

	return withRetry(ctx, p.name, p.opts.MaxRetries, p.opts.RetryDelay, func() (*Completion, error) {
		return p.doRequest(ctx, chatReq)
	})
}

// Provider returns the name of the LLM provider.
func (p *OpenAIProvider) Provider() string {
	return p.name
}

// Model returns the model identifier being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// doRequest performs a single API request to the Chat Completions endpoint.
func (p *OpenAIProvider) doRequest(ctx context.Context, chatReq chatRequest) (*Completion, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal request: %w", p.name, err)
	}

	endpoint := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", p.name, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: request failed: %w", p.name, ctx.Err())
		}
		return nil, &APIError{
			Provider: p.name,
			Message:  fmt.Sprintf("request failed: %v", err),
			Type:     "network_error",
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider: p.name,
			Message:  fmt.Sprintf("failed to read response body: %v", err),
			Type:     "network_error",
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseOpenAIAPIError(p.name, resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal response: %w", p.name, err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty choices in response: %w", p.name, ErrEmptyResponse)
	}

	text := chatResp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResponse)
	}

	model := chatResp.Model
	if model == "" {
		model = p.model
	}

	return &Completion{
		Text:         text,
		Model:        model,
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

// parseOpenAIAPIError parses an OpenAI API error from the response status code and body.
func parseOpenAIAPIError(provider string, statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		if errResp.Error.Code != nil {
			apiErr.Code = fmt.Sprint(errResp.Error.Code)
		}
	}

	return apiErr
}
