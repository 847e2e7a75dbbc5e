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

const (
	// anthropicAPIVersion is the Anthropic API version header value.
	anthropicAPIVersion = "2023-06-01"

	// defaultAnthropicBaseURL is the public Anthropic API endpoint.
	defaultAnthropicBaseURL = "https://api.anthropic.com"

	// defaultAnthropicMaxTokens is used when Options.MaxTokens is zero; the
	// Messages API requires a limit.
	defaultAnthropicMaxTokens = 8192
)

// messagesRequest is the request body for the Anthropic Messages API.
type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

// anthropicMessage represents a single message in the Anthropic Messages API.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// contentBlock represents a content block in the Anthropic Messages API response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse is the response body from the Anthropic Messages API.
type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

// anthropicUsage contains token usage information from the Anthropic API.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicAPIErrorDetail represents the nested error object in an Anthropic API error response.
type anthropicAPIErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicErrorResponse wraps the error payload from the Anthropic API.
type anthropicErrorResponse struct {
	Type  string                  `json:"type"`
	Error anthropicAPIErrorDetail `json:"error"`
}

// AnthropicProvider implements Generator using the Anthropic Messages API.
type AnthropicProvider struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	opts       Options
}

// AnthropicConfig holds the parameters needed to create an Anthropic provider.
// This is defined in the llm package to avoid importing the config package.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model identifier.
	Model string
	// BaseURL is the API base URL (empty means the public endpoint).
	BaseURL string
}

// NewAnthropicProvider creates a new AnthropicProvider with the given configuration.
func NewAnthropicProvider(cfg AnthropicConfig, opts Options) *AnthropicProvider {
	opts = opts.withDefaults()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultAnthropicMaxTokens
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	return &AnthropicProvider{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		opts:    opts,
	}
}

// Generate sends prompt to the Messages API and joins the text blocks of the
// reply. Transient HTTP errors (status 429 and 5xx) and network errors are
// retried up to MaxRetries times.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (*Completion, error) {
	apiReq := messagesRequest{
		Model:     p.model,
		MaxTokens: p.opts.MaxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: p.opts.Temperature,
	}

	resp, err := withRetry(ctx, KindAnthropic, p.opts.MaxRetries, p.opts.RetryDelay, func() (*messagesResponse, error) {
		return p.sendRequest(ctx, apiReq)
	})
	if err != nil {
		return nil, err
	}

	return p.parseResponse(resp)
}

// Provider returns the provider name.
func (p *AnthropicProvider) Provider() string {
	return KindAnthropic
}

// Model returns the model identifier being used.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// sendRequest sends a single request to the Anthropic Messages API and returns
// the parsed response or an error.
func (p *AnthropicProvider) sendRequest(ctx context.Context, apiReq messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("anthropic: request failed: %w", ctx.Err())
		}
		// Network errors are considered transient and eligible for retry.
		return nil, &APIError{
			Provider: KindAnthropic,
			Message:  fmt.Sprintf("request failed: %v", err),
			Type:     "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider: KindAnthropic,
			Message:  fmt.Sprintf("failed to read response body: %v", err),
			Type:     "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicAPIError(httpResp.StatusCode, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// parseResponse joins the text content blocks of the response.
func (p *AnthropicProvider) parseResponse(resp *messagesResponse) (*Completion, error) {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("anthropic: response contains no text content: %w", ErrEmptyResponse)
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}

	return &Completion{
		Text:         text,
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// parseAnthropicAPIError parses an Anthropic API error from the response status code and body.
func parseAnthropicAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   KindAnthropic,
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}

	return apiErr
}
