package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	t.Run("with type field", func(t *testing.T) {
		t.Parallel()
		err := &APIError{
			Provider:   "openai",
			StatusCode: 429,
			Message:    "rate limit exceeded",
			Type:       "rate_limit_error",
		}
		got := err.Error()
		assert.Contains(t, got, "openai")
		assert.Contains(t, got, "429")
		assert.Contains(t, got, "rate_limit_error")
		assert.Contains(t, got, "rate limit exceeded")
		assert.Equal(t, "openai: API error (status 429, type rate_limit_error): rate limit exceeded", got)
	})

	t.Run("without type field", func(t *testing.T) {
		t.Parallel()
		err := &APIError{
			Provider:   "anthropic",
			StatusCode: 500,
			Message:    "internal server error",
		}
		got := err.Error()
		assert.Contains(t, got, "anthropic")
		assert.Contains(t, got, "500")
		assert.Contains(t, got, "internal server error")
		assert.NotContains(t, got, "type")
		assert.Equal(t, "anthropic: API error (status 500): internal server error", got)
	})

	t.Run("code is not part of the message", func(t *testing.T) {
		t.Parallel()
		err := &APIError{
			Provider:   "custom",
			StatusCode: 401,
			Message:    "invalid api key",
			Code:       "invalid_api_key",
		}
		assert.Equal(t, "custom: API error (status 401): invalid api key", err.Error())
	})
}

func TestAPIError_IsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		// Transient errors.
		{name: "429 Too Many Requests is transient", statusCode: 429, want: true},
		{name: "500 Internal Server Error is transient", statusCode: 500, want: true},
		{name: "502 Bad Gateway is transient", statusCode: 502, want: true},
		{name: "503 Service Unavailable is transient", statusCode: 503, want: true},
		{name: "504 Gateway Timeout is transient", statusCode: 504, want: true},
		{name: "0 (no HTTP response / network error) is transient", statusCode: 0, want: true},
		{name: "599 unknown 5xx is transient", statusCode: 599, want: true},

		// Non-transient errors.
		{name: "400 Bad Request is not transient", statusCode: 400, want: false},
		{name: "401 Unauthorized is not transient", statusCode: 401, want: false},
		{name: "403 Forbidden is not transient", statusCode: 403, want: false},
		{name: "404 Not Found is not transient", statusCode: 404, want: false},
		{name: "422 Unprocessable Entity is not transient", statusCode: 422, want: false},
		{name: "200 OK is not transient", statusCode: 200, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := &APIError{
				Provider:   "test-provider",
				StatusCode: tc.statusCode,
				Message:    "test message",
			}
			assert.Equal(t, tc.want, err.IsTransient())
		})
	}
}

func TestIsTransientError(t *testing.T) {
	t.Parallel()

	assert.True(t, isTransientError(fmt.Errorf("wrapped: %w", &APIError{StatusCode: 503})))
	assert.False(t, isTransientError(&APIError{StatusCode: 403}))
	assert.False(t, isTransientError(ErrEmptyResponse))
	assert.False(t, isTransientError(context.DeadlineExceeded))
}

func TestErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: fmt.Errorf("openai: request failed: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "cancelled", err: context.Canceled, want: "timeout"},
		{name: "empty response", err: fmt.Errorf("gemini: %w", ErrEmptyResponse), want: "empty_response"},
		{name: "network", err: &APIError{Provider: "openai"}, want: "network"},
		{name: "rate limited", err: &APIError{Provider: "openai", StatusCode: 429}, want: "rate_limited"},
		{name: "server", err: fmt.Errorf("wrapped: %w", &APIError{StatusCode: 503}), want: "server"},
		{name: "client", err: &APIError{StatusCode: 401}, want: "client"},
		{name: "other", err: errors.New("boom"), want: "other"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ErrorType(tc.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("returns first success", func(t *testing.T) {
		t.Parallel()
		calls := 0
		got, err := withRetry(context.Background(), "test", 3, time.Millisecond, func() (string, error) {
			calls++
			if calls < 3 {
				return "", &APIError{StatusCode: 500}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-transient error", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := withRetry(context.Background(), "test", 3, time.Millisecond, func() (string, error) {
			calls++
			return "", &APIError{StatusCode: 400, Message: "bad prompt"}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.NotContains(t, err.Error(), "exhausted")
	})

	t.Run("wraps last error after exhaustion", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := withRetry(context.Background(), "test", 2, time.Millisecond, func() (int, error) {
			calls++
			return 0, &APIError{StatusCode: 429}
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "test: exhausted 2 retries")

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 429, apiErr.StatusCode)
	})

	t.Run("cancelled context interrupts the wait", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := withRetry(ctx, "test", 5, time.Hour, func() (int, error) {
			calls++
			cancel()
			return 0, &APIError{StatusCode: 502}
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
