package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
	keywordKey   contextKey = "keyword"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithRunID adds the daily run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext retrieves the run identifier from context.
// Returns empty string if not present.
func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

// WithKeyword adds the keyword being processed to the context.
func WithKeyword(ctx context.Context, keyword string) context.Context {
	return context.WithValue(ctx, keywordKey, keyword)
}

// KeywordFromContext retrieves the keyword from context.
// Returns empty string if not present.
func KeywordFromContext(ctx context.Context) string {
	return stringValue(ctx, keywordKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
