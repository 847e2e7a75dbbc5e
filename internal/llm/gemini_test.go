package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time check that GeminiProvider implements Generator.
var _ Generator = (*GeminiProvider)(nil)

func newGeminiTestProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	provider, err := NewGeminiProvider(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash",
		BaseURL: srv.URL,
	}, Options{
		Temperature: 0.3,
		Timeout:     10 * time.Second,
		MaxRetries:  1,
		RetryDelay:  10 * time.Millisecond,
	})
	require.NoError(t, err)
	return provider
}

func TestGeminiProvider_Generate(t *testing.T) {
	var capturedPath string
	provider := newGeminiTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Translated abstract."}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4}
		}`))
	})

	completion, err := provider.Generate(context.Background(), "translate this")
	require.NoError(t, err)

	assert.Equal(t, "Translated abstract.", completion.Text)
	assert.Equal(t, "gemini-2.5-flash", completion.Model)
	assert.Equal(t, 12, completion.InputTokens)
	assert.Equal(t, 4, completion.OutputTokens)
	assert.True(t, strings.HasSuffix(capturedPath, "models/gemini-2.5-flash:generateContent"), capturedPath)
	assert.Equal(t, KindGemini, provider.Provider())
}

func TestGeminiProvider_RetriesServerErrors(t *testing.T) {
	var requestCount atomic.Int32
	provider := newGeminiTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"code": 503, "message": "The model is overloaded.", "status": "UNAVAILABLE"}}`))
	})

	_, err := provider.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
	assert.GreaterOrEqual(t, requestCount.Load(), int32(2))
	assert.True(t, isTransientError(err))
}
