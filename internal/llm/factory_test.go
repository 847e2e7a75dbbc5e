package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		provider     ProviderSpec
		wantProvider string
		wantModel    string
	}{
		{
			name:         "openai",
			provider:     ProviderSpec{Kind: KindOpenAI, APIKey: "sk-test", Model: "gpt-4o"},
			wantProvider: KindOpenAI,
			wantModel:    "gpt-4o",
		},
		{
			name:         "custom endpoint",
			provider:     ProviderSpec{Kind: KindCustom, APIKey: "sk-test", Endpoint: "https://api.deepseek.com/v1", Model: "deepseek-chat"},
			wantProvider: KindCustom,
			wantModel:    "deepseek-chat",
		},
		{
			name:         "anthropic",
			provider:     ProviderSpec{Kind: KindAnthropic, APIKey: "sk-ant-test", Model: "claude-sonnet-4-5"},
			wantProvider: KindAnthropic,
			wantModel:    "claude-sonnet-4-5",
		},
		{
			name:         "gemini",
			provider:     ProviderSpec{Kind: KindGemini, APIKey: "g-test", Model: "gemini-2.5-pro"},
			wantProvider: KindGemini,
			wantModel:    "gemini-2.5-pro",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gen, err := NewGenerator(context.Background(), tc.provider, Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.wantProvider, gen.Provider())
			assert.Equal(t, tc.wantModel, gen.Model())
		})
	}
}

func TestNewGenerator_Errors(t *testing.T) {
	t.Parallel()

	t.Run("custom without endpoint", func(t *testing.T) {
		t.Parallel()
		_, err := NewGenerator(context.Background(), ProviderSpec{Kind: KindCustom, APIKey: "k"}, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint")
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		_, err := NewGenerator(context.Background(), ProviderSpec{Kind: "cohere"}, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported LLM provider: "cohere"`)
	})
}
