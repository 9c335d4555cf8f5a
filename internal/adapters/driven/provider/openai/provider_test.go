package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := New(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Provider: domain.ProviderConfig{
			ID:                "openai",
			Model:             "gpt-4o-mini",
			InputPricePer1K:   0.15 / 1000,
			OutputPricePer1K:  0.6 / 1000,
		},
	})
	require.NoError(t, err)
	return provider
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestGenerate_ReturnsTextAndUsage(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "Paris is the capital of France."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 8}
		}`))
	})

	gen, err := provider.Generate(context.Background(), "What is the capital of France?", 256)
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", gen.Text)
	assert.Equal(t, 42, gen.InputTokens)
	assert.Equal(t, 8, gen.OutputTokens)
}

func TestGenerate_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		permanent bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: domain.ErrRateLimited},
		{name: "server error is transient", status: http.StatusInternalServerError, wantErr: domain.ErrProviderTransient},
		{name: "bad gateway is transient", status: http.StatusBadGateway, wantErr: domain.ErrProviderTransient},
		{name: "auth failure is permanent", status: http.StatusUnauthorized, permanent: true},
		{name: "bad request is permanent", status: http.StatusBadRequest, permanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := provider.Generate(context.Background(), "q", 16)
			require.Error(t, err)
			if tt.permanent {
				assert.False(t, domain.IsRetryableProviderError(err))
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, domain.IsRetryableProviderError(err))
			}
		})
	}
}

func TestStream_DeliversDeltasAndUsage(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(
			"data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n" +
				"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":2}}\n\n" +
				"data: [DONE]\n\n"))
	})

	deltas, err := provider.Stream(context.Background(), "greet", 16)
	require.NoError(t, err)

	var text string
	var inputTokens, outputTokens int
	for delta := range deltas {
		require.NoError(t, delta.Err)
		text += delta.Text
		if delta.Done {
			inputTokens = delta.InputTokens
			outputTokens = delta.OutputTokens
		}
	}

	assert.Equal(t, "Hello world", text)
	assert.Equal(t, 10, inputTokens)
	assert.Equal(t, 2, outputTokens)
}

func TestCountTokens(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.Equal(t, 0, provider.CountTokens(""))
	assert.Greater(t, provider.CountTokens("The quick brown fox jumps over the lazy dog."), 0)
}

func TestCost_UsesPriceTable(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.InDelta(t, (1000*0.15+500*0.6)/1000/1000, provider.Cost(1000, 500), 1e-12)
}
