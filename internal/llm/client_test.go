package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RejectsMissingCredentials(t *testing.T) {
	for _, provider := range []Provider{ProviderAnthropic, ProviderGemini} {
		for _, key := range []string{"", PlaceholderAPIKey} {
			cfg := DefaultConfig()
			cfg.Provider = provider

			_, err := NewClient(context.Background(), cfg, key, nil)

			var transportErr *TransportError
			require.True(t, errors.As(err, &transportErr), "provider %s key %q", provider, key)
			assert.Equal(t, provider, transportErr.Provider)
		}
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokens = 0

	_, err := NewClient(context.Background(), cfg, "sk-test", nil)
	assert.ErrorContains(t, err, "max tokens")
}

func TestNewClient_WrapsWithRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerMinute = 60

	client, err := NewClient(context.Background(), cfg, "sk-test", nil)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, ok := client.(*RateLimited)
	assert.True(t, ok)

	cfg.RequestsPerMinute = 0
	client, err = NewClient(context.Background(), cfg, "sk-test", nil)
	require.NoError(t, err)
	_, ok = client.(*AnthropicClient)
	assert.True(t, ok)
}

func TestImageFormat(t *testing.T) {
	assert.Equal(t, "png", imageFormat("image/png"))
	assert.Equal(t, "jpeg", imageFormat("image/jpeg"))
	assert.Equal(t, "jpeg", imageFormat("image/jpg"))
	assert.Equal(t, "png", imageFormat(""))
}

func TestTransportError_Format(t *testing.T) {
	err := &TransportError{Provider: ProviderAnthropic, Message: "request failed", Status: 500, Cause: errors.New("boom")}
	assert.Equal(t, "anthropic: request failed (status 500): boom", err.Error())
	assert.Equal(t, "boom", errors.Unwrap(err).Error())
}
