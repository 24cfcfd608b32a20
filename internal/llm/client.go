package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// PlaceholderAPIKey is the template value shipped in example configs
const PlaceholderAPIKey = "YOUR_API_KEY"

var (
	errNoCandidates = errors.New("no candidates in response")
	errNoContent    = errors.New("no content in response")
	errNoText       = errors.New("no text parts in response")
)

// VisionClient sends one prompt with one image and returns the model text and token usage
type VisionClient interface {
	Extract(ctx context.Context, prompt string, image []byte, mimeType string) (string, types.Usage, error)
	// Close releases any resources held by the client
	Close() error
}

// TransportError represents a failure to obtain a reply from the vision model
type TransportError struct {
	Provider Provider
	Message  string
	Status   int
	Cause    error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewClient creates a vision client based on configuration.
// The client is rate limited when RequestsPerMinute is set.
func NewClient(ctx context.Context, config *Config, apiKey string, log *logger.Logger) (VisionClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	var (
		client VisionClient
		err    error
	)
	switch config.Provider {
	case ProviderGemini:
		client, err = NewGeminiClient(ctx, config, apiKey, log)
	default:
		client, err = NewAnthropicClient(config, apiKey, log)
	}
	if err != nil {
		return nil, err
	}

	if config.RequestsPerMinute > 0 {
		return NewRateLimited(client, config.RequestsPerMinute, config.Burst), nil
	}
	return client, nil
}

// checkAPIKey rejects absent and placeholder credentials
func checkAPIKey(provider Provider, apiKey string) error {
	switch apiKey {
	case "":
		return &TransportError{Provider: provider, Message: "API key is required"}
	case PlaceholderAPIKey:
		return &TransportError{Provider: provider, Message: "API key is a placeholder"}
	}
	return nil
}

// checkImage rejects empty image payloads before any network call
func checkImage(provider Provider, image []byte) error {
	if len(image) == 0 {
		return &TransportError{Provider: provider, Message: "image bytes are empty"}
	}
	return nil
}
