// Package llm provides the vision model transports used to extract page content.
// Providers are selected by configuration; every transport satisfies VisionClient.
package llm

import (
	"fmt"
	"time"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderAnthropic is the Anthropic Messages API
	ProviderAnthropic Provider = "anthropic"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Default model per provider
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultGeminiModel    = "gemini-2.5-flash"
)

// Config holds the transport configuration
type Config struct {
	Provider    Provider
	Model       string
	MaxTokens   int
	Temperature float32
	// RequestsPerMinute caps calls across all pages; zero disables limiting
	RequestsPerMinute int
	// Burst is the number of calls allowed at once under the limit, usually the batch size
	Burst   int
	Timeout time.Duration
	// BaseURL overrides the provider endpoint. Used by tests.
	BaseURL string
}

// DefaultConfig returns the default configuration (Anthropic)
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderAnthropic,
		Model:       DefaultAnthropicModel,
		MaxTokens:   4000,
		Temperature: 0,
		Timeout:     5 * time.Minute,
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider = ProviderGemini
	cfg.Model = DefaultGeminiModel
	return cfg
}

// WithMaxTokens returns a copy of c with a different output token cap
func (c *Config) WithMaxTokens(maxTokens int) *Config {
	clone := *c
	clone.MaxTokens = maxTokens
	return &clone
}

// Validate checks the fields every provider needs
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests per minute must not be negative, got %d", c.RequestsPerMinute)
	}
	return nil
}
