package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// AnthropicClient implements VisionClient over the Anthropic Messages API
type AnthropicClient struct {
	client anthropic.Client
	http   *http.Client
	config *Config
	log    *logger.Logger
}

// NewAnthropicClient creates a client. No request is made until Extract.
// SDK retries are disabled; a failed page is retried by re-running it.
func NewAnthropicClient(config *Config, apiKey string, log *logger.Logger) (*AnthropicClient, error) {
	if err := checkAPIKey(ProviderAnthropic, apiKey); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	httpClient := &http.Client{Timeout: timeout}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(config.BaseURL, "/")+"/"))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		http:   httpClient,
		config: config,
		log:    log,
	}, nil
}

// Extract sends the image block followed by the prompt text as a single user message
func (c *AnthropicClient) Extract(ctx context.Context, prompt string, image []byte, mimeType string) (string, types.Usage, error) {
	if err := checkImage(ProviderAnthropic, image); err != nil {
		return "", types.Usage{}, err
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	reqID := uuid.New().String()
	start := time.Now()
	c.log.Debug("llm.anthropic.request", "req_id", reqID, "model", c.config.Model, "image_bytes", len(image))

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   int64(c.config.MaxTokens),
		Temperature: anthropic.Float(float64(c.config.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(image)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		c.log.Warn("llm.anthropic.error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", types.Usage{}, anthropicError(err)
	}

	usage := types.Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)}
	c.log.Debug("llm.anthropic.response",
		"req_id", reqID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", usage, &TransportError{Provider: ProviderAnthropic, Message: "empty response", Cause: errNoText}
	}

	return strings.Join(parts, ""), usage, nil
}

// Close drops idle keep-alive connections
func (c *AnthropicClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// anthropicError wraps an SDK failure, keeping the HTTP status of API errors
func anthropicError(err error) *TransportError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &TransportError{Provider: ProviderAnthropic, Message: "request failed", Status: apiErr.StatusCode, Cause: err}
	}
	return &TransportError{Provider: ProviderAnthropic, Message: "request failed", Cause: err}
}
