package llm

import (
	"context"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// GeminiClient implements VisionClient for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
	log    *logger.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string, log *logger.Logger) (*GeminiClient, error) {
	if err := checkAPIKey(ProviderGemini, apiKey); err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(config.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, &TransportError{Provider: ProviderGemini, Message: "failed to create Gemini client", Cause: err}
	}

	return &GeminiClient{client: client, config: config, log: log}, nil
}

// Extract sends the page image followed by the prompt
func (c *GeminiClient) Extract(ctx context.Context, prompt string, image []byte, mimeType string) (string, types.Usage, error) {
	if err := checkImage(ProviderGemini, image); err != nil {
		return "", types.Usage{}, err
	}

	model := c.client.GenerativeModel(c.config.Model)
	model.SetTemperature(c.config.Temperature)
	model.SetMaxOutputTokens(int32(c.config.MaxTokens))

	start := time.Now()
	c.log.Debug("llm.gemini.request", "model", c.config.Model, "image_bytes", len(image))

	resp, err := model.GenerateContent(ctx, genai.ImageData(imageFormat(mimeType), image), genai.Text(prompt))
	if err != nil {
		c.log.Warn("llm.gemini.error", "model", c.config.Model, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", types.Usage{}, &TransportError{Provider: ProviderGemini, Message: "failed to generate content", Cause: err}
	}

	usage := geminiUsage(resp)
	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", usage, &TransportError{Provider: ProviderGemini, Message: "empty response", Cause: err}
	}

	c.log.Debug("llm.gemini.response",
		"model", c.config.Model,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, usage, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// imageFormat converts a mime type such as image/png into the format name genai expects
func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	if format == "jpg" {
		return "jpeg"
	}
	if format == "" {
		return "png"
	}
	return format
}

func geminiUsage(resp *genai.GenerateContentResponse) types.Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return types.Usage{}
	}
	return types.Usage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}

// extractTextFromResponse concatenates the text parts of the first candidate
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errNoCandidates
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errNoContent
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", errNoText
	}

	return strings.Join(parts, ""), nil
}
