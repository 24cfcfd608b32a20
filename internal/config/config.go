// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/guideline-extractor/internal/llm"
)

// Defaults
const (
	DefaultBatchSize         = 5
	DefaultDPI               = 200
	DefaultMetadataDPI       = 150
	DefaultMaxTokens         = 4000
	DefaultMetadataMaxTokens = 1000
	DefaultOutputDir         = "./output"
	DefaultProvider          = string(llm.ProviderAnthropic)
)

// API key environment variables per provider
const (
	AnthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
	GeminiAPIKeyEnv    = "GEMINI_API_KEY"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths
	Input      string `json:"input,omitempty"`       // PDF file or directory of page images
	OutputDir  string `json:"output_dir,omitempty"`  // Directory for per-page and run artifacts
	PromptPath string `json:"prompt_path,omitempty"` // Base extraction prompt; empty uses the embedded one

	// Model
	Provider          string  `json:"provider,omitempty" validate:"omitempty,oneof=anthropic gemini"`
	Model             string  `json:"model,omitempty"`
	APIKey            string  `json:"api_key,omitempty"`
	MaxTokens         int     `json:"max_tokens,omitempty" validate:"gte=0,lte=64000"`
	MetadataMaxTokens int     `json:"metadata_max_tokens,omitempty" validate:"gte=0,lte=64000"`
	Temperature       float32 `json:"temperature,omitempty" validate:"gte=0,lte=2"`
	RequestsPerMinute int     `json:"requests_per_minute,omitempty" validate:"gte=0"`
	TimeoutSeconds    int     `json:"timeout_seconds,omitempty" validate:"gte=0"`

	// Rendering and batching
	BatchSize   int `json:"batch_size,omitempty" validate:"gte=0,lte=50"`
	DPI         int `json:"dpi,omitempty" validate:"omitempty,gte=50,lte=600"`
	MetadataDPI int `json:"metadata_dpi,omitempty" validate:"omitempty,gte=50,lte=600"`

	// Guideline identity overrides
	GuidelineID      string `json:"guideline_id,omitempty"`
	GuidelineName    string `json:"guideline_name,omitempty"`
	GuidelineVersion string `json:"guideline_version,omitempty"`
	Country          string `json:"country,omitempty"`
	Jurisdiction     string `json:"jurisdiction,omitempty"`
	Organization     string `json:"organization,omitempty"`
	RegulatoryStatus string `json:"regulatory_status,omitempty" validate:"omitempty,oneof=official draft guidance archived"`
	CreatedBy        string `json:"created_by,omitempty"` // Recorded in every human_audit block

	// Archives
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	SQLitePath  string `json:"sqlite_path,omitempty"`  // Local SQLite archive

	// Behavior
	ReviewWorkbook bool   `json:"review_workbook,omitempty"` // Also write guideline_review.xlsx
	LogMode        string `json:"log_mode,omitempty" validate:"omitempty,oneof=development production"`
	LogLevel       string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Verbose        bool   `json:"verbose,omitempty"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		OutputDir:         DefaultOutputDir,
		Provider:          DefaultProvider,
		Model:             llm.DefaultAnthropicModel,
		MaxTokens:         DefaultMaxTokens,
		MetadataMaxTokens: DefaultMetadataMaxTokens,
		BatchSize:         DefaultBatchSize,
		DPI:               DefaultDPI,
		MetadataDPI:       DefaultMetadataDPI,
		TimeoutSeconds:    int((5 * time.Minute).Seconds()),
		LogMode:           "development",
		LogLevel:          "info",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the configuration has valid values.
// Required inputs are checked by the CLI after flags are merged.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' (got %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.Provider == string(llm.ProviderGemini) && strings.HasPrefix(c.Model, "claude-") {
		return fmt.Errorf("config error: model %s is not a gemini model", c.Model)
	}

	if c.PromptPath != "" {
		if _, err := os.Stat(c.PromptPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: prompt file not found: %s", c.PromptPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	result.Input = orString(result.Input, defaults.Input)
	result.OutputDir = orString(result.OutputDir, defaults.OutputDir)
	result.PromptPath = orString(result.PromptPath, defaults.PromptPath)
	result.Provider = orString(result.Provider, defaults.Provider)
	result.APIKey = orString(result.APIKey, defaults.APIKey)
	result.GuidelineID = orString(result.GuidelineID, defaults.GuidelineID)
	result.GuidelineName = orString(result.GuidelineName, defaults.GuidelineName)
	result.GuidelineVersion = orString(result.GuidelineVersion, defaults.GuidelineVersion)
	result.Country = orString(result.Country, defaults.Country)
	result.Jurisdiction = orString(result.Jurisdiction, defaults.Jurisdiction)
	result.Organization = orString(result.Organization, defaults.Organization)
	result.RegulatoryStatus = orString(result.RegulatoryStatus, defaults.RegulatoryStatus)
	result.CreatedBy = orString(result.CreatedBy, defaults.CreatedBy)
	result.DatabaseURL = orString(result.DatabaseURL, defaults.DatabaseURL)
	result.SQLitePath = orString(result.SQLitePath, defaults.SQLitePath)
	result.LogMode = orString(result.LogMode, defaults.LogMode)
	result.LogLevel = orString(result.LogLevel, defaults.LogLevel)

	// The default model belongs to the default provider
	if result.Model == "" {
		if result.Provider == string(llm.ProviderGemini) && defaults.Provider != result.Provider {
			result.Model = llm.DefaultGeminiModel
		} else {
			result.Model = defaults.Model
		}
	}

	// Int fields: use default if zero
	result.MaxTokens = orInt(result.MaxTokens, defaults.MaxTokens)
	result.MetadataMaxTokens = orInt(result.MetadataMaxTokens, defaults.MetadataMaxTokens)
	result.RequestsPerMinute = orInt(result.RequestsPerMinute, defaults.RequestsPerMinute)
	result.TimeoutSeconds = orInt(result.TimeoutSeconds, defaults.TimeoutSeconds)
	result.BatchSize = orInt(result.BatchSize, defaults.BatchSize)
	result.DPI = orInt(result.DPI, defaults.DPI)
	result.MetadataDPI = orInt(result.MetadataDPI, defaults.MetadataDPI)

	if result.Temperature == 0 {
		result.Temperature = defaults.Temperature
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ResolveAPIKey returns the configured key, falling back to the provider's environment variable
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.Provider == string(llm.ProviderGemini) {
		return os.Getenv(GeminiAPIKeyEnv)
	}
	return os.Getenv(AnthropicAPIKeyEnv)
}

// LLMConfig returns the transport configuration for page extraction
func (c *Config) LLMConfig() *llm.Config {
	return &llm.Config{
		Provider:          llm.Provider(c.Provider),
		Model:             c.Model,
		MaxTokens:         c.MaxTokens,
		Temperature:       c.Temperature,
		RequestsPerMinute: c.RequestsPerMinute,
		Burst:             c.BatchSize,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// MetadataLLMConfig returns the transport configuration for the cover-page bootstrap
func (c *Config) MetadataLLMConfig() *llm.Config {
	return c.LLMConfig().WithMaxTokens(c.MetadataMaxTokens)
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
