// Package prompts loads the instructions sent to the vision model.
// The default prompt set is a YAML file embedded at compile time.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var promptFiles embed.FS

// Embedded prompt set and keys
const (
	ExtractionFile       = "extraction.yaml"
	ContentExtractionKey = "content-extraction"
	GuidelineMetadataKey = "guideline-metadata"
)

// cache stores parsed prompt files to avoid repeated YAML parsing
var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

// PromptUnavailableError is returned when a base prompt is missing or empty.
// It is fatal for a run.
type PromptUnavailableError struct {
	Source  string
	Message string
	Cause   error
}

func (e *PromptUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("prompt unavailable (%s): %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("prompt unavailable (%s): %s", e.Source, e.Message)
}

func (e *PromptUnavailableError) Unwrap() error {
	return e.Cause
}

// Get retrieves a prompt by embedded filename and key
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	return prompt, nil
}

// LoadBase returns the base extraction prompt.
// An empty path selects the embedded prompt; otherwise the file at path is read.
// The result is trimmed and must be non-empty.
func LoadBase(path string) (string, error) {
	if path == "" {
		return embedded(ExtractionFile, ContentExtractionKey)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &PromptUnavailableError{Source: path, Message: "prompt file not found", Cause: err}
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", &PromptUnavailableError{Source: path, Message: "prompt file is empty"}
	}
	return content, nil
}

// LoadMetadata returns the embedded cover-page metadata prompt
func LoadMetadata() (string, error) {
	return embedded(ExtractionFile, GuidelineMetadataKey)
}

func embedded(filename, key string) (string, error) {
	source := filename + "#" + key
	prompt, err := Get(filename, key)
	if err != nil {
		return "", &PromptUnavailableError{Source: source, Message: "embedded prompt missing", Cause: err}
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", &PromptUnavailableError{Source: source, Message: "embedded prompt is empty"}
	}
	return prompt, nil
}

// loadFile loads and caches an embedded prompt file.
func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	if prompts, exists := cache[filename]; exists {
		cacheMu.RUnlock()
		return prompts, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()

	return prompts, nil
}

// ClearCache clears the prompt cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}
