package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/guideline-extractor/internal/artifacts"
	"github.com/jonathan/guideline-extractor/internal/llm/llmtest"
	"github.com/jonathan/guideline-extractor/internal/schemas"
	"github.com/jonathan/guideline-extractor/internal/types"
	"github.com/jonathan/guideline-extractor/internal/validation"
)

var testNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

const genericReply = "```json\n[{\"content_type\":\"generic\",\"topic\":\"Asthma\",\"section_type\":\"background\",\"summary\":\"Chronic airway disease.\"}]\n```"

func testGuideline() types.GuidelineInfo {
	return types.GuidelineInfo{
		GuidelineID:      "stg",
		GuidelineName:    "Standard Treatment Guidelines",
		GuidelineVersion: "2024",
		RegulatoryStatus: types.RegulatoryDraft,
	}
}

func testPage(n int) types.PageImage {
	return types.PageImage{PageNumber: n, Data: []byte(pageKey(n)), MimeType: "image/png"}
}

func pageKey(n int) string {
	return "page-" + string(rune('0'+n))
}

func testRegistry(t *testing.T) *schemas.Registry {
	t.Helper()
	r, err := schemas.DefaultRegistry()
	require.NoError(t, err)
	return r
}

func newTestProcessor(t *testing.T, client *llmtest.Client, store artifacts.Store) *Processor {
	t.Helper()
	p, err := NewProcessor(ProcessorOptions{
		Client:     client,
		Store:      store,
		Validator:  validation.New(testRegistry(t)),
		BasePrompt: "Extract the page.",
		Guideline:  testGuideline(),
		CreatedBy:  "tester",
		Now:        func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return p
}

func newFileStore(t *testing.T) *artifacts.FileStore {
	t.Helper()
	store, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func fileExists(store *artifacts.FileStore, name string) bool {
	_, err := os.Stat(filepath.Join(store.Dir(), name))
	return err == nil
}

func readFile(t *testing.T, store *artifacts.FileStore, name string) string {
	t.Helper()
	data, err := os.ReadFile(store.Path(name))
	require.NoError(t, err)
	return string(data)
}

// isPagePrompt distinguishes page calls from the metadata bootstrap call
func isPagePrompt(prompt string) bool {
	return strings.Contains(prompt, "Guideline Context:")
}

// failingStore rejects every write
type failingStore struct{}

func (failingStore) SaveText(context.Context, string, string) error { return errors.New("disk full") }
func (failingStore) SaveJSON(context.Context, string, any) error    { return errors.New("disk full") }
