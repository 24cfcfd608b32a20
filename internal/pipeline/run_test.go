package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/guideline-extractor/internal/artifacts"
	"github.com/jonathan/guideline-extractor/internal/llm/llmtest"
	"github.com/jonathan/guideline-extractor/internal/prompts"
	"github.com/jonathan/guideline-extractor/internal/types"
)

const metadataReply = `{"guideline_name":"Standard Treatment Guidelines","guideline_version":"2024","country":"South Africa"}`

// scripted answers the metadata call with metadataReply and page calls from pageReplies
func scripted(pageReplies map[string]string) *llmtest.Client {
	return llmtest.New(func(call llmtest.Call) llmtest.Reply {
		usage := types.Usage{InputTokens: 1000, OutputTokens: 100}
		if !isPagePrompt(call.Prompt) {
			return llmtest.Reply{Text: metadataReply, Usage: usage}
		}
		text, ok := pageReplies[string(call.Image)]
		if !ok {
			text = genericReply
		}
		return llmtest.Reply{Text: text, Usage: usage}
	})
}

func baseRunOptions(t *testing.T, client *llmtest.Client, store artifacts.Store, n int) RunOptions {
	return RunOptions{
		Pages:     []types.PageImage{testPage(1), testPage(2), testPage(3)}[:n],
		Client:    client,
		Registry:  testRegistry(t),
		Store:     store,
		BatchSize: 2,
		CreatedBy: "tester",
	}
}

func TestRun_CleanRun(t *testing.T) {
	client := scripted(nil)
	store := newFileStore(t)

	var progress [][2]int
	var stages []string
	opts := baseRunOptions(t, client, store, 3)
	opts.OnPage = func(completed, total int) { progress = append(progress, [2]int{completed, total}) }
	opts.OnProgress = func(e ProgressEvent) { stages = append(stages, e.Stage) }

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "standard_treatment_guidelines", res.Guideline.GuidelineID)
	require.NotNil(t, res.Metadata)
	require.Len(t, res.Outputs, 3)
	for _, out := range res.Outputs {
		assert.Equal(t, types.StatusSuccess, out.Status)
	}
	assert.Equal(t, 3, res.Assembled.Nested.TotalChunks)
	assert.Len(t, res.Assembled.Flat, 3)
	assert.Empty(t, res.Summary.PagesNeedingRetry)
	assert.Equal(t, types.Usage{InputTokens: 4000, OutputTokens: 400}, res.Usage)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
	assert.Contains(t, stages, StageMetadata)
	assert.Contains(t, stages, StageAssemble)
	assert.Len(t, client.Calls(), 4)

	for _, name := range []string{artifacts.FlatName, artifacts.NestedName, artifacts.MetadataName} {
		assert.True(t, fileExists(store, name), name)
	}

	var flat []types.FlatChunk
	require.NoError(t, json.Unmarshal([]byte(readFile(t, store, artifacts.FlatName)), &flat))
	require.Len(t, flat, 3)
	assert.Equal(t, "standard_treatment_guidelines_p001_1", flat[0].ChunkID)
	assert.Equal(t, "2024", flat[0].GuidelineVersion)

	var nested types.GuidelineOutput
	require.NoError(t, json.Unmarshal([]byte(readFile(t, store, artifacts.NestedName)), &nested))
	assert.Equal(t, 3, nested.TotalPages)
	assert.Equal(t, len(flat), nested.TotalChunks)
}

func TestRun_MixedFailure(t *testing.T) {
	client := scripted(map[string]string{pageKey(2): "not json"})
	store := newFileStore(t)

	res, err := Run(context.Background(), baseRunOptions(t, client, store, 3))
	require.NoError(t, err)

	require.Len(t, res.Outputs, 3)
	assert.Equal(t, types.StatusSuccess, res.Outputs[0].Status)
	assert.Equal(t, types.StatusValidationFailed, res.Outputs[1].Status)
	assert.True(t, res.Outputs[1].NeedsRetry())
	assert.Empty(t, res.Outputs[1].Records)
	assert.Equal(t, types.StatusSuccess, res.Outputs[2].Status)

	assert.Equal(t, []int{2}, res.Summary.PagesNeedingRetry)
	assert.Equal(t, 2, res.Assembled.Nested.TotalChunks)
	assert.Equal(t, 3, res.Assembled.Nested.TotalPages)
	assert.True(t, res.Assembled.Nested.Pages[1].PageInfo.NeedsRetry)
	assert.True(t, fileExists(store, artifacts.PageErrorsName(2)))
}

func TestRun_OverrideSkipsMetadata(t *testing.T) {
	client := scripted(nil)
	store := newFileStore(t)

	opts := baseRunOptions(t, client, store, 2)
	opts.Overrides = GuidelineOverrides{GuidelineName: "Manual Guideline", GuidelineID: "manual"}

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Nil(t, res.Metadata)
	assert.Equal(t, "manual", res.Guideline.GuidelineID)
	assert.Len(t, client.Calls(), 2)
	for _, c := range client.Calls() {
		assert.True(t, isPagePrompt(c.Prompt))
	}
	assert.False(t, fileExists(store, artifacts.MetadataName))
}

func TestRun_MetadataUsesCoverPage(t *testing.T) {
	client := scripted(nil)
	cover := testPage(1)

	opts := baseRunOptions(t, client, newFileStore(t), 3)
	opts.Pages = opts.Pages[1:]
	opts.MetadataPage = &cover

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 3)
	var metaCalls []llmtest.Call
	for _, c := range calls {
		if !isPagePrompt(c.Prompt) {
			metaCalls = append(metaCalls, c)
		}
	}
	require.Len(t, metaCalls, 1)
	assert.Equal(t, pageKey(1), string(metaCalls[0].Image))
}

func TestRun_MetadataFailureIsFatal(t *testing.T) {
	client := llmtest.New(func(call llmtest.Call) llmtest.Reply {
		if !isPagePrompt(call.Prompt) {
			return llmtest.Reply{Text: "no metadata here"}
		}
		return llmtest.Reply{Text: genericReply}
	})
	store := newFileStore(t)

	_, err := Run(context.Background(), baseRunOptions(t, client, store, 3))
	require.Error(t, err)
	assert.Len(t, client.Calls(), 1)
	assert.False(t, fileExists(store, artifacts.FlatName))
}

func TestRun_PromptUnavailableIsFatal(t *testing.T) {
	client := scripted(nil)

	opts := baseRunOptions(t, client, newFileStore(t), 3)
	opts.PromptPath = filepath.Join(t.TempDir(), "missing.txt")

	_, err := Run(context.Background(), opts)
	var promptErr *prompts.PromptUnavailableError
	require.True(t, errors.As(err, &promptErr))
	assert.Empty(t, client.Calls())
}

func TestRun_InvalidOptions(t *testing.T) {
	client := scripted(nil)

	opts := baseRunOptions(t, client, newFileStore(t), 3)
	opts.BatchSize = 0
	_, err := Run(context.Background(), opts)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	opts = baseRunOptions(t, client, newFileStore(t), 0)
	_, err = Run(context.Background(), opts)
	assert.Error(t, err)

	assert.Empty(t, client.Calls())
}

func TestRun_ReviewWorkbook(t *testing.T) {
	store := newFileStore(t)

	opts := baseRunOptions(t, scripted(nil), store, 2)
	opts.ReviewWorkbook = true

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, fileExists(store, artifacts.ReviewName))
}

func TestRun_PriorOutputsKeptInAssembly(t *testing.T) {
	client := scripted(nil)
	store := newFileStore(t)

	prior := func(n int, status types.ExtractionStatus, chunkIDs ...string) types.PageOutput {
		out := types.PageOutput{PageNumber: n, Status: status}
		for _, id := range chunkIDs {
			out.Chunks = append(out.Chunks, types.Chunk{
				ChunkInfo: types.ChunkInfo{ChunkID: id},
				Content:   json.RawMessage(`{"content_type":"generic","topic":"Kept"}`),
			})
		}
		return out
	}

	opts := baseRunOptions(t, client, store, 2)
	opts.Pages = opts.Pages[1:2]
	opts.Overrides = GuidelineOverrides{GuidelineName: "Manual Guideline", GuidelineID: "manual"}
	opts.PriorOutputs = []types.PageOutput{
		prior(3, types.StatusSuccess, "manual_p003_1", "manual_p003_2"),
		prior(2, types.StatusValidationFailed),
		prior(1, types.StatusSuccess, "manual_p001_1"),
	}

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, res.Outputs, 1, "only the selected page is extracted")
	assert.Len(t, client.Calls(), 1)

	nested := res.Assembled.Nested
	assert.Equal(t, 3, nested.TotalPages)
	assert.Equal(t, 4, nested.TotalChunks)
	for i, page := range nested.Pages {
		assert.Equal(t, i+1, page.PageInfo.PageNumber)
	}
	assert.Equal(t, types.StatusSuccess, nested.Pages[1].PageInfo.ExtractionStatus, "the re-run replaces the earlier failure")
	assert.Empty(t, res.Summary.PagesNeedingRetry)

	var flat []types.FlatChunk
	require.NoError(t, json.Unmarshal([]byte(readFile(t, store, artifacts.FlatName)), &flat))
	require.Len(t, flat, 4)
	assert.Equal(t, "manual_p001_1", flat[0].ChunkID)
	assert.Equal(t, "manual_p002_1", flat[1].ChunkID)
	assert.Equal(t, 3, flat[3].Page)
}
