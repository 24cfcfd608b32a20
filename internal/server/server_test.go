package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/guideline-extractor/internal/db"
	"github.com/jonathan/guideline-extractor/internal/llm"
	"github.com/jonathan/guideline-extractor/internal/llm/llmtest"
	"github.com/jonathan/guideline-extractor/internal/pipeline"
	"github.com/jonathan/guideline-extractor/internal/rendering"
	"github.com/jonathan/guideline-extractor/internal/server/ratelimit"
	"github.com/jonathan/guideline-extractor/internal/types"
)

const (
	metadataReply = `{"guideline_name":"Standard Treatment Guidelines","guideline_version":"2024","country":"South Africa"}`
	genericReply  = "```json\n[{\"content_type\":\"generic\",\"topic\":\"Asthma\",\"section_type\":\"background\",\"summary\":\"Chronic airway disease.\"}]\n```"
	invalidReply  = `[{"content_type":"generic","topic":"Asthma"}]`
)

// scriptedClient answers the cover-page call with metadata and page calls by image bytes
func scriptedClient(pages map[string]string) *llmtest.Client {
	return llmtest.New(func(call llmtest.Call) llmtest.Reply {
		usage := types.Usage{InputTokens: 100, OutputTokens: 10}
		if !strings.Contains(call.Prompt, "Guideline Context:") {
			return llmtest.Reply{Text: metadataReply, Usage: usage}
		}
		if text, ok := pages[string(call.Image)]; ok {
			return llmtest.Reply{Text: text, Usage: usage}
		}
		return llmtest.Reply{Text: genericReply, Usage: usage}
	})
}

type testServer struct {
	*Server
	backend *db.SQLite
	client  *llmtest.Client
}

func newTestServer(t *testing.T, client *llmtest.Client, rl *ratelimit.Config) *testServer {
	t.Helper()
	backend, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	if rl == nil {
		rl = &ratelimit.Config{Enabled: false}
	}
	factory := func(context.Context) (llm.VisionClient, llm.VisionClient, error) {
		return client, nil, nil
	}
	s, err := New(Config{BatchSize: 2, Model: "test-model", CreatedBy: "tester", RateLimit: rl}, backend, factory, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &testServer{Server: s, backend: backend, client: client}
}

// pageUpload builds a multipart body with one "page" part per image and the given form fields
func pageUpload(t *testing.T, fields map[string]string, pages ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i, p := range pages {
		part, err := mw.CreateFormFile("page", "page_"+string(rune('a'+i))+".png")
		require.NoError(t, err)
		_, err = part.Write([]byte(p))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(body string) []sseEvent {
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				ev.Name = v
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok {
				ev.Data = v
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, scriptedClient(nil), nil)

	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunStream_ExtractsAndArchives(t *testing.T) {
	s := newTestServer(t, scriptedClient(map[string]string{"page-2": invalidReply}), nil)

	body, contentType := pageUpload(t, nil, "page-1", "page-2")
	req := httptest.NewRequest(http.MethodPost, "/runs/stream", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(t, s.Handler(), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "run", events[0].Name)
	last := events[len(events)-1]
	assert.Equal(t, "complete", last.Name)

	var complete map[string]string
	require.NoError(t, json.Unmarshal([]byte(last.Data), &complete))
	assert.Equal(t, db.RunStatusCompleted, complete["status"])
	runID := uuid.MustParse(complete["run_id"])

	var pageEvents int
	var summary RunSummaryResponse
	for _, ev := range events {
		switch ev.Name {
		case "page":
			pageEvents++
		case "summary":
			require.NoError(t, json.Unmarshal([]byte(ev.Data), &summary))
		}
	}
	assert.Equal(t, 2, pageEvents)
	assert.Equal(t, "standard_treatment_guidelines", summary.Guideline.GuidelineID)
	assert.Equal(t, 1, summary.Summary.TotalChunks)
	assert.Equal(t, []int{2}, summary.Summary.PagesNeedingRetry)

	run, err := s.backend.GetRun(context.Background(), runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, db.RunStatusCompleted, run.Status)
	assert.Equal(t, "standard_treatment_guidelines", run.GuidelineID)
	assert.Equal(t, 2, run.TotalPages)
	assert.Equal(t, 1, run.TotalChunks)
	assert.Equal(t, "test-model", run.Model)
}

func TestRunStream_GuidelineNameSkipsMetadata(t *testing.T) {
	client := scriptedClient(nil)
	s := newTestServer(t, client, nil)

	body, contentType := pageUpload(t, map[string]string{"guideline_name": "EML 2023", "pages": "2"}, "page-1", "page-2", "page-3")
	req := httptest.NewRequest(http.MethodPost, "/runs/stream", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(t, s.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code)

	calls := client.Calls()
	require.Len(t, calls, 1, "only page 2 is extracted and no metadata call is made")
	assert.Equal(t, "page-2", string(calls[0].Image))
	assert.Contains(t, calls[0].Prompt, "guideline_id: eml_2023")
}

func TestRunStream_FailedRunRecorded(t *testing.T) {
	client := llmtest.New(func(call llmtest.Call) llmtest.Reply {
		return llmtest.Reply{Err: errors.New("boom")}
	})
	s := newTestServer(t, client, nil)

	body, contentType := pageUpload(t, nil, "page-1")
	req := httptest.NewRequest(http.MethodPost, "/runs/stream", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(t, s.Handler(), req)

	events := parseSSE(rec.Body.String())
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, "error", events[len(events)-2].Name)
	assert.Contains(t, events[len(events)-2].Data, "metadata extraction failed")

	var complete map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[len(events)-1].Data), &complete))
	assert.Equal(t, db.RunStatusFailed, complete["status"])

	run, err := s.backend.GetRun(context.Background(), uuid.MustParse(complete["run_id"]))
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusFailed, run.Status)
}

func TestUpload_Validation(t *testing.T) {
	s := newTestServer(t, scriptedClient(nil), nil)

	tests := []struct {
		name      string
		fields    map[string]string
		pages     []string
		wantInMsg string
	}{
		{name: "no files", wantInMsg: "upload a PDF"},
		{name: "bad batch size", fields: map[string]string{"batch_size": "0"}, pages: []string{"page-1"}, wantInMsg: "batch_size"},
		{name: "bad page list", fields: map[string]string{"pages": "3-1"}, pages: []string{"page-1"}, wantInMsg: "pages"},
		{name: "page outside document", fields: map[string]string{"pages": "9"}, pages: []string{"page-1"}, wantInMsg: "no listed page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := pageUpload(t, tt.fields, tt.pages...)
			req := httptest.NewRequest(http.MethodPost, "/runs", body)
			req.Header.Set("Content-Type", contentType)
			rec := do(t, s.Handler(), req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantInMsg)
		})
	}
}

func TestCreateRun_BackgroundThenBrowse(t *testing.T) {
	s := newTestServer(t, scriptedClient(nil), nil)
	h := s.Handler()

	body, contentType := pageUpload(t, nil, "page-1")
	req := httptest.NewRequest(http.MethodPost, "/runs", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(t, h, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, db.RunStatusRunning, created.Status)

	require.Eventually(t, func() bool {
		run, err := s.backend.GetRun(context.Background(), uuid.MustParse(created.RunID))
		return err == nil && run != nil && run.Status == db.RunStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	// Run detail
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/runs/"+created.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var run db.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, 1, run.TotalChunks)

	// Run list
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.RunID)

	// Artifact list
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/runs/"+created.RunID+"/artifacts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list ArtifactListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Contains(t, list.Artifacts, "guideline_chunks_flat.json")
	assert.Contains(t, list.Artifacts, "page_001_raw.txt")

	// JSON artifact
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/runs/"+created.RunID+"/artifacts/guideline_chunks_flat.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var flat []types.FlatChunk
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flat))
	require.Len(t, flat, 1)
	assert.Equal(t, "standard_treatment_guidelines_p001_1", flat[0].ChunkID)

	// Text artifact
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/runs/"+created.RunID+"/artifacts/page_001_raw.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, genericReply, rec.Body.String())

	// Missing artifact
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/runs/"+created.RunID+"/artifacts/page_009.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRun_Errors(t *testing.T) {
	s := newTestServer(t, scriptedClient(nil), nil)

	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/runs?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit_Returns429(t *testing.T) {
	s := newTestServer(t, scriptedClient(nil), &ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
	})

	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	ts := newTestServer(t, llmtest.New(nil), nil)

	assert.Equal(t, rendering.DefaultDPI, ts.cfg.DPI)
	assert.Equal(t, pipeline.MetadataDPI, ts.cfg.MetadataDPI, "the cover renders at the metadata resolution, not the page one")
	assert.Equal(t, int64(DefaultMaxUploadBytes), ts.cfg.MaxUploadBytes)
}
