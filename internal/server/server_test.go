package server_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"audio-forensics-api/internal/analysis/analysistest"
	"audio-forensics-api/internal/config"
	"audio-forensics-api/internal/pipeline"
	"audio-forensics-api/internal/server"
	"audio-forensics-api/internal/store"
)

type testApp struct {
	router *gin.Engine
	store  *store.Store
	fakes  *analysistest.Set
	cfg    *config.Config
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	st, err := store.Open("sqlite://"+filepath.Join(dir, "cases.db"), filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		SegmentsDir:    filepath.Join(dir, "segments"),
		PublicBase:     "/static/segments",
		FrontendOrigin: "http://localhost:3000",
		StageTimeout:   5 * time.Second,
	}
	if err := os.MkdirAll(cfg.SegmentsDir, 0o755); err != nil {
		t.Fatalf("mkdir segments: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fakes := analysistest.NewSet()
	orch := pipeline.New(st, fakes.Executors(), pipeline.Options{
		SegmentsDir:  cfg.SegmentsDir,
		PublicBase:   cfg.PublicBase,
		StageTimeout: cfg.StageTimeout,
		Logger:       log,
	})
	srv := server.New(st, orch, fakes.Executors(), cfg, log)

	return &testApp{router: srv.Router(), store: st, fakes: fakes, cfg: cfg}
}

// upload builds a multipart form with one file plus extra string fields.
func upload(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("RIFF fake audio")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func (a *testApp) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = body
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// createCase uploads a recording and returns the new case id. The fakes
// make the whole pipeline succeed, so segments exist afterwards.
func (a *testApp) createCase(t *testing.T, name string) string {
	t.Helper()
	body, contentType := upload(t, "recording.wav", map[string]string{"name": name})
	rec := a.do(t, http.MethodPost, "/cases/", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("create case: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatalf("missing case id in %v", resp)
	}

	// The fake diarizer reports these segment files; write them so segment
	// re-analysis can read the audio locally.
	for _, seg := range []string{"seg0.wav", "seg1.wav"} {
		if err := os.WriteFile(filepath.Join(a.cfg.SegmentsDir, seg), []byte("RIFF segment"), 0o644); err != nil {
			t.Fatalf("write segment audio: %v", err)
		}
	}
	return id
}

func TestCreateCaseRejectsUnsupportedFormat(t *testing.T) {
	a := newTestApp(t)

	body, contentType := upload(t, "notes.txt", nil)
	rec := a.do(t, http.MethodPost, "/cases/", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp["detail"] != "Unsupported file format" {
		t.Fatalf("unexpected detail: %v", resp["detail"])
	}

	cases, err := a.store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cases) != 0 {
		t.Fatal("expected nothing persisted for a rejected upload")
	}
}

func TestCreateCaseMissingFile(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/cases/", bytes.NewBuffer(nil), "multipart/form-data; boundary=x")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAndGetCase(t *testing.T) {
	a := newTestApp(t)
	id := a.createCase(t, "Interview 7")

	rec := a.do(t, http.MethodGet, "/cases/"+id, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get case: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	if resp["name"] != "Interview 7" || resp["original_filename"] != "recording.wav" {
		t.Fatalf("unexpected case fields: %v", resp)
	}

	analyses, ok := resp["analyses"].(map[string]any)
	if !ok {
		t.Fatalf("missing analyses in %v", resp)
	}
	for _, key := range []string{"transcription", "sentiment", "gender", "metadata", "temporal", "diarization"} {
		if _, ok := analyses[key]; !ok {
			t.Fatalf("missing %s analysis", key)
		}
	}

	transcription := analyses["transcription"].(map[string]any)
	if transcription["text"] != "hello from the recording" {
		t.Fatalf("unexpected transcription: %v", transcription)
	}

	diarization := analyses["diarization"].(map[string]any)
	segments := diarization["segments"].([]any)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}

	stages := resp["stages"].(map[string]any)
	for key, entry := range stages {
		status := entry.(map[string]any)["status"]
		if status != "completed" {
			t.Fatalf("stage %s: expected completed, got %v", key, status)
		}
	}
}

func TestCreateCaseDefaultsNameToFilename(t *testing.T) {
	a := newTestApp(t)

	body, contentType := upload(t, "evidence.mp3", nil)
	rec := a.do(t, http.MethodPost, "/cases/", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("create case: status %d body %s", rec.Code, rec.Body.String())
	}
	if resp := decode(t, rec); resp["name"] != "evidence.mp3" {
		t.Fatalf("unexpected default name: %v", resp["name"])
	}
}

func TestGetCaseNotFound(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodGet, "/cases/no-such-case", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp["detail"] != "Case not found" {
		t.Fatalf("unexpected detail: %v", resp["detail"])
	}
}

func TestListCases(t *testing.T) {
	a := newTestApp(t)
	a.createCase(t, "First")
	a.createCase(t, "Second")

	rec := a.do(t, http.MethodGet, "/cases/", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list cases: status %d", rec.Code)
	}
	var cases []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &cases); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0]["name"] != "Second" {
		t.Fatalf("expected newest first, got %v", cases[0]["name"])
	}
}

func TestDeleteCase(t *testing.T) {
	a := newTestApp(t)
	id := a.createCase(t, "Doomed")

	rec := a.do(t, http.MethodDelete, "/cases/"+id, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete case: status %d", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/cases/"+id, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}

	rec = a.do(t, http.MethodDelete, "/cases/"+id, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestStageFailureLeavesPartialCase(t *testing.T) {
	a := newTestApp(t)
	a.fakes.Metadata.Err = errors.New("probe failed")

	body, contentType := upload(t, "recording.wav", map[string]string{"name": "Partial"})
	rec := a.do(t, http.MethodPost, "/cases/", body, contentType)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	cases, err := a.store.List()
	if err != nil || len(cases) != 1 {
		t.Fatalf("expected the partial case persisted: %v %d", err, len(cases))
	}

	rec = a.do(t, http.MethodGet, "/cases/"+cases[0].ID, nil, "")
	resp := decode(t, rec)
	stages := resp["stages"].(map[string]any)
	metadata := stages["metadata"].(map[string]any)
	if metadata["status"] != "failed" || metadata["error"] != "probe failed" {
		t.Fatalf("unexpected metadata stage: %v", metadata)
	}
	if stages["transcription"].(map[string]any)["status"] != "completed" {
		t.Fatal("expected transcription committed before the failure")
	}
	analyses := resp["analyses"].(map[string]any)
	if _, ok := analyses["metadata"]; ok {
		t.Fatal("expected no metadata analysis in the response")
	}
}

func TestAnalyzeResumeAndForce(t *testing.T) {
	a := newTestApp(t)
	id := a.createCase(t, "Case")

	rec := a.do(t, http.MethodPost, "/cases/"+id+"/analyze", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: status %d", rec.Code)
	}
	if got := a.fakes.Transcriber.Calls.Load(); got != 1 {
		t.Fatalf("expected completed stages skipped, transcriber called %d times", got)
	}

	rec = a.do(t, http.MethodPost, "/cases/"+id+"/analyze?force=true", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("forced analyze: status %d", rec.Code)
	}
	if got := a.fakes.Transcriber.Calls.Load(); got != 2 {
		t.Fatalf("expected force to rerun transcription, called %d times", got)
	}
}

func TestAnalyzeAbsentCase(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/cases/no-such-case/analyze", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSegmentReanalysisFlow(t *testing.T) {
	a := newTestApp(t)
	id := a.createCase(t, "Case")

	// Sentiment before transcription is rejected.
	rec := a.do(t, http.MethodPost, "/cases/"+id+"/segments/0/sentiment", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
	}
	if resp := decode(t, rec); resp["detail"] != "Segment must be transcribed first" {
		t.Fatalf("unexpected detail: %v", resp["detail"])
	}

	rec = a.do(t, http.MethodPost, "/cases/"+id+"/segments/0/transcribe", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("transcribe segment: status %d body %s", rec.Code, rec.Body.String())
	}
	if resp := decode(t, rec); resp["transcription"] != "hello from the recording" {
		t.Fatalf("unexpected transcription: %v", resp["transcription"])
	}

	rec = a.do(t, http.MethodPost, "/cases/"+id+"/segments/0/sentiment", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("segment sentiment: status %d", rec.Code)
	}
	if resp := decode(t, rec); resp["sentiment"] != "neutral" {
		t.Fatalf("unexpected sentiment: %v", resp["sentiment"])
	}

	rec = a.do(t, http.MethodPost, "/cases/"+id+"/segments/1/gender", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("segment gender: status %d", rec.Code)
	}
	if resp := decode(t, rec); resp["gender"] != "female" {
		t.Fatalf("unexpected gender: %v", resp["gender"])
	}
}

func TestSegmentIndexErrors(t *testing.T) {
	a := newTestApp(t)
	id := a.createCase(t, "Case")

	for _, path := range []string{
		"/cases/" + id + "/segments/9/transcribe",
		"/cases/" + id + "/segments/abc/transcribe",
		"/cases/no-such-case/segments/0/transcribe",
	} {
		rec := a.do(t, http.MethodPost, path, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestLegacySentimentEndpoint(t *testing.T) {
	a := newTestApp(t)

	body, contentType := upload(t, "clip.wav", nil)
	rec := a.do(t, http.MethodPost, "/sentiment/", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("legacy sentiment: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	if resp["transcription"] != "hello from the recording" || resp["sentiment"] != "neutral" {
		t.Fatalf("unexpected response: %v", resp)
	}

	cases, err := a.store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cases) != 0 {
		t.Fatal("expected legacy endpoint to persist nothing")
	}
}

func TestLegacyMetadataAcceptsExtraFormats(t *testing.T) {
	a := newTestApp(t)

	body, contentType := upload(t, "clip.aiff", map[string]string{
		"original_created":  "1700000000000",
		"original_modified": "2023-11-14T22:13:20Z",
	})
	rec := a.do(t, http.MethodPost, "/metadata/", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("legacy metadata: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	if resp["success"] != true || resp["filename"] != "clip.aiff" {
		t.Fatalf("unexpected response: %v", resp)
	}
	received := resp["original_timestamps_received"].(map[string]any)
	if received["created"] != "1700000000000" {
		t.Fatalf("unexpected timestamps echo: %v", received)
	}

	// The aiff extension is only valid for metadata extraction.
	body, contentType = upload(t, "clip.aiff", nil)
	rec = a.do(t, http.MethodPost, "/transcribe/", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for aiff transcription, got %d", rec.Code)
	}
}

func TestExportSRT(t *testing.T) {
	a := newTestApp(t)
	id := a.createCase(t, "Case")

	// Without any transcribed segment there is nothing to export.
	rec := a.do(t, http.MethodGet, "/cases/"+id+"/export/srt", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 before transcription, got %d", rec.Code)
	}

	rec = a.do(t, http.MethodPost, "/cases/"+id+"/segments/0/transcribe", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("transcribe segment: status %d", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/cases/"+id+"/export/srt", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export srt: status %d body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "SPEAKER_00: hello from the recording") {
		t.Fatalf("unexpected srt body: %s", rec.Body.String())
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "recording.srt") {
		t.Fatalf("unexpected disposition: %s", disposition)
	}
}

func TestExportAbsentCase(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodGet, "/cases/no-such-case/export/vtt", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
