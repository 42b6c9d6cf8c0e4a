package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"audio-forensics-api/internal/model"
	"audio-forensics-api/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open("sqlite://"+filepath.Join(dir, "cases.db"), filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mustCreate(t *testing.T, st *store.Store, name string) *model.Case {
	t.Helper()
	c, err := st.Create(name, "recording.wav", []byte("RIFF fake audio"), "some notes")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return c
}

func TestCreatePersistsFileAndRecord(t *testing.T) {
	st := newTestStore(t)

	c := mustCreate(t, st, "Case A")
	if c.ID == "" {
		t.Fatal("expected generated case id")
	}
	if filepath.Ext(c.FilePath) != ".wav" {
		t.Fatalf("expected audio path to keep the original extension, got %s", c.FilePath)
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		t.Fatalf("expected audio file on disk: %v", err)
	}

	for _, dim := range model.Dimensions {
		if got := c.StatusOf(dim); got != model.StatusPending {
			t.Fatalf("dimension %s: expected pending, got %s", dim, got)
		}
	}

	fetched, err := st.Get(c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.CaseName != "Case A" {
		t.Fatalf("unexpected fetched case: %#v", fetched)
	}
}

func TestGetAbsentIsNil(t *testing.T) {
	st := newTestStore(t)

	c, err := st.Get("no-such-case")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil for absent case, got %#v", c)
	}
}

func TestListNewestFirst(t *testing.T) {
	st := newTestStore(t)

	first := mustCreate(t, st, "First")
	time.Sleep(10 * time.Millisecond)
	second := mustCreate(t, st, "Second")

	cases, err := st.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].ID != second.ID || cases[1].ID != first.ID {
		t.Fatalf("expected newest first, got %s then %s", cases[0].CaseName, cases[1].CaseName)
	}
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	st := newTestStore(t)
	c := mustCreate(t, st, "Doomed")

	existed, err := st.Delete(c.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !existed {
		t.Fatal("expected delete to report an existing record")
	}
	if _, err := os.Stat(c.FilePath); !os.IsNotExist(err) {
		t.Fatalf("expected audio file removed, stat err: %v", err)
	}

	fetched, err := st.Get(c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched != nil {
		t.Fatal("expected record gone after delete")
	}

	existed, err = st.Delete(c.ID)
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if existed {
		t.Fatal("expected second delete to report no record")
	}
}

func TestDeleteToleratesMissingFile(t *testing.T) {
	st := newTestStore(t)
	c := mustCreate(t, st, "No File")

	if err := os.Remove(c.FilePath); err != nil {
		t.Fatalf("remove audio: %v", err)
	}

	existed, err := st.Delete(c.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !existed {
		t.Fatal("expected record to be deleted despite missing file")
	}
}

func TestUpdateTranscriptionOverwritesOneDimension(t *testing.T) {
	st := newTestStore(t)
	c := mustCreate(t, st, "Case")

	conf := 0.91
	updated, err := st.UpdateTranscription(c.ID, "hello world", &conf, "en")
	if err != nil {
		t.Fatalf("UpdateTranscription failed: %v", err)
	}
	if updated == nil {
		t.Fatal("expected updated case")
	}
	if updated.TranscriptionText != "hello world" || updated.TranscriptionLanguage != "en" {
		t.Fatalf("unexpected transcription fields: %#v", updated)
	}
	if updated.TranscriptionStatus != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.TranscriptionStatus)
	}
	if updated.SentimentStatus != model.StatusPending {
		t.Fatal("expected other dimensions untouched")
	}
	if !updated.UpdatedAt.After(c.UpdatedAt) && !updated.UpdatedAt.Equal(c.UpdatedAt) {
		t.Fatal("expected update timestamp refreshed")
	}
}

func TestUpdateAbsentCaseIsNoOp(t *testing.T) {
	st := newTestStore(t)

	updated, err := st.UpdateSentiment("no-such-case", "positive", nil)
	if err != nil {
		t.Fatalf("UpdateSentiment failed: %v", err)
	}
	if updated != nil {
		t.Fatalf("expected nil for absent case, got %#v", updated)
	}
}

func TestUpdateDiarizationStoresSegments(t *testing.T) {
	st := newTestStore(t)
	c := mustCreate(t, st, "Case")

	segments := model.SegmentList{
		{Speaker: "SPEAKER_00", Start: 0, End: 3, FileURL: "/static/segments/a.wav"},
		{Speaker: "SPEAKER_01", Start: 3, End: 7, FileURL: "/static/segments/b.wav"},
	}

	updated, err := st.UpdateDiarization(c.ID, 2, segments)
	if err != nil {
		t.Fatalf("UpdateDiarization failed: %v", err)
	}
	if updated.EstimatedSpeakers == nil || *updated.EstimatedSpeakers != 2 {
		t.Fatalf("unexpected speaker estimate: %#v", updated.EstimatedSpeakers)
	}

	fetched, err := st.Get(c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(fetched.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(fetched.Segments))
	}
	if fetched.Segments[0].Transcription != nil || fetched.Segments[0].Sentiment != nil || fetched.Segments[0].Gender != nil {
		t.Fatal("expected per-segment analysis fields to start empty")
	}
	if fetched.DiarizationStatus != model.StatusCompleted {
		t.Fatalf("expected diarization completed, got %s", fetched.DiarizationStatus)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	st := newTestStore(t)
	c := mustCreate(t, st, "Case")

	updated, err := st.MarkFailed(c.ID, model.DimGender, "classifier crashed")
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if updated.GenderStatus != model.StatusFailed || updated.GenderError != "classifier crashed" {
		t.Fatalf("unexpected failure fields: %s %q", updated.GenderStatus, updated.GenderError)
	}

	// A later successful run clears the failure.
	updated, err = st.UpdateGender(c.ID, "male", nil)
	if err != nil {
		t.Fatalf("UpdateGender failed: %v", err)
	}
	if updated.GenderStatus != model.StatusCompleted || updated.GenderError != "" {
		t.Fatalf("expected failure cleared, got %s %q", updated.GenderStatus, updated.GenderError)
	}
}
