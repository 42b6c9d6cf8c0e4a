package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"audio-forensics-api/internal/model"
	"audio-forensics-api/internal/store"
)

// Segment re-analysis operates on one existing segment of one case, for a
// single analysis kind, and writes only that one field back. Each
// operation is idempotent: re-invoking overwrites the same field again.

// TranscribeSegment fetches the segment's audio and stores its
// transcription. The transcript text is returned.
func (o *Orchestrator) TranscribeSegment(ctx context.Context, caseID string, index int) (string, error) {
	seg, err := o.segment(caseID, index)
	if err != nil {
		return "", err
	}

	audio, err := o.segmentAudio(ctx, seg.FileURL)
	if err != nil {
		return "", fmt.Errorf("fetch segment audio: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()

	res, err := o.exec.Transcriber.Transcribe(sctx, audio, fmt.Sprintf("segment_%d.wav", index))
	if err != nil {
		return "", &StageError{Dimension: model.DimTranscription, Err: err}
	}

	if _, err := o.store.PatchSegment(caseID, index, store.SegmentPatch{Transcription: &res.Text}); err != nil {
		return "", err
	}
	return res.Text, nil
}

// AnalyzeSegmentSentiment classifies the sentiment of a segment's stored
// transcription. The segment must have been transcribed first.
func (o *Orchestrator) AnalyzeSegmentSentiment(ctx context.Context, caseID string, index int) (string, error) {
	seg, err := o.segment(caseID, index)
	if err != nil {
		return "", err
	}
	if seg.Transcription == nil || *seg.Transcription == "" {
		return "", ErrSegmentNotTranscribed
	}

	sctx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()

	res, err := o.exec.Sentiment.Analyze(sctx, *seg.Transcription)
	if err != nil {
		return "", &StageError{Dimension: model.DimSentiment, Err: err}
	}

	if _, err := o.store.PatchSegment(caseID, index, store.SegmentPatch{Sentiment: &res.Value}); err != nil {
		return "", err
	}
	return res.Value, nil
}

// DetectSegmentGender fetches the segment's audio and stores its gender
// label.
func (o *Orchestrator) DetectSegmentGender(ctx context.Context, caseID string, index int) (string, error) {
	seg, err := o.segment(caseID, index)
	if err != nil {
		return "", err
	}

	audio, err := o.segmentAudio(ctx, seg.FileURL)
	if err != nil {
		return "", fmt.Errorf("fetch segment audio: %w", err)
	}

	// The gender executor wants a file path; give the fetched bytes a
	// uniquely named scoped temp file so concurrent requests on other
	// cases cannot collide.
	tmp, err := os.CreateTemp("", "segment-gender-*.wav")
	if err != nil {
		return "", fmt.Errorf("segment temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write segment temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close segment temp file: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()

	res, err := o.exec.Gender.Detect(sctx, tmp.Name())
	if err != nil {
		return "", &StageError{Dimension: model.DimGender, Err: err}
	}

	if _, err := o.store.PatchSegment(caseID, index, store.SegmentPatch{Gender: &res.Value}); err != nil {
		return "", err
	}
	return res.Value, nil
}

// segment looks up one segment for an explicit caller request, where an
// out-of-range index is a not-found error rather than the patcher's silent
// no-op.
func (o *Orchestrator) segment(caseID string, index int) (*model.Segment, error) {
	c, err := o.store.Get(caseID)
	if err != nil {
		return nil, err
	}
	if c == nil || len(c.Segments) == 0 {
		return nil, ErrCaseNotFound
	}
	if index < 0 || index >= len(c.Segments) {
		return nil, ErrSegmentNotFound
	}
	seg := c.Segments[index]
	return &seg, nil
}

// segmentAudio resolves a segment's stored reference to bytes. Absolute
// http(s) URLs are fetched over the network; anything else is read
// straight from the local segments directory instead of looping back
// through the HTTP layer.
func (o *Orchestrator) segmentAudio(ctx context.Context, fileURL string) ([]byte, error) {
	if strings.HasPrefix(fileURL, "http://") || strings.HasPrefix(fileURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := o.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", fileURL, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	rel := strings.TrimPrefix(fileURL, o.opts.PublicBase)
	path := filepath.Join(o.opts.SegmentsDir, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	return os.ReadFile(path)
}
