// Package pipeline drives the six analysis stages against a case and the
// on-demand re-analysis of individual diarization segments. Results are
// committed through the store after every stage, so an aborted run leaves
// a partially populated, inspectable record rather than nothing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"audio-forensics-api/internal/analysis"
	"audio-forensics-api/internal/model"
	"audio-forensics-api/internal/store"
)

// Notifier is told when a full pipeline run finishes. runErr is nil on
// success.
type Notifier interface {
	PipelineFinished(c *model.Case, runErr error)
}

// Options configures an Orchestrator.
type Options struct {
	SegmentsDir  string
	PublicBase   string
	StageTimeout time.Duration
	Logger       *slog.Logger
	Notifier     Notifier
}

// Orchestrator runs whole-case pipelines and single-segment re-analyses.
type Orchestrator struct {
	store  *store.Store
	exec   analysis.Executors
	opts   Options
	client *http.Client
}

// New constructs an Orchestrator over the given store and executors.
func New(st *store.Store, exec analysis.Executors, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		store:  st,
		exec:   exec,
		opts:   opts,
		client: &http.Client{Timeout: opts.StageTimeout},
	}
}

// Run executes the pipeline for a case in the fixed stage order, skipping
// dimensions already completed unless force is set. The first stage
// failure marks that dimension failed and aborts the remaining stages;
// stages committed earlier are left in place.
func (o *Orchestrator) Run(ctx context.Context, caseID string, force bool) error {
	c, err := o.store.Get(caseID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrCaseNotFound
	}

	audio, err := os.ReadFile(c.FilePath)
	if err != nil {
		return &store.StorageError{Op: "read", Path: c.FilePath, Err: err}
	}

	// Sentiment consumes the text produced by the transcription stage of
	// this run, or the stored text when transcription is resumed over.
	transcriptionText := c.TranscriptionText

	stages := []struct {
		dim model.Dimension
		fn  func(context.Context) error
	}{
		{model.DimTranscription, func(sctx context.Context) error {
			res, err := o.exec.Transcriber.Transcribe(sctx, audio, c.OriginalFilename)
			if err != nil {
				return err
			}
			transcriptionText = res.Text
			_, err = o.store.UpdateTranscription(c.ID, res.Text, res.Confidence, res.Language)
			return err
		}},
		{model.DimSentiment, func(sctx context.Context) error {
			res, err := o.exec.Sentiment.Analyze(sctx, transcriptionText)
			if err != nil {
				return err
			}
			_, err = o.store.UpdateSentiment(c.ID, res.Value, res.Confidence)
			return err
		}},
		{model.DimGender, func(sctx context.Context) error {
			res, err := o.exec.Gender.Detect(sctx, c.FilePath)
			if err != nil {
				return err
			}
			_, err = o.store.UpdateGender(c.ID, res.Value, res.Confidence)
			return err
		}},
		{model.DimMetadata, func(sctx context.Context) error {
			res, err := o.exec.Metadata.Extract(sctx, c.FilePath, c.OriginalFilename, c.OriginalTimestamps)
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("metadata extraction: %s", res.Error)
			}
			_, err = o.store.UpdateMetadata(c.ID, res.Metadata, c.OriginalTimestamps)
			return err
		}},
		{model.DimTemporal, func(sctx context.Context) error {
			res, err := o.exec.Splice.Analyze(sctx, c.FilePath)
			if err != nil {
				return err
			}
			_, err = o.store.UpdateTemporal(c.ID, res.Background, res.Phase, res.Combined)
			return err
		}},
		{model.DimDiarization, func(sctx context.Context) error {
			res, err := o.exec.Diarizer.Diarize(sctx, c.FilePath, o.opts.SegmentsDir, o.opts.PublicBase)
			if err != nil {
				return err
			}
			// Per-segment analysis fields start empty and are only filled
			// in later through segment re-analysis.
			segments := make(model.SegmentList, 0, len(res.Segments))
			for _, seg := range res.Segments {
				segments = append(segments, model.Segment{
					Speaker: seg.Speaker,
					Start:   seg.Start,
					End:     seg.End,
					FileURL: seg.FileURL,
				})
			}
			_, err = o.store.UpdateDiarization(c.ID, res.EstimatedSpeakers, segments)
			return err
		}},
	}

	var runErr error
	for _, stage := range stages {
		if !force && c.StatusOf(stage.dim) == model.StatusCompleted {
			o.opts.Logger.Info("stage skipped", "case", c.ID, "stage", stage.dim, "reason", "already completed")
			continue
		}
		if err := o.runStage(ctx, c.ID, stage.dim, stage.fn); err != nil {
			runErr = err
			break
		}
	}

	if o.opts.Notifier != nil {
		if final, err := o.store.Get(c.ID); err == nil && final != nil {
			o.opts.Notifier.PipelineFinished(final, runErr)
		}
	}
	return runErr
}

// runStage invokes one stage under the configured timeout and records a
// failed status with the reason before aborting the run.
func (o *Orchestrator) runStage(ctx context.Context, caseID string, dim model.Dimension, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()

	start := time.Now()
	o.opts.Logger.Info("stage started", "case", caseID, "stage", dim)

	if err := fn(sctx); err != nil {
		o.opts.Logger.Error("stage failed", "case", caseID, "stage", dim, "error", err)
		if _, markErr := o.store.MarkFailed(caseID, dim, err.Error()); markErr != nil {
			o.opts.Logger.Error("record stage failure", "case", caseID, "stage", dim, "error", markErr)
		}
		return &StageError{Dimension: dim, Err: err}
	}

	o.opts.Logger.Info("stage completed", "case", caseID, "stage", dim, "duration", time.Since(start))
	return nil
}
