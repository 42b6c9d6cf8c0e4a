// Package analysistest provides configurable in-memory executors for
// exercising the pipeline and HTTP layer without spawning analyzers.
package analysistest

import (
	"context"
	"sync/atomic"

	"audio-forensics-api/internal/analysis"
	"audio-forensics-api/internal/model"
)

// Float returns a pointer to f, for confidence fields.
func Float(f float64) *float64 { return &f }

// Transcriber is a fake analysis.Transcriber.
type Transcriber struct {
	Result analysis.Transcription
	Err    error
	Calls  atomic.Int64
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filenameHint string) (analysis.Transcription, error) {
	t.Calls.Add(1)
	return t.Result, t.Err
}

// Sentiment is a fake analysis.SentimentAnalyzer recording its input.
type Sentiment struct {
	Result   analysis.Label
	Err      error
	Calls    atomic.Int64
	LastText string
}

func (s *Sentiment) Analyze(ctx context.Context, text string) (analysis.Label, error) {
	s.Calls.Add(1)
	s.LastText = text
	return s.Result, s.Err
}

// Gender is a fake analysis.GenderDetector.
type Gender struct {
	Result analysis.Label
	Err    error
	Calls  atomic.Int64
}

func (g *Gender) Detect(ctx context.Context, audioPath string) (analysis.Label, error) {
	g.Calls.Add(1)
	return g.Result, g.Err
}

// Metadata is a fake analysis.MetadataExtractor.
type Metadata struct {
	Result analysis.MetadataResult
	Err    error
	Calls  atomic.Int64
}

func (m *Metadata) Extract(ctx context.Context, audioPath, originalFilename string, timestamps *model.OriginalTimestamps) (analysis.MetadataResult, error) {
	m.Calls.Add(1)
	return m.Result, m.Err
}

// Splice is a fake analysis.SpliceAnalyzer.
type Splice struct {
	Result analysis.SpliceReport
	Err    error
	Calls  atomic.Int64
}

func (s *Splice) Analyze(ctx context.Context, audioPath string) (analysis.SpliceReport, error) {
	s.Calls.Add(1)
	return s.Result, s.Err
}

// Diarizer is a fake analysis.Diarizer.
type Diarizer struct {
	Result analysis.DiarizationResult
	Err    error
	Calls  atomic.Int64
}

func (d *Diarizer) Diarize(ctx context.Context, audioPath, segmentsDir, publicBase string) (analysis.DiarizationResult, error) {
	d.Calls.Add(1)
	return d.Result, d.Err
}

// Set bundles one fake of each kind, pre-populated with plausible results.
type Set struct {
	Transcriber *Transcriber
	Sentiment   *Sentiment
	Gender      *Gender
	Metadata    *Metadata
	Splice      *Splice
	Diarizer    *Diarizer
}

// NewSet builds a Set whose executors all succeed with fixed results.
func NewSet() *Set {
	return &Set{
		Transcriber: &Transcriber{Result: analysis.Transcription{
			Text:       "hello from the recording",
			Confidence: Float(0.93),
			Language:   "en",
		}},
		Sentiment: &Sentiment{Result: analysis.Label{Value: "neutral", Confidence: Float(0.8)}},
		Gender:    &Gender{Result: analysis.Label{Value: "female", Confidence: Float(0.7)}},
		Metadata: &Metadata{Result: analysis.MetadataResult{
			Success:  true,
			Metadata: map[string]any{"duration": 10.0, "sample_rate": 16000.0},
		}},
		Splice: &Splice{Result: analysis.SpliceReport{
			Background: []model.Splice{{Time: 1.5, Confidence: 0.6}},
			Phase:      []model.Splice{{Time: 1.5, Confidence: 0.7}},
			Combined:   []model.CombinedSplice{{Time: 1.5, Confidence: 0.85, Methods: []string{"background", "phase"}}},
		}},
		Diarizer: &Diarizer{Result: analysis.DiarizationResult{
			EstimatedSpeakers: 2,
			Segments: []analysis.DiarizedSegment{
				{Speaker: "SPEAKER_00", Start: 0, End: 4.5, FileURL: "/static/segments/seg0.wav"},
				{Speaker: "SPEAKER_01", Start: 4.5, End: 10, FileURL: "/static/segments/seg1.wav"},
			},
		}},
	}
}

// Executors exposes the Set through the production interface bundle.
func (s *Set) Executors() analysis.Executors {
	return analysis.Executors{
		Transcriber: s.Transcriber,
		Sentiment:   s.Sentiment,
		Gender:      s.Gender,
		Metadata:    s.Metadata,
		Splice:      s.Splice,
		Diarizer:    s.Diarizer,
	}
}
