// Package analysis defines the contracts for the six external analysis
// capabilities and their default command-backed implementations. The
// algorithms themselves live outside this service; everything here is
// invocation and result plumbing.
package analysis

import (
	"context"

	"audio-forensics-api/internal/model"
)

// Transcription is the speech-to-text result for one piece of audio.
type Transcription struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Language   string   `json:"language"`
}

// Label is a categorical classification with an optional confidence score.
type Label struct {
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence"`
}

// MetadataResult is the outcome of file metadata extraction.
type MetadataResult struct {
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata"`
	Error    string         `json:"error"`
}

// SpliceReport carries the three splice candidate lists produced by the
// temporal analyzer. Combined is the analyzer's own agreement set of
// Background and Phase; it is stored as delivered.
type SpliceReport struct {
	Background []model.Splice         `json:"background_splices"`
	Phase      []model.Splice         `json:"phase_splices"`
	Combined   []model.CombinedSplice `json:"combined_splices"`
}

// DiarizedSegment is one speaker turn as reported by the diarizer.
type DiarizedSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	FileURL string  `json:"file_url"`
}

// DiarizationResult is the diarizer's output: a speaker estimate and the
// ordered segment list, each segment's audio written under the segments
// directory and exposed at a public path.
type DiarizationResult struct {
	EstimatedSpeakers int               `json:"estimated_speakers"`
	Segments          []DiarizedSegment `json:"segments"`
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filenameHint string) (Transcription, error)
}

// SentimentAnalyzer classifies text as positive, negative or neutral.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (Label, error)
}

// GenderDetector classifies the dominant speaker gender of an audio file.
type GenderDetector interface {
	Detect(ctx context.Context, audioPath string) (Label, error)
}

// MetadataExtractor reads structured metadata out of an audio file.
type MetadataExtractor interface {
	Extract(ctx context.Context, audioPath, originalFilename string, timestamps *model.OriginalTimestamps) (MetadataResult, error)
}

// SpliceAnalyzer detects edit points in an audio file.
type SpliceAnalyzer interface {
	Analyze(ctx context.Context, audioPath string) (SpliceReport, error)
}

// Diarizer splits an audio file into speaker turns.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath, segmentsDir, publicBase string) (DiarizationResult, error)
}

// Executors bundles one implementation of each analysis capability.
type Executors struct {
	Transcriber Transcriber
	Sentiment   SentimentAnalyzer
	Gender      GenderDetector
	Metadata    MetadataExtractor
	Splice      SpliceAnalyzer
	Diarizer    Diarizer
}
