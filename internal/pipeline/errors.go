package pipeline

import (
	"errors"
	"fmt"

	"audio-forensics-api/internal/model"
)

// ErrCaseNotFound reports that the addressed case (or its segment list)
// does not exist.
var ErrCaseNotFound = errors.New("case not found")

// ErrSegmentNotFound reports a segment index outside the stored list.
var ErrSegmentNotFound = errors.New("segment not found")

// ErrSegmentNotTranscribed reports the unmet precondition for segment
// sentiment analysis.
var ErrSegmentNotTranscribed = errors.New("segment must be transcribed first")

// StageError wraps a failure inside one external analysis stage.
type StageError struct {
	Dimension model.Dimension
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Dimension, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
