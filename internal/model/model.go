package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StageStatus tracks the state of one analysis dimension on a case.
type StageStatus string

const (
	StatusPending   StageStatus = "pending"
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
)

// Dimension names one of the six analysis kinds.
type Dimension string

const (
	DimTranscription Dimension = "transcription"
	DimSentiment     Dimension = "sentiment"
	DimGender        Dimension = "gender"
	DimMetadata      Dimension = "metadata"
	DimTemporal      Dimension = "temporal"
	DimDiarization   Dimension = "diarization"
)

// Dimensions lists all analysis dimensions in pipeline order.
var Dimensions = []Dimension{
	DimTranscription,
	DimSentiment,
	DimGender,
	DimMetadata,
	DimTemporal,
	DimDiarization,
}

// Case struct
type Case struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	CaseName         string    `gorm:"not null" json:"name"`
	OriginalFilename string    `gorm:"not null" json:"original_filename"`
	FilePath         string    `gorm:"not null" json:"file_path"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Transcription
	TranscriptionText       string      `json:"transcription_text"`
	TranscriptionConfidence *float64    `json:"transcription_confidence"`
	TranscriptionLanguage   string      `json:"transcription_language"`
	TranscriptionStatus     StageStatus `gorm:"not null;default:pending" json:"transcription_status"`
	TranscriptionError      string      `json:"transcription_error"`

	// Sentiment
	SentimentResult     string      `json:"sentiment_result"`
	SentimentConfidence *float64    `json:"sentiment_confidence"`
	SentimentStatus     StageStatus `gorm:"not null;default:pending" json:"sentiment_status"`
	SentimentError      string      `json:"sentiment_error"`

	// Gender
	GenderResult     string      `json:"gender_result"`
	GenderConfidence *float64    `json:"gender_confidence"`
	GenderStatus     StageStatus `gorm:"not null;default:pending" json:"gender_status"`
	GenderError      string      `json:"gender_error"`

	// Metadata
	Metadata           JSONMap             `gorm:"type:text" json:"metadata"`
	OriginalTimestamps *OriginalTimestamps `gorm:"type:text" json:"original_timestamps"`
	MetadataStatus     StageStatus         `gorm:"not null;default:pending" json:"metadata_status"`
	MetadataError      string              `json:"metadata_error"`

	// Temporal splice analysis
	BackgroundSplices SpliceList         `gorm:"type:text" json:"background_splices"`
	PhaseSplices      SpliceList         `gorm:"type:text" json:"phase_splices"`
	CombinedSplices   CombinedSpliceList `gorm:"type:text" json:"combined_splices"`
	TemporalStatus    StageStatus        `gorm:"not null;default:pending" json:"temporal_status"`
	TemporalError     string             `json:"temporal_error"`

	// Diarization
	EstimatedSpeakers *int        `json:"estimated_speakers"`
	Segments          SegmentList `gorm:"type:text" json:"segments"`
	DiarizationStatus StageStatus `gorm:"not null;default:pending" json:"diarization_status"`
	DiarizationError  string      `json:"diarization_error"`
}

// StatusOf returns the stored status of the given dimension.
func (c *Case) StatusOf(dim Dimension) StageStatus {
	switch dim {
	case DimTranscription:
		return c.TranscriptionStatus
	case DimSentiment:
		return c.SentimentStatus
	case DimGender:
		return c.GenderStatus
	case DimMetadata:
		return c.MetadataStatus
	case DimTemporal:
		return c.TemporalStatus
	case DimDiarization:
		return c.DiarizationStatus
	}
	return StatusPending
}

// Segment is one diarization-identified speaker turn. The three analysis
// fields stay nil until the segment is re-analyzed on demand.
type Segment struct {
	Speaker       string  `json:"speaker"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	FileURL       string  `json:"file_url"`
	Transcription *string `json:"transcription"`
	Sentiment     *string `json:"sentiment"`
	Gender        *string `json:"gender"`
}

// Splice is a detected edit point: a time offset with a confidence score.
type Splice struct {
	Time       float64 `json:"time"`
	Confidence float64 `json:"confidence"`
}

// CombinedSplice is a high-confidence splice candidate along with the
// detection methods that agreed on it.
type CombinedSplice struct {
	Time       float64  `json:"time"`
	Confidence float64  `json:"confidence"`
	Methods    []string `json:"methods"`
}

// OriginalTimestamps carries externally supplied file timestamps as Unix
// epoch seconds.
type OriginalTimestamps struct {
	Created  *float64 `json:"created,omitempty"`
	Modified *float64 `json:"modified,omitempty"`
}

// JSONMap stores an open-ended JSON object in a single column.
type JSONMap map[string]any

type SegmentList []Segment

type SpliceList []Splice

type CombinedSpliceList []CombinedSplice

func (m JSONMap) Value() (driver.Value, error) { return jsonValue(m, len(m) == 0) }
func (m *JSONMap) Scan(src any) error          { return jsonScan(src, m) }

func (l SegmentList) Value() (driver.Value, error) { return jsonValue(l, l == nil) }
func (l *SegmentList) Scan(src any) error          { return jsonScan(src, l) }

func (l SpliceList) Value() (driver.Value, error) { return jsonValue(l, l == nil) }
func (l *SpliceList) Scan(src any) error          { return jsonScan(src, l) }

func (l CombinedSpliceList) Value() (driver.Value, error) { return jsonValue(l, l == nil) }
func (l *CombinedSpliceList) Scan(src any) error          { return jsonScan(src, l) }

func (t *OriginalTimestamps) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return jsonValue(t, false)
}

func (t *OriginalTimestamps) Scan(src any) error { return jsonScan(src, t) }

func jsonValue(v any, empty bool) (driver.Value, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonScan(src any, dest any) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
