package store

import "audio-forensics-api/internal/model"

// The Update methods each overwrite exactly one dimension's fields, mark
// that dimension completed and refresh the update timestamp, all in one
// transaction. An absent case id is a no-op returning nil, not an error.

// UpdateTranscription stores transcription results on a case.
func (s *Store) UpdateTranscription(id, text string, confidence *float64, language string) (*model.Case, error) {
	return s.updateCase(id, func(c *model.Case) {
		c.TranscriptionText = text
		c.TranscriptionConfidence = confidence
		c.TranscriptionLanguage = language
		c.TranscriptionStatus = model.StatusCompleted
		c.TranscriptionError = ""
	})
}

// UpdateSentiment stores the sentiment label on a case.
func (s *Store) UpdateSentiment(id, sentiment string, confidence *float64) (*model.Case, error) {
	return s.updateCase(id, func(c *model.Case) {
		c.SentimentResult = sentiment
		c.SentimentConfidence = confidence
		c.SentimentStatus = model.StatusCompleted
		c.SentimentError = ""
	})
}

// UpdateGender stores the gender label on a case.
func (s *Store) UpdateGender(id, gender string, confidence *float64) (*model.Case, error) {
	return s.updateCase(id, func(c *model.Case) {
		c.GenderResult = gender
		c.GenderConfidence = confidence
		c.GenderStatus = model.StatusCompleted
		c.GenderError = ""
	})
}

// UpdateMetadata stores extracted file metadata on a case.
func (s *Store) UpdateMetadata(id string, metadata model.JSONMap, timestamps *model.OriginalTimestamps) (*model.Case, error) {
	return s.updateCase(id, func(c *model.Case) {
		c.Metadata = metadata
		c.OriginalTimestamps = timestamps
		c.MetadataStatus = model.StatusCompleted
		c.MetadataError = ""
	})
}

// UpdateTemporal stores the three splice candidate lists on a case.
func (s *Store) UpdateTemporal(id string, background, phase model.SpliceList, combined model.CombinedSpliceList) (*model.Case, error) {
	return s.updateCase(id, func(c *model.Case) {
		c.BackgroundSplices = background
		c.PhaseSplices = phase
		c.CombinedSplices = combined
		c.TemporalStatus = model.StatusCompleted
		c.TemporalError = ""
	})
}

// UpdateDiarization stores the speaker estimate and segment list on a case.
func (s *Store) UpdateDiarization(id string, estimatedSpeakers int, segments model.SegmentList) (*model.Case, error) {
	return s.updateCase(id, func(c *model.Case) {
		c.EstimatedSpeakers = &estimatedSpeakers
		c.Segments = segments
		c.DiarizationStatus = model.StatusCompleted
		c.DiarizationError = ""
	})
}

// MarkFailed records an attempted-and-failed stage so that a later resume
// can tell it apart from a stage that was never started.
func (s *Store) MarkFailed(id string, dim model.Dimension, reason string) (*model.Case, error) {
	return s.updateCase(id, func(c *model.Case) {
		switch dim {
		case model.DimTranscription:
			c.TranscriptionStatus = model.StatusFailed
			c.TranscriptionError = reason
		case model.DimSentiment:
			c.SentimentStatus = model.StatusFailed
			c.SentimentError = reason
		case model.DimGender:
			c.GenderStatus = model.StatusFailed
			c.GenderError = reason
		case model.DimMetadata:
			c.MetadataStatus = model.StatusFailed
			c.MetadataError = reason
		case model.DimTemporal:
			c.TemporalStatus = model.StatusFailed
			c.TemporalError = reason
		case model.DimDiarization:
			c.DiarizationStatus = model.StatusFailed
			c.DiarizationError = reason
		}
	})
}
