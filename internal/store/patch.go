package store

import "audio-forensics-api/internal/model"

// SegmentPatch names the per-segment analysis fields that may be
// overwritten. Nil fields are left untouched.
type SegmentPatch struct {
	Transcription *string
	Sentiment     *string
	Gender        *string
}

// PatchSegment overwrites the supplied fields on one diarization segment,
// leaving every other segment and every other case field as it was. The
// segment list is replaced wholesale so the write commits atomically with
// the rest of the record.
//
// An absent case, or a case without diarization segments, is a no-op
// returning nil. An out-of-range index is also a no-op but returns the
// unmodified case: the index addresses a stable, never-reordered list, so
// a stale index is a boundary condition rather than an error.
func (s *Store) PatchSegment(id string, index int, patch SegmentPatch) (*model.Case, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	c, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if c == nil || len(c.Segments) == 0 {
		return nil, nil
	}
	if index < 0 || index >= len(c.Segments) {
		return c, nil
	}

	segments := make(model.SegmentList, len(c.Segments))
	copy(segments, c.Segments)

	if patch.Transcription != nil {
		segments[index].Transcription = patch.Transcription
	}
	if patch.Sentiment != nil {
		segments[index].Sentiment = patch.Sentiment
	}
	if patch.Gender != nil {
		segments[index].Gender = patch.Gender
	}

	c.Segments = segments
	if err := s.db.Save(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}
