package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// The segment endpoints re-run one analysis kind against one diarization
// segment and write back only that segment's field.

func (s *Server) transcribeSegment(c *gin.Context) {
	caseID, index, ok := s.segmentParams(c)
	if !ok {
		return
	}

	text, err := s.orch.TranscribeSegment(c.Request.Context(), caseID, index)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcription": text})
}

func (s *Server) analyzeSegmentSentiment(c *gin.Context) {
	caseID, index, ok := s.segmentParams(c)
	if !ok {
		return
	}

	sentiment, err := s.orch.AnalyzeSegmentSentiment(c.Request.Context(), caseID, index)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sentiment": sentiment})
}

func (s *Server) detectSegmentGender(c *gin.Context) {
	caseID, index, ok := s.segmentParams(c)
	if !ok {
		return
	}

	gender, err := s.orch.DetectSegmentGender(c.Request.Context(), caseID, index)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gender": gender})
}

func (s *Server) segmentParams(c *gin.Context) (string, int, bool) {
	index, err := strconv.Atoi(c.Param("segment_index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Segment not found"})
		return "", 0, false
	}
	return c.Param("case_id"), index, true
}
