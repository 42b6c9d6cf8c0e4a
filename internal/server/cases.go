package server

import (
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"audio-forensics-api/internal/model"
)

// createCase accepts an uploaded recording, persists a new case and runs
// the full analysis pipeline against it. Unsupported formats are rejected
// before anything is persisted. A stage failure is reported as 500 but the
// partially analyzed case remains inspectable.
func (s *Server) createCase(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing file upload"})
		return
	}

	if !supportedAudio(file.Filename, supportedExtensions) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unsupported file format"})
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = filepath.Base(file.Filename)
	}
	notes := c.PostForm("notes")

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	record, err := s.store.Create(name, filepath.Base(file.Filename), content, notes)
	if err != nil {
		s.abortError(c, err)
		return
	}

	if err := s.orch.Run(c.Request.Context(), record.ID, false); err != nil {
		s.abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         record.ID,
		"name":       record.CaseName,
		"created_at": record.CreatedAt.Format(time.RFC3339),
		"message":    "Case created successfully with all analyses completed",
	})
}

// listCases returns case summaries, newest first.
func (s *Server) listCases(c *gin.Context) {
	cases, err := s.store.List()
	if err != nil {
		s.abortError(c, err)
		return
	}

	summaries := make([]gin.H, 0, len(cases))
	for _, record := range cases {
		summaries = append(summaries, gin.H{
			"id":                record.ID,
			"name":              record.CaseName,
			"original_filename": record.OriginalFilename,
			"created_at":        record.CreatedAt.Format(time.RFC3339),
			"updated_at":        record.UpdatedAt.Format(time.RFC3339),
			"notes":             record.Notes,
		})
	}
	c.JSON(http.StatusOK, summaries)
}

// getCase returns the full record. Only populated dimensions appear under
// "analyses"; per-dimension statuses (including failures with their
// reasons) are always listed under "stages" so an aborted run is
// distinguishable from one that never started.
func (s *Server) getCase(c *gin.Context) {
	record, err := s.store.Get(c.Param("case_id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Case not found"})
		return
	}

	analyses := gin.H{}
	if record.TranscriptionStatus == model.StatusCompleted {
		analyses["transcription"] = gin.H{
			"text":       record.TranscriptionText,
			"confidence": record.TranscriptionConfidence,
			"language":   record.TranscriptionLanguage,
		}
	}
	if record.SentimentStatus == model.StatusCompleted {
		analyses["sentiment"] = gin.H{
			"sentiment":  record.SentimentResult,
			"confidence": record.SentimentConfidence,
		}
	}
	if record.GenderStatus == model.StatusCompleted {
		analyses["gender"] = gin.H{
			"gender":     record.GenderResult,
			"confidence": record.GenderConfidence,
		}
	}
	if record.MetadataStatus == model.StatusCompleted {
		analyses["metadata"] = gin.H{
			"metadata":            record.Metadata,
			"original_timestamps": record.OriginalTimestamps,
		}
	}
	if record.TemporalStatus == model.StatusCompleted {
		analyses["temporal"] = gin.H{
			"background_splices": record.BackgroundSplices,
			"phase_splices":      record.PhaseSplices,
			"combined_splices":   record.CombinedSplices,
		}
	}
	if record.DiarizationStatus == model.StatusCompleted {
		analyses["diarization"] = gin.H{
			"estimated_speakers": record.EstimatedSpeakers,
			"segments":           record.Segments,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                record.ID,
		"name":              record.CaseName,
		"original_filename": record.OriginalFilename,
		"created_at":        record.CreatedAt.Format(time.RFC3339),
		"updated_at":        record.UpdatedAt.Format(time.RFC3339),
		"notes":             record.Notes,
		"analyses":          analyses,
		"stages":            stageStatuses(record),
	})
}

func stageStatuses(record *model.Case) gin.H {
	stages := gin.H{}
	add := func(dim model.Dimension, status model.StageStatus, reason string) {
		entry := gin.H{"status": status}
		if status == model.StatusFailed && reason != "" {
			entry["error"] = reason
		}
		stages[string(dim)] = entry
	}
	add(model.DimTranscription, record.TranscriptionStatus, record.TranscriptionError)
	add(model.DimSentiment, record.SentimentStatus, record.SentimentError)
	add(model.DimGender, record.GenderStatus, record.GenderError)
	add(model.DimMetadata, record.MetadataStatus, record.MetadataError)
	add(model.DimTemporal, record.TemporalStatus, record.TemporalError)
	add(model.DimDiarization, record.DiarizationStatus, record.DiarizationError)
	return stages
}

// deleteCase removes the record and its stored audio file.
func (s *Server) deleteCase(c *gin.Context) {
	existed, err := s.store.Delete(c.Param("case_id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Case not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Case deleted successfully"})
}

// analyzeCase re-runs the pipeline on an existing case. Completed stages
// are skipped unless force=true, which makes a failed run cheap to retry.
func (s *Server) analyzeCase(c *gin.Context) {
	force := c.Query("force") == "true"

	if err := s.orch.Run(c.Request.Context(), c.Param("case_id"), force); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Analysis completed"})
}
