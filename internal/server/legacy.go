package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"audio-forensics-api/internal/model"
)

// The legacy endpoints predate case management: each runs one analysis
// against the uploaded file and returns the result without persisting
// anything.

func (s *Server) legacyTranscribe(c *gin.Context) {
	file, content, ok := s.legacyUpload(c, supportedExtensions)
	if !ok {
		return
	}

	result, err := s.exec.Transcriber.Transcribe(c.Request.Context(), content, file.Filename)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcription": result.Text})
}

func (s *Server) legacySentiment(c *gin.Context) {
	file, content, ok := s.legacyUpload(c, supportedExtensions)
	if !ok {
		return
	}

	transcription, err := s.exec.Transcriber.Transcribe(c.Request.Context(), content, file.Filename)
	if err != nil {
		s.abortError(c, err)
		return
	}

	sentiment, err := s.exec.Sentiment.Analyze(c.Request.Context(), transcription.Text)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transcription": transcription.Text,
		"sentiment":     sentiment.Value,
	})
}

func (s *Server) legacyGender(c *gin.Context) {
	file, content, ok := s.legacyUpload(c, supportedExtensions)
	if !ok {
		return
	}

	path, cleanup, err := saveTemp(content, filepath.Ext(file.Filename))
	if err != nil {
		s.abortError(c, err)
		return
	}
	defer cleanup()

	result, err := s.exec.Gender.Detect(c.Request.Context(), path)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gender": result.Value})
}

func (s *Server) legacyDiarization(c *gin.Context) {
	file, content, ok := s.legacyUpload(c, supportedExtensions)
	if !ok {
		return
	}

	path, cleanup, err := saveTemp(content, filepath.Ext(file.Filename))
	if err != nil {
		s.abortError(c, err)
		return
	}
	defer cleanup()

	result, err := s.exec.Diarizer.Diarize(c.Request.Context(), path, s.cfg.SegmentsDir, s.cfg.PublicBase)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) legacyMetadata(c *gin.Context) {
	file, content, ok := s.legacyUpload(c, metadataExtensions)
	if !ok {
		return
	}

	path, cleanup, err := saveTemp(content, filepath.Ext(file.Filename))
	if err != nil {
		s.abortError(c, err)
		return
	}
	defer cleanup()

	originalModified := c.PostForm("original_modified")
	originalCreated := c.PostForm("original_created")

	var timestamps *model.OriginalTimestamps
	if originalModified != "" || originalCreated != "" {
		timestamps = &model.OriginalTimestamps{
			Modified: parseOriginalTimestamp(originalModified),
			Created:  parseOriginalTimestamp(originalCreated),
		}
	}

	result, err := s.exec.Metadata.Extract(c.Request.Context(), path, file.Filename, timestamps)
	if err != nil {
		s.abortError(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadRequest, gin.H{"detail": result.Error})
		return
	}

	var received gin.H
	if originalModified != "" || originalCreated != "" {
		received = gin.H{
			"modified": originalModified,
			"created":  originalCreated,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                      true,
		"filename":                     file.Filename,
		"analysis_timestamp":           time.Now().Format(time.RFC3339),
		"original_timestamps_received": received,
		"metadata":                     result.Metadata,
	})
}

func (s *Server) legacyTemporal(c *gin.Context) {
	file, content, ok := s.legacyUpload(c, supportedExtensions)
	if !ok {
		return
	}

	path, cleanup, err := saveTemp(content, filepath.Ext(file.Filename))
	if err != nil {
		s.abortError(c, err)
		return
	}
	defer cleanup()

	result, err := s.exec.Splice.Analyze(c.Request.Context(), path)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file":               file.Filename,
		"background_splices": result.Background,
		"phase_splices":      result.Phase,
		"combined_splices":   result.Combined,
	})
}

// legacyUpload reads and validates the uploaded file shared by all legacy
// endpoints. On failure the response has already been written.
func (s *Server) legacyUpload(c *gin.Context, extensions map[string]bool) (*multipart.FileHeader, []byte, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing file upload"})
		return nil, nil, false
	}
	if !supportedAudio(file.Filename, extensions) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unsupported file format"})
		return nil, nil, false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return nil, nil, false
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return nil, nil, false
	}
	return file, content, true
}

// saveTemp writes content to a uniquely named temp file so concurrent
// requests never collide, returning the path and a cleanup func.
func saveTemp(content []byte, suffix string) (string, func(), error) {
	if suffix == "" {
		suffix = ".wav"
	}
	tmp, err := os.CreateTemp("", "upload-*"+suffix)
	if err != nil {
		return "", nil, err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

// parseOriginalTimestamp accepts either epoch milliseconds or an RFC3339
// timestamp and returns epoch seconds.
func parseOriginalTimestamp(value string) *float64 {
	if value == "" {
		return nil
	}
	if isDigits(value) {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil
		}
		seconds := float64(ms) / 1000
		return &seconds
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	seconds := float64(t.UnixMilli()) / 1000
	return &seconds
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}
