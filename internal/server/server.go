// Package server carries the HTTP surface: case management, segment
// re-analysis, subtitle export and the legacy stateless analysis
// endpoints kept for the original frontend.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"audio-forensics-api/internal/analysis"
	"audio-forensics-api/internal/config"
	"audio-forensics-api/internal/pipeline"
	"audio-forensics-api/internal/store"
)

// Server wires the store, orchestrator and executors into gin handlers.
type Server struct {
	store *store.Store
	orch  *pipeline.Orchestrator
	exec  analysis.Executors
	cfg   *config.Config
	log   *slog.Logger
}

// New constructs a Server.
func New(st *store.Store, orch *pipeline.Orchestrator, exec analysis.Executors, cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: st, orch: orch, exec: exec, cfg: cfg, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	app := gin.New()
	app.Use(gin.Recovery())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{s.cfg.FrontendOrigin},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}))

	// Diarization segment audio is served straight from disk at the same
	// public path the stored file_url references point to.
	app.Static(s.cfg.PublicBase, s.cfg.SegmentsDir)

	caseRoutes := app.Group("/cases")
	{
		caseRoutes.POST("/", s.createCase)
		caseRoutes.GET("/", s.listCases)
		caseRoutes.GET("/:case_id", s.getCase)
		caseRoutes.DELETE("/:case_id", s.deleteCase)
		caseRoutes.POST("/:case_id/analyze", s.analyzeCase)

		caseRoutes.POST("/:case_id/segments/:segment_index/transcribe", s.transcribeSegment)
		caseRoutes.POST("/:case_id/segments/:segment_index/sentiment", s.analyzeSegmentSentiment)
		caseRoutes.POST("/:case_id/segments/:segment_index/gender", s.detectSegmentGender)

		caseRoutes.GET("/:case_id/export/srt", s.exportSRT)
		caseRoutes.GET("/:case_id/export/vtt", s.exportWebVTT)
		caseRoutes.GET("/:case_id/export/ttml", s.exportTTML)
	}

	// Legacy single-shot endpoints: run one stage statelessly without
	// creating a case.
	app.POST("/transcribe/", s.legacyTranscribe)
	app.POST("/sentiment/", s.legacySentiment)
	app.POST("/gender/", s.legacyGender)
	app.POST("/diarization/", s.legacyDiarization)
	app.POST("/metadata/", s.legacyMetadata)
	app.POST("/temporal_inconsistency/", s.legacyTemporal)

	return app
}

// supportedExtensions are the audio formats accepted for case creation and
// the legacy analysis endpoints.
var supportedExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".flac": true, ".ogg": true,
}

// metadataExtensions additionally accepts formats only the metadata
// extractor can handle.
var metadataExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".flac": true, ".ogg": true,
	".aac": true, ".wma": true, ".aiff": true,
}

func supportedAudio(filename string, extensions map[string]bool) bool {
	return extensions[strings.ToLower(filepath.Ext(filename))]
}

// abortError maps domain errors onto the HTTP taxonomy. Bodies use the
// {"detail": ...} shape the frontend already understands.
func (s *Server) abortError(c *gin.Context, err error) {
	var stageErr *pipeline.StageError
	var storageErr *store.StorageError

	switch {
	case errors.Is(err, pipeline.ErrCaseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Case or segments not found"})
	case errors.Is(err, pipeline.ErrSegmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Segment not found"})
	case errors.Is(err, pipeline.ErrSegmentNotTranscribed):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Segment must be transcribed first"})
	case errors.As(err, &storageErr):
		s.log.Error("storage failure", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	case errors.As(err, &stageErr):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}
