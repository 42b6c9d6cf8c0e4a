package server

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/asticode/go-astisub"
	"github.com/gin-gonic/gin"

	"audio-forensics-api/internal/model"
)

// Subtitle export turns the transcribed diarization segments of a case
// into downloadable subtitle files.

func (s *Server) exportSRT(c *gin.Context) {
	s.exportSubtitles(c, ".srt", "text/srt", func(sub *astisub.Subtitles, w io.Writer) error {
		return sub.WriteToSRT(w)
	})
}

func (s *Server) exportWebVTT(c *gin.Context) {
	s.exportSubtitles(c, ".vtt", "text/vtt", func(sub *astisub.Subtitles, w io.Writer) error {
		return sub.WriteToWebVTT(w)
	})
}

func (s *Server) exportTTML(c *gin.Context) {
	s.exportSubtitles(c, ".ttml", "text/xml", func(sub *astisub.Subtitles, w io.Writer) error {
		return sub.WriteToTTML(w)
	})
}

func (s *Server) exportSubtitles(c *gin.Context, ext, contentType string, write func(*astisub.Subtitles, io.Writer) error) {
	record, err := s.store.Get(c.Param("case_id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Case not found"})
		return
	}

	subtitles := buildSubtitles(record.Segments)
	if len(subtitles.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No transcribed segments to export"})
		return
	}

	buf := &bytes.Buffer{}
	if err := write(subtitles, buf); err != nil {
		s.abortError(c, err)
		return
	}

	filename := strings.TrimSuffix(record.OriginalFilename, filepath.Ext(record.OriginalFilename)) + ext

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// buildSubtitles converts transcribed segments into subtitle items,
// keeping the speaker label as a cue prefix.
func buildSubtitles(segments model.SegmentList) *astisub.Subtitles {
	subtitles := astisub.NewSubtitles()

	for _, seg := range segments {
		if seg.Transcription == nil || *seg.Transcription == "" {
			continue
		}

		item := &astisub.Item{
			StartAt: time.Duration(seg.Start * float64(time.Second)),
			EndAt:   time.Duration(seg.End * float64(time.Second)),
		}
		text := *seg.Transcription
		if seg.Speaker != "" {
			text = seg.Speaker + ": " + text
		}
		item.Lines = append(item.Lines, astisub.Line{Items: []astisub.LineItem{{Text: text}}})

		subtitles.Items = append(subtitles.Items, item)
	}
	return subtitles
}
