package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the service. Values are read from
// the environment, optionally seeded from a .env file.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string

	// DatabaseURL selects the backing store. A postgres DSN in production;
	// anything containing "sqlite" opens an embedded database instead.
	DatabaseURL string

	// DataDir is where uploaded case audio is persisted.
	DataDir string

	// SegmentsDir is where diarization writes per-segment audio files.
	SegmentsDir string

	// PublicBase is the public path prefix under which SegmentsDir is served.
	PublicBase string

	// FrontendOrigin is the allowed CORS origin for the browser frontend.
	FrontendOrigin string

	// StageTimeout bounds each external analysis invocation.
	StageTimeout time.Duration

	// Analyzer commands. Each is an executable invoked with the audio path
	// (plus stage-specific arguments) and must emit its result as JSON on
	// stdout.
	TranscribeCmd string
	SentimentCmd  string
	GenderCmd     string
	MetadataCmd   string
	TemporalCmd   string
	DiarizeCmd    string

	// TranscribeBackend selects the transcription executor: "command"
	// (default) or "aws".
	TranscribeBackend string
	AWSRegion         string
	AWSBucket         string

	// SMTP settings for completion notifications. Notifications are
	// disabled when SMTPHost is empty.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	MailTo       string
}

// Load reads the configuration from the environment. A missing .env file
// is not an error; explicit environment variables always win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8000"),
		DatabaseURL:       getEnv("DATABASE_URL", "sqlite://audioforensics.db"),
		DataDir:           getEnv("DATA_DIR", "uploads/cases"),
		SegmentsDir:       getEnv("SEGMENTS_DIR", "static/segments"),
		PublicBase:        getEnv("PUBLIC_BASE", "/static/segments"),
		FrontendOrigin:    getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
		TranscribeCmd:     getEnv("TRANSCRIBE_CMD", "analyzer-transcribe"),
		SentimentCmd:      getEnv("SENTIMENT_CMD", "analyzer-sentiment"),
		GenderCmd:         getEnv("GENDER_CMD", "analyzer-gender"),
		MetadataCmd:       getEnv("METADATA_CMD", "analyzer-metadata"),
		TemporalCmd:       getEnv("TEMPORAL_CMD", "analyzer-temporal"),
		DiarizeCmd:        getEnv("DIARIZE_CMD", "analyzer-diarize"),
		TranscribeBackend: getEnv("TRANSCRIBE_BACKEND", "command"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		AWSBucket:         os.Getenv("AWS_BUCKET"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		MailFrom:          os.Getenv("MAIL_FROM"),
		MailTo:            os.Getenv("MAIL_TO"),
	}

	timeout := getEnv("STAGE_TIMEOUT", "10m")
	d, err := time.ParseDuration(timeout)
	if err != nil {
		return nil, fmt.Errorf("parse STAGE_TIMEOUT %q: %w", timeout, err)
	}
	cfg.StageTimeout = d

	if port := os.Getenv("SMTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("parse SMTP_PORT %q: %w", port, err)
		}
		cfg.SMTPPort = p
	}

	if cfg.TranscribeBackend == "aws" && cfg.AWSBucket == "" {
		return nil, fmt.Errorf("AWS_BUCKET is required when TRANSCRIBE_BACKEND=aws")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
