package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"audio-forensics-api/internal/analysis"
	"audio-forensics-api/internal/analysis/awstranscribe"
	"audio-forensics-api/internal/config"
	"audio-forensics-api/internal/notify"
	"audio-forensics-api/internal/pipeline"
	"audio-forensics-api/internal/server"
	"audio-forensics-api/internal/store"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabaseURL, cfg.DataDir)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	executors, err := buildExecutors(cfg)
	if err != nil {
		log.Error("build executors", "error", err)
		os.Exit(1)
	}

	notifier := notify.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, cfg.MailTo, log)

	orch := pipeline.New(st, executors, pipeline.Options{
		SegmentsDir:  cfg.SegmentsDir,
		PublicBase:   cfg.PublicBase,
		StageTimeout: cfg.StageTimeout,
		Logger:       log,
		Notifier:     notifierOrNil(notifier),
	})

	srv := server.New(st, orch, executors, cfg, log)

	log.Info("listening", "addr", cfg.ListenAddr)
	if err := srv.Router().Run(cfg.ListenAddr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// buildExecutors assembles the six analysis executors, honoring the
// configured transcription backend.
func buildExecutors(cfg *config.Config) (analysis.Executors, error) {
	executors := analysis.Executors{
		Transcriber: analysis.NewCommandTranscriber(cfg.TranscribeCmd),
		Sentiment:   analysis.NewCommandSentiment(cfg.SentimentCmd),
		Gender:      analysis.NewCommandGender(cfg.GenderCmd),
		Metadata:    analysis.NewCommandMetadata(cfg.MetadataCmd),
		Splice:      analysis.NewCommandSplice(cfg.TemporalCmd),
		Diarizer:    analysis.NewCommandDiarizer(cfg.DiarizeCmd),
	}

	if cfg.TranscribeBackend == "aws" {
		transcriber, err := awstranscribe.New(context.Background(), cfg.AWSRegion, cfg.AWSBucket)
		if err != nil {
			return executors, err
		}
		executors.Transcriber = transcriber
	}
	return executors, nil
}

// notifierOrNil keeps a disabled Mailer out of the pipeline: a typed nil
// inside the Notifier interface would still be invoked.
func notifierOrNil(m *notify.Mailer) pipeline.Notifier {
	if m == nil {
		return nil
	}
	return m
}
