// Package awstranscribe implements the Transcriber contract on top of
// Amazon Transcribe, for deployments without a local transcription
// analyzer. Audio is staged in S3 under a content-hash key so repeated
// uploads of the same recording reuse the existing object and job.
package awstranscribe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	transcribetypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/aws/smithy-go"

	"audio-forensics-api/internal/analysis"
)

const pollInterval = 10 * time.Second

// Transcriber runs transcription jobs against Amazon Transcribe.
type Transcriber struct {
	s3Client         *s3.Client
	transcribeClient *transcribe.Client
	bucket           string
	languageCode     string
}

// New constructs a Transcriber for the given region and bucket.
func New(ctx context.Context, region, bucket string) (*Transcriber, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Transcriber{
		s3Client:         s3.NewFromConfig(cfg),
		transcribeClient: transcribe.NewFromConfig(cfg),
		bucket:           bucket,
		languageCode:     string(transcribetypes.LanguageCodeEnUs),
	}, nil
}

// transcriptionResult mirrors the JSON document Transcribe writes to S3.
type transcriptionResult struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
	Status string `json:"status"`
}

// Transcribe uploads the audio, runs a transcription job to completion and
// returns the transcript text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filenameHint string) (analysis.Transcription, error) {
	var result analysis.Transcription

	sum := sha256.Sum256(audio)
	hash := hex.EncodeToString(sum[:])[:16]
	key := fmt.Sprintf("uploads/%s_%s", hash, filepath.Base(filenameHint))
	jobName := fmt.Sprintf("transcribe-%s", hash)

	exists, err := t.objectExists(ctx, key)
	if err != nil {
		return result, fmt.Errorf("check s3 object: %w", err)
	}
	if !exists {
		_, err = t.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &t.bucket,
			Key:    &key,
			Body:   bytes.NewReader(audio),
		})
		if err != nil {
			return result, fmt.Errorf("upload audio: %w", err)
		}
	}

	if err := t.ensureJob(ctx, jobName, key, filenameHint); err != nil {
		return result, err
	}

	text, err := t.fetchTranscript(ctx, jobName+".json")
	if err != nil {
		return result, fmt.Errorf("fetch transcript: %w", err)
	}

	result.Text = text
	result.Language = t.languageCode
	return result, nil
}

// ensureJob starts the transcription job unless one already exists, then
// polls until it completes.
func (t *Transcriber) ensureJob(ctx context.Context, jobName, key, filenameHint string) error {
	exists, status, err := t.jobStatus(ctx, jobName)
	if err != nil {
		return fmt.Errorf("check job status: %w", err)
	}

	if !exists {
		mediaURI := fmt.Sprintf("s3://%s/%s", t.bucket, key)
		format := strings.TrimPrefix(filepath.Ext(filenameHint), ".")
		if format == "" {
			format = "wav"
		}
		_, err := t.transcribeClient.StartTranscriptionJob(ctx, &transcribe.StartTranscriptionJobInput{
			TranscriptionJobName: &jobName,
			LanguageCode:         transcribetypes.LanguageCode(t.languageCode),
			MediaFormat:          transcribetypes.MediaFormat(format),
			Media: &transcribetypes.Media{
				MediaFileUri: &mediaURI,
			},
			OutputBucketName: &t.bucket,
		})
		if err != nil {
			return fmt.Errorf("start transcription job: %w", err)
		}
	} else if status == string(transcribetypes.TranscriptionJobStatusCompleted) {
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, status, err := t.jobStatus(ctx, jobName)
			if err != nil {
				return fmt.Errorf("poll job status: %w", err)
			}
			switch status {
			case string(transcribetypes.TranscriptionJobStatusCompleted):
				return nil
			case string(transcribetypes.TranscriptionJobStatusFailed):
				return fmt.Errorf("transcription job %s failed", jobName)
			}
		}
	}
}

func (t *Transcriber) jobStatus(ctx context.Context, jobName string) (bool, string, error) {
	out, err := t.transcribeClient.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
		TranscriptionJobName: &jobName,
	})
	if err != nil {
		var notFound *transcribetypes.NotFoundException
		if errors.As(err, &notFound) || strings.Contains(err.Error(), "The requested job couldn't be found") {
			return false, "", nil
		}
		return false, "", err
	}
	return true, string(out.TranscriptionJob.TranscriptionJobStatus), nil
}

func (t *Transcriber) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := t.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &t.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *Transcriber) fetchTranscript(ctx context.Context, key string) (string, error) {
	out, err := t.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &t.bucket,
		Key:    &key,
	})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()

	var result transcriptionResult
	if err := json.NewDecoder(out.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Results.Transcripts) == 0 {
		return "", errors.New("no transcript found in result")
	}
	return result.Results.Transcripts[0].Transcript, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "NotFoundException" || apiErr.ErrorCode() == "404" {
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "NotFound:")
}
