package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"audio-forensics-api/internal/model"
)

// Runner executes an analyzer command and returns its stdout. Tests swap
// this out to avoid spawning processes.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// RunCommand is the default Runner: it executes the command with the given
// stdin and returns stdout, folding stderr into the error on failure.
func RunCommand(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func runJSON(ctx context.Context, run Runner, stdin []byte, dest any, name string, args ...string) error {
	out, err := run(ctx, stdin, name, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, dest); err != nil {
		return fmt.Errorf("parse %s output: %w", name, err)
	}
	return nil
}

// CommandTranscriber shells out to a transcription command that takes an
// audio file path and prints a Transcription as JSON.
type CommandTranscriber struct {
	Command string
	Run     Runner
}

func NewCommandTranscriber(command string) *CommandTranscriber {
	return &CommandTranscriber{Command: command, Run: RunCommand}
}

func (t *CommandTranscriber) Transcribe(ctx context.Context, audio []byte, filenameHint string) (Transcription, error) {
	var result Transcription

	ext := filepath.Ext(filenameHint)
	if ext == "" {
		ext = ".wav"
	}
	tmp, err := os.CreateTemp("", "transcribe-*"+ext)
	if err != nil {
		return result, fmt.Errorf("transcribe: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return result, fmt.Errorf("transcribe: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return result, fmt.Errorf("transcribe: close temp file: %w", err)
	}

	if err := runJSON(ctx, t.Run, nil, &result, t.Command, tmp.Name()); err != nil {
		return result, err
	}
	return result, nil
}

// CommandSentiment shells out to a sentiment command reading text on stdin.
type CommandSentiment struct {
	Command string
	Run     Runner
}

func NewCommandSentiment(command string) *CommandSentiment {
	return &CommandSentiment{Command: command, Run: RunCommand}
}

func (s *CommandSentiment) Analyze(ctx context.Context, text string) (Label, error) {
	var result Label
	if err := runJSON(ctx, s.Run, []byte(text), &result, s.Command); err != nil {
		return result, err
	}
	return result, nil
}

// CommandGender shells out to a gender classification command.
type CommandGender struct {
	Command string
	Run     Runner
}

func NewCommandGender(command string) *CommandGender {
	return &CommandGender{Command: command, Run: RunCommand}
}

func (g *CommandGender) Detect(ctx context.Context, audioPath string) (Label, error) {
	var result Label
	if err := runJSON(ctx, g.Run, nil, &result, g.Command, audioPath); err != nil {
		return result, err
	}
	return result, nil
}

// CommandMetadata shells out to a metadata extraction command.
type CommandMetadata struct {
	Command string
	Run     Runner
}

func NewCommandMetadata(command string) *CommandMetadata {
	return &CommandMetadata{Command: command, Run: RunCommand}
}

func (m *CommandMetadata) Extract(ctx context.Context, audioPath, originalFilename string, timestamps *model.OriginalTimestamps) (MetadataResult, error) {
	args := []string{audioPath, "--original-filename", originalFilename}
	if timestamps != nil {
		if timestamps.Created != nil {
			args = append(args, "--original-created", strconv.FormatFloat(*timestamps.Created, 'f', -1, 64))
		}
		if timestamps.Modified != nil {
			args = append(args, "--original-modified", strconv.FormatFloat(*timestamps.Modified, 'f', -1, 64))
		}
	}

	var result MetadataResult
	if err := runJSON(ctx, m.Run, nil, &result, m.Command, args...); err != nil {
		return result, err
	}
	return result, nil
}

// CommandSplice shells out to the temporal splice analyzer.
type CommandSplice struct {
	Command string
	Run     Runner
}

func NewCommandSplice(command string) *CommandSplice {
	return &CommandSplice{Command: command, Run: RunCommand}
}

func (s *CommandSplice) Analyze(ctx context.Context, audioPath string) (SpliceReport, error) {
	var result SpliceReport
	if err := runJSON(ctx, s.Run, nil, &result, s.Command, audioPath); err != nil {
		return result, err
	}
	return result, nil
}

// CommandDiarizer shells out to the diarization command, which writes the
// per-segment audio files itself and reports their public URLs.
type CommandDiarizer struct {
	Command string
	Run     Runner
}

func NewCommandDiarizer(command string) *CommandDiarizer {
	return &CommandDiarizer{Command: command, Run: RunCommand}
}

func (d *CommandDiarizer) Diarize(ctx context.Context, audioPath, segmentsDir, publicBase string) (DiarizationResult, error) {
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		return DiarizationResult{}, fmt.Errorf("diarize: ensure segments dir: %w", err)
	}

	var result DiarizationResult
	err := runJSON(ctx, d.Run, nil, &result, d.Command,
		audioPath,
		"--segments-dir", segmentsDir,
		"--public-base", publicBase,
	)
	if err != nil {
		return DiarizationResult{}, err
	}
	return result, nil
}
