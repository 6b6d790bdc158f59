package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

const (
	defaultFFmpegPath    = "ffmpeg"
	defaultFFmpegTimeout = 30 * time.Minute

	outputTailBytes = 2048
)

// AudioExtractor converts uploaded media into mono 16kHz mp3 with ffmpeg.
type AudioExtractor struct {
	path    string
	timeout time.Duration
	runner  commandRunner
}

// NewAudioExtractor creates an extractor running the ffmpeg binary at path
func NewAudioExtractor(path string, timeout time.Duration) *AudioExtractor {
	if path == "" {
		path = defaultFFmpegPath
	}
	if timeout <= 0 {
		timeout = defaultFFmpegTimeout
	}
	return &AudioExtractor{path: path, timeout: timeout, runner: &execRunner{}}
}

// Extract writes the audio track of inputPath to outputPath.
func (e *AudioExtractor) Extract(ctx context.Context, inputPath, outputPath string) *domain.AnalysisError {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.runner.Run(runCtx, e.path, buildExtractArgs(inputPath, outputPath)...)
	if err == nil {
		return nil
	}

	output := tail(result.Stderr, outputTailBytes)
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return domain.NewExternalToolError(
			fmt.Sprintf("audio extraction timed out after %s", e.timeout),
			result.ExitCode, output, runCtx.Err(),
		)
	case ctx.Err() != nil:
		return domain.NewExternalToolError("audio extraction canceled", result.ExitCode, output, ctx.Err())
	case result.ExitCode > 0:
		return domain.NewExternalToolError("audio extraction failed", result.ExitCode, output, err)
	default:
		return domain.NewExternalToolError(fmt.Sprintf("failed to start %s: %v", e.path, err), result.ExitCode, output, err)
	}
}

// buildExtractArgs is the fixed ffmpeg template: drop video, mono, 16kHz,
// mp3 VBR quality 2, strip metadata.
func buildExtractArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		"-map_metadata", "-1",
		outputPath,
	}
}
