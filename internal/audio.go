package internal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Audio handles audio file operations using FFmpeg
type Audio struct {
	cmdRunner CommandRunner
	verbose   bool
}

// NewAudio creates a new audio processor
func NewAudio(cmdRunner CommandRunner, verbose bool) *Audio {
	return &Audio{
		cmdRunner: cmdRunner,
		verbose:   verbose,
	}
}

// Duration returns the audio file duration in seconds
func (a *Audio) Duration(ctx context.Context, audioFile string) (float64, error) {
	output, err := a.cmdRunner.Run(ctx, "ffprobe",
		"-i", audioFile,
		"-show_entries", "format=duration",
		"-v", "quiet",
		"-of", "csv=p=0")

	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, string(output))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration: %w", err)
	}

	return duration, nil
}

// Normalize converts an audio file to the fixed sample format: mono, 16 kHz,
// constant-bitrate MP3. Every provider receives the same format, and the
// constant bitrate makes byte size a duration proxy for the chunker.
func (a *Audio) Normalize(ctx context.Context, audioFile, output string) error {
	cmdOutput, err := a.cmdRunner.Run(ctx, "ffmpeg",
		"-v", "quiet",
		"-i", audioFile,
		"-ac", "1",
		"-ar", "16000",
		"-b:a", fmt.Sprintf("%dk", NormalizedBitrateKbps),
		"-y", output)

	if err != nil {
		return fmt.Errorf("ffmpeg normalize failed: %w\nOutput: %s", err, string(cmdOutput))
	}
	return nil
}

// Cut extracts a time-delimited segment from a normalized audio file.
func (a *Audio) Cut(ctx context.Context, audioFile string, start, duration float64, output string) error {
	cmdOutput, err := a.cmdRunner.Run(ctx, "ffmpeg",
		"-v", "quiet",
		"-i", audioFile,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-c:a", "copy",
		"-y", output)

	if err != nil {
		return fmt.Errorf("ffmpeg cut failed: %w\nOutput: %s", err, string(cmdOutput))
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
