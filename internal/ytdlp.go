package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// VideoMetadata contains YouTube video information
type VideoMetadata struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Channel     string  `json:"channel"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
	HasCaptions bool    `json:"has_captions"`
}

// YouTube downloads audio and metadata via yt-dlp and hands back a single
// normalized working file per acquisition. The caller owns the handle and is
// responsible for cleanup on every exit path.
type YouTube struct {
	audio      *Audio
	scratchDir string
	verbose    bool
}

// NewYouTube creates a new YouTube acquirer
func NewYouTube(audio *Audio, scratchDir string, verbose bool) *YouTube {
	return &YouTube{
		audio:      audio,
		scratchDir: scratchDir,
		verbose:    verbose,
	}
}

// Metadata fetches video details using go-ytdlp
func (yt *YouTube) Metadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	if yt.verbose {
		fmt.Println("Extracting video metadata...")
	}

	youtubeURL, _ := ParseArg(videoID)

	dl := ytdlp.New().
		DumpSingleJSON().
		NoPlaylist().
		SkipDownload()

	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		if yt.verbose && result != nil {
			fmt.Printf("Metadata extraction error: %v\nStderr: %s\n", err, result.Stderr)
		}
		return nil, fmt.Errorf("extracting video metadata: %w", err)
	}

	var rawData map[string]any
	if err := json.Unmarshal([]byte(result.Stdout), &rawData); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}

	var metadata VideoMetadata
	if err := json.Unmarshal([]byte(result.Stdout), &metadata); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}

	metadata.HasCaptions = extractSubtitleInfo(rawData)

	if yt.verbose {
		fmt.Printf("Title: %s\nChannel: %s\nDuration: %.2f seconds\n",
			metadata.Title, metadata.Channel, metadata.Duration)
	}

	return &metadata, nil
}

// Acquire downloads the smallest sufficient audio-only stream and normalizes
// it to the fixed sample format. Failures are classified permanent when the
// video itself is unavailable and transient when the network let us down;
// the audio tier makes a single acquisition attempt either way.
func (yt *YouTube) Acquire(ctx context.Context, videoID string) (*NormalizedAudio, error) {
	if yt.verbose {
		fmt.Println("Downloading audio...")
	}

	if err := EnsureDirs(yt.scratchDir); err != nil {
		return nil, Transient("audio acquire", fmt.Errorf("creating scratch directory: %w", err))
	}

	youtubeURL, id := ParseArg(videoID)
	outputPath := filepath.Join(yt.scratchDir, "%(id)s.raw.%(ext)s")

	dl := ytdlp.New().
		Format("worstaudio/bestaudio"). // smallest sufficient audio-only stream
		ExtractAudio().
		AudioFormat("mp3").
		Output(outputPath)

	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		return nil, classifyDownloadError(err, stderr)
	}

	rawPath := filepath.Join(yt.scratchDir, id+".raw.mp3")
	if !FileExists(rawPath) {
		return nil, Transient("audio acquire", fmt.Errorf("downloaded audio not found at %s", rawPath))
	}
	defer cleanupFiles(rawPath)

	normalizedPath := filepath.Join(yt.scratchDir, id+".mp3")
	if err := yt.audio.Normalize(ctx, rawPath, normalizedPath); err != nil {
		return nil, Permanent("audio normalize", err)
	}

	duration, err := yt.audio.Duration(ctx, normalizedPath)
	if err != nil {
		cleanupFiles(normalizedPath)
		return nil, Permanent("audio normalize", err)
	}

	info, err := os.Stat(normalizedPath)
	if err != nil {
		cleanupFiles(normalizedPath)
		return nil, Permanent("audio normalize", fmt.Errorf("stat normalized audio: %w", err))
	}

	if yt.verbose {
		fmt.Printf("Normalized audio: %.1fs, %d bytes\n", duration, info.Size())
	}

	return &NormalizedAudio{
		Path:     normalizedPath,
		Duration: duration,
		Size:     info.Size(),
	}, nil
}

// classifyDownloadError separates videos that can never be downloaded from
// network trouble that a later attempt might survive.
func classifyDownloadError(err error, stderr string) error {
	msg := strings.ToLower(stderr + " " + err.Error())
	permanentMarkers := []string{
		"private video",
		"video unavailable",
		"this video is not available",
		"age-restricted",
		"account associated",
		"removed by the uploader",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return Permanent("audio download", fmt.Errorf("yt-dlp: %w", err))
		}
	}
	return Transient("audio download", fmt.Errorf("yt-dlp: %w", err))
}

// extractSubtitleInfo extracts subtitle availability from yt-dlp JSON output
func extractSubtitleInfo(rawData map[string]any) bool {
	if subtitles, ok := rawData["subtitles"].(map[string]any); ok && len(subtitles) > 0 {
		return true
	}
	if autoCaptions, ok := rawData["automatic_captions"].(map[string]any); ok && len(autoCaptions) > 0 {
		return true
	}
	return false
}
