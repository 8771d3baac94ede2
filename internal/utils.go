package internal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ParseArg normalizes a YouTube video URL or bare ID into (url, id).
func ParseArg(arg string) (string, string) {
	if strings.HasPrefix(arg, "https://") {
		videoID, err := getVideoID(arg)
		if err != nil {
			return arg, arg
		}
		return arg, videoID
	}
	return "https://www.youtube.com/watch?v=" + arg, arg
}

// getVideoID extracts the video ID from a YouTube URL.
func getVideoID(youtubeURL string) (string, error) {
	youtubeURL = strings.TrimSpace(youtubeURL)
	u, err := url.Parse(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}

	if u.Host != "www.youtube.com" && u.Host != "youtube.com" && u.Host != "youtu.be" {
		return "", fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}

	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}

	parts := strings.Split(u.Path, "/")
	if len(parts) > 0 && parts[len(parts)-1] != "" {
		return parts[len(parts)-1], nil
	}

	return "", fmt.Errorf("could not extract video ID from URL: %s", youtubeURL)
}

// IsValidYouTubeID checks if a string looks like a valid YouTube video ID
func IsValidYouTubeID(id string) bool {
	// YouTube video IDs are exactly 11 characters long
	if len(id) != 11 {
		return false
	}

	matched, _ := regexp.MatchString(`^[A-Za-z0-9_-]+$`, id)
	return matched
}

// FileExists checks if a file exists
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// EnsureDirs creates directories if needed
func EnsureDirs(dir ...string) error {
	for _, dir := range dir {
		if !FileExists(dir) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}
	return nil
}

// cleanupFiles removes temporary files, warning on failure.
func cleanupFiles(files ...string) {
	for _, file := range files {
		if file == "" || !FileExists(file) {
			continue
		}
		if err := os.Remove(file); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to remove file %s: %v\n", file, err)
		}
	}
}

// CleanupScratchDir purges files from the scratch directory
func CleanupScratchDir(scratchDir string) error {
	if _, err := os.Stat(scratchDir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return fmt.Errorf("reading scratch directory: %w", err)
	}

	for _, entry := range entries {
		filePath := filepath.Join(scratchDir, entry.Name())
		if err := os.Remove(filePath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to remove scratch file %s: %v\n", filePath, err)
		}
	}

	if err := os.Remove(scratchDir); err != nil {
		fmt.Fprintf(os.Stderr, "Note: could not remove scratch directory %s: %v\n", scratchDir, err)
	}

	return nil
}

// SaveTranscript saves transcript text to the transcripts directory.
func SaveTranscript(videoID, transcript, transcriptsDir string) error {
	transcriptPath := filepath.Join(transcriptsDir, videoID+".txt")
	if err := os.WriteFile(transcriptPath, []byte(transcript), 0644); err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	return nil
}

// CachedResult is the sidecar stored next to a cached transcript so a cache
// hit can truthfully report how the text was originally acquired.
type CachedResult struct {
	Method   Method         `json:"method"`
	Segments []Segment      `json:"segments,omitempty"`
	Quality  QualityMetrics `json:"quality"`
	CachedAt time.Time      `json:"cached_at"`
}

// SaveResult caches a transcript result for future runs.
func SaveResult(videoID string, result *TranscriptResult, transcriptsDir string) error {
	if err := SaveTranscript(videoID, result.Text, transcriptsDir); err != nil {
		return err
	}

	cached := CachedResult{
		Method:   result.Method,
		Segments: result.Segments,
		Quality:  result.Quality,
		CachedAt: time.Now(),
	}
	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result metadata: %w", err)
	}

	metaPath := filepath.Join(transcriptsDir, videoID+".meta.json")
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return fmt.Errorf("saving result metadata: %w", err)
	}
	return nil
}

// LoadCachedResult loads a previously acquired transcript, if any.
func LoadCachedResult(videoID, transcriptsDir string) (*TranscriptResult, error) {
	transcriptPath := filepath.Join(transcriptsDir, videoID+".txt")
	if !FileExists(transcriptPath) {
		return nil, fmt.Errorf("transcript cache not found")
	}

	text, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("reading cached transcript: %w", err)
	}

	result := &TranscriptResult{Text: string(text), Method: MethodUnofficial}

	metaPath := filepath.Join(transcriptsDir, videoID+".meta.json")
	if data, err := os.ReadFile(metaPath); err == nil {
		var cached CachedResult
		if err := json.Unmarshal(data, &cached); err == nil {
			result.Method = cached.Method
			result.Segments = cached.Segments
			result.Quality = cached.Quality
		}
	}

	return result, nil
}
