package internal

import (
	"fmt"
	"strings"
)

// Method labels which acquisition tier produced a transcript. The set is
// closed; a TranscriptResult must carry the method that actually ran.
type Method string

const (
	// MethodUnofficial is Tier 1: the unofficial captions endpoint.
	MethodUnofficial Method = "unofficial"
	// MethodAIAudio is Tier 2: download, chunk and transcribe the audio.
	MethodAIAudio Method = "ai_audio"
	// MethodAuto lets the orchestrator cascade through tiers.
	MethodAuto Method = ""
)

// ParseMethod validates an explicit-method override from the caller.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(s)) {
	case MethodAuto:
		return MethodAuto, nil
	case MethodUnofficial:
		return MethodUnofficial, nil
	case MethodAIAudio:
		return MethodAIAudio, nil
	}
	return MethodAuto, fmt.Errorf("unknown method %q (want %q or %q)", s, MethodUnofficial, MethodAIAudio)
}

// OutputFormat selects how a transcript is rendered for the caller.
type OutputFormat string

const (
	FormatText       OutputFormat = "text"
	FormatSubtitle   OutputFormat = "subtitle"
	FormatStructured OutputFormat = "structured"
)

// ParseOutputFormat validates a format name from flags or config.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatSubtitle:
		return FormatSubtitle, nil
	case FormatStructured:
		return FormatStructured, nil
	}
	return FormatText, fmt.Errorf("unknown output format %q (want text, subtitle or structured)", s)
}

// TranscriptRequest is the immutable input contract for one acquisition run.
type TranscriptRequest struct {
	VideoID  string
	Language string
	Format   OutputFormat
	// Method, when set, pins the run to a single tier instead of cascading.
	Method Method
}

// Segment is one timed span of transcript text. Segments are ordered and
// start offsets are unique after reassembly.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// NormalizedAudio is the handle returned by the acquirer: a single working
// file in the fixed sample format, owned exclusively by the caller.
type NormalizedAudio struct {
	Path     string
	Duration float64
	Size     int64
}

// AudioChunk is a bounded, time-delimited slice of normalized audio.
// Adjacent chunks share Overlap seconds: chunk[i] ends Overlap seconds after
// chunk[i+1] starts, except the last chunk, whose End is the total duration.
type AudioChunk struct {
	Index int
	Start float64
	End   float64
	// Overlap is the window shared with the next chunk; 0 on the last chunk.
	Overlap float64
	Path    string
	Size    int64
}

// ChunkStatus is the terminal state of one chunk's transcription.
type ChunkStatus int

const (
	ChunkSucceeded ChunkStatus = iota
	ChunkFailed
)

func (s ChunkStatus) String() string {
	if s == ChunkSucceeded {
		return "succeeded"
	}
	return "failed"
}

// ChunkResult is the terminal outcome of transcribing one chunk. A job is
// reassembly-ready only when every index in [0, N) has exactly one result.
type ChunkResult struct {
	Index       int
	Text        string
	Confidence  float64
	SpeechRatio float64
	Provider    string
	Retries     int
	Status      ChunkStatus
	Err         error
}

// QualityMetrics aggregates per-chunk quality over the succeeded chunks that
// reported it (providers that return text only report zero values).
type QualityMetrics struct {
	Confidence  float64 `json:"confidence"`
	SpeechRatio float64 `json:"speech_ratio"`
	ChunksTotal int     `json:"chunks_total"`
	ChunksOK    int     `json:"chunks_ok"`
}

// TranscriptResult is the pipeline's terminal output.
type TranscriptResult struct {
	Text     string         `json:"text"`
	Segments []Segment      `json:"segments"`
	Method   Method         `json:"method"`
	Quality  QualityMetrics `json:"quality"`
	// Errors lists per-chunk failures when a partial result is returned.
	Errors []string `json:"errors,omitempty"`
}
