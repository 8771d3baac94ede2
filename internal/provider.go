package internal

import (
	"context"
	"fmt"
)

// ProviderResult is one provider's answer for one chunk. Confidence and
// SpeechRatio are zero when the backend doesn't report them; the reassembler
// aggregates only over reported values.
type ProviderResult struct {
	Text        string
	Confidence  float64
	SpeechRatio float64
}

// Provider is an external speech-to-text backend. Implementations classify
// their failures (transient vs permanent) and wrap hard rate-limit
// rejections with ErrRateLimited so the router can park them.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audioPath, language string) (ProviderResult, error)
}

// classifyProviderStatus maps a provider HTTP status to a classified error,
// surfacing 429 distinctly so the router can mark the provider ineligible
// until its window resets.
func classifyProviderStatus(name string, status int, detail string) error {
	stage := name + " transcription"
	switch {
	case status == 429:
		return Transient(stage, fmt.Errorf("%w: status 429: %s", ErrRateLimited, detail))
	case status >= 500:
		return Transient(stage, fmt.Errorf("status %d: %s", status, detail))
	default:
		return Permanent(stage, fmt.Errorf("status %d: %s", status, detail))
	}
}
