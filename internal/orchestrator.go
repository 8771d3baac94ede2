package internal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// The orchestrator's collaborators, narrowed to what it actually calls so
// tests can substitute fakes per tier.
type captionsSource interface {
	Fetch(ctx context.Context, videoID, language string) ([]Segment, error)
}

type audioSource interface {
	Acquire(ctx context.Context, videoID string) (*NormalizedAudio, error)
}

type chunkSplitter interface {
	Split(ctx context.Context, handle *NormalizedAudio) ([]AudioChunk, error)
}

type chunkRunner interface {
	Run(ctx context.Context, chunks []AudioChunk) map[int]ChunkResult
}

// runState names a position in the acquisition state machine.
type runState int

const (
	stateStart runState = iota
	stateTier1
	stateTier2
	stateSucceeded
	stateFailed
)

func (s runState) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateTier1:
		return "tier1"
	case stateTier2:
		return "tier2"
	case stateSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// Orchestrator sequences the acquisition tiers: captions first, the audio
// pipeline second, first success wins. It performs no retries of its own
// (retry budgets live inside each tier) and it guarantees that any audio
// written to scratch is deleted on every exit path.
type Orchestrator struct {
	captions  captionsSource
	audio     audioSource
	chunker   chunkSplitter
	pool      chunkRunner
	assembler *Reassembler
	ui        UIManager
	// maxAudioDuration is the optional tier-2 guardrail; 0 means uncapped.
	maxAudioDuration time.Duration
}

// NewOrchestrator wires the tiers together.
func NewOrchestrator(captions captionsSource, audio audioSource, chunker chunkSplitter, pool chunkRunner, assembler *Reassembler, ui UIManager, maxAudioDuration time.Duration) *Orchestrator {
	return &Orchestrator{
		captions:         captions,
		audio:            audio,
		chunker:          chunker,
		pool:             pool,
		assembler:        assembler,
		ui:               ui,
		maxAudioDuration: maxAudioDuration,
	}
}

// Acquire runs the state machine for one request and returns the first
// tier's success, or an AcquisitionError aggregating every tier's failure.
func (o *Orchestrator) Acquire(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	state := stateStart
	var tierFailures []TierFailure
	var result *TranscriptResult

	for {
		switch state {
		case stateStart:
			switch req.Method {
			case MethodAIAudio:
				state = stateTier2
			default:
				state = stateTier1
			}

		case stateTier1:
			res, err := o.runTier1(ctx, req)
			if err == nil {
				result = res
				state = stateSucceeded
				break
			}
			tierFailures = append(tierFailures, TierFailure{Tier: string(MethodUnofficial), Err: err})
			if req.Method == MethodUnofficial || ctx.Err() != nil {
				state = stateFailed
				break
			}
			o.ui.Verbose("Captions unavailable (%v), falling back to audio transcription\n", err)
			state = stateTier2

		case stateTier2:
			res, err := o.runTier2(ctx, req)
			if err == nil {
				result = res
				state = stateSucceeded
				break
			}
			tierFailures = append(tierFailures, TierFailure{Tier: string(MethodAIAudio), Err: err})
			state = stateFailed

		case stateSucceeded:
			return result, nil

		case stateFailed:
			return nil, &AcquisitionError{VideoID: req.VideoID, Tiers: tierFailures}
		}
	}
}

// runTier1 fetches existing captions. Any fetch success, even an empty but
// valid caption track, ends the run.
func (o *Orchestrator) runTier1(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	segments, err := o.captions.Fetch(ctx, req.VideoID, req.Language)
	if err != nil {
		return nil, err
	}

	return &TranscriptResult{
		Text:     JoinSegments(segments),
		Segments: segments,
		Method:   MethodUnofficial,
	}, nil
}

// runTier2 runs the audio pipeline: acquire, chunk, transcribe, reassemble.
// The acquisition is single-shot; retry granularity moves to the chunk level
// once audio exists. Scratch artifacts are deleted on every exit path.
func (o *Orchestrator) runTier2(ctx context.Context, req TranscriptRequest) (result *TranscriptResult, err error) {
	handle, err := o.audio.Acquire(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}
	defer cleanupFiles(handle.Path)

	if o.maxAudioDuration > 0 && handle.Duration > o.maxAudioDuration.Seconds() {
		return nil, Resource("audio pipeline", fmt.Errorf("audio is %.0fs, above the configured cap of %s", handle.Duration, o.maxAudioDuration))
	}

	chunks, err := o.chunker.Split(ctx, handle)
	if err != nil {
		// Keep whatever class the splitter assigned; only unclassified
		// failures default to permanent.
		var ce *ClassifiedError
		if !errors.As(err, &ce) {
			err = Permanent("audio pipeline", err)
		}
		return nil, err
	}
	defer func() {
		for _, chunk := range chunks {
			if chunk.Path != handle.Path {
				cleanupFiles(chunk.Path)
			}
		}
	}()

	results := o.pool.Run(ctx, chunks)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return o.assembler.Assemble(chunks, results)
}
