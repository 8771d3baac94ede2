package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaptionsSource struct {
	segments []Segment
	err      error
	calls    int
}

func (f *fakeCaptionsSource) Fetch(ctx context.Context, videoID, language string) ([]Segment, error) {
	f.calls++
	return f.segments, f.err
}

type fakeAudioSource struct {
	t        *testing.T
	dir      string
	duration float64
	err      error
	calls    int
	// path of the handle created by the last Acquire
	created string
}

func (f *fakeAudioSource) Acquire(ctx context.Context, videoID string) (*NormalizedAudio, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(f.dir, videoID+".mp3")
	require.NoError(f.t, os.WriteFile(path, []byte("audio"), 0644))
	f.created = path
	return &NormalizedAudio{Path: path, Duration: f.duration, Size: 5}, nil
}

type fakeChunkSplitter struct {
	t       *testing.T
	dir     string
	n       int
	err     error
	created []string
}

func (f *fakeChunkSplitter) Split(ctx context.Context, handle *NormalizedAudio) ([]AudioChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	per := handle.Duration / float64(f.n)
	chunks := make([]AudioChunk, f.n)
	for i := range chunks {
		path := filepath.Join(f.dir, filepath.Base(handle.Path)+".chunk_"+string(rune('a'+i))+".mp3")
		require.NoError(f.t, os.WriteFile(path, []byte("chunk"), 0644))
		f.created = append(f.created, path)
		chunks[i] = AudioChunk{
			Index: i,
			Start: float64(i) * per,
			End:   float64(i+1) * per,
			Path:  path,
			Size:  5,
		}
	}
	return chunks, nil
}

type fakeChunkRunner struct {
	text  string
	fail  bool
	calls int
}

func (f *fakeChunkRunner) Run(ctx context.Context, chunks []AudioChunk) map[int]ChunkResult {
	f.calls++
	results := make(map[int]ChunkResult, len(chunks))
	for _, chunk := range chunks {
		if f.fail {
			results[chunk.Index] = ChunkResult{Index: chunk.Index, Status: ChunkFailed, Err: errors.New("backend down")}
			continue
		}
		results[chunk.Index] = ChunkResult{Index: chunk.Index, Text: f.text, Status: ChunkSucceeded}
	}
	return results
}

func newTestOrchestrator(t *testing.T, captions *fakeCaptionsSource, audio *fakeAudioSource, splitter *fakeChunkSplitter, runner *fakeChunkRunner, maxAudio time.Duration) *Orchestrator {
	t.Helper()
	return NewOrchestrator(captions, audio, splitter, runner, &Reassembler{}, testUI{}, maxAudio)
}

func TestOrchestratorTier1SuccessSkipsTier2(t *testing.T) {
	captions := &fakeCaptionsSource{segments: []Segment{{Start: 0, Duration: 2, Text: "hello"}}}
	audio := &fakeAudioSource{t: t, dir: t.TempDir(), duration: 100}
	o := newTestOrchestrator(t, captions, audio, nil, nil, 0)

	result, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid"})
	require.NoError(t, err)

	assert.Equal(t, MethodUnofficial, result.Method)
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, 1, captions.calls)
	assert.Zero(t, audio.calls, "tier 2 must not run after a tier 1 success")
}

func TestOrchestratorEmptyCaptionTrackIsSuccess(t *testing.T) {
	captions := &fakeCaptionsSource{segments: nil}
	audio := &fakeAudioSource{t: t, dir: t.TempDir(), duration: 100}
	o := newTestOrchestrator(t, captions, audio, nil, nil, 0)

	result, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid"})
	require.NoError(t, err)

	assert.Equal(t, MethodUnofficial, result.Method)
	assert.Empty(t, result.Text)
	assert.Zero(t, audio.calls)
}

func TestOrchestratorFallsBackToTier2(t *testing.T) {
	dir := t.TempDir()
	captions := &fakeCaptionsSource{err: Permanent("captions", errors.New("no caption track"))}
	audio := &fakeAudioSource{t: t, dir: dir, duration: 100}
	splitter := &fakeChunkSplitter{t: t, dir: dir, n: 2}
	runner := &fakeChunkRunner{text: "transcribed"}
	o := newTestOrchestrator(t, captions, audio, splitter, runner, 0)

	result, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid"})
	require.NoError(t, err)

	assert.Equal(t, MethodAIAudio, result.Method)
	assert.Equal(t, "transcribed\ntranscribed", result.Text)
	assert.Equal(t, 1, captions.calls)
	assert.Equal(t, 1, audio.calls)
	assert.Equal(t, 1, runner.calls)

	// Scratch artifacts are gone after a successful run.
	assert.NoFileExists(t, audio.created)
	for _, path := range splitter.created {
		assert.NoFileExists(t, path)
	}
}

func TestOrchestratorAggregatesBothTierFailures(t *testing.T) {
	dir := t.TempDir()
	captions := &fakeCaptionsSource{err: Transient("captions", errors.New("endpoint flaking"))}
	audio := &fakeAudioSource{t: t, dir: dir, duration: 100}
	splitter := &fakeChunkSplitter{t: t, dir: dir, n: 2}
	runner := &fakeChunkRunner{fail: true}
	o := newTestOrchestrator(t, captions, audio, splitter, runner, 0)

	_, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid"})
	require.Error(t, err)

	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, "vid", acqErr.VideoID)
	require.Len(t, acqErr.Tiers, 2)
	assert.Equal(t, string(MethodUnofficial), acqErr.Tiers[0].Tier)
	assert.Equal(t, string(MethodAIAudio), acqErr.Tiers[1].Tier)

	// Cleanup also runs on the failure path.
	assert.NoFileExists(t, audio.created)
	for _, path := range splitter.created {
		assert.NoFileExists(t, path)
	}
}

func TestOrchestratorKeepsSplitterErrorClass(t *testing.T) {
	tests := []struct {
		name     string
		splitErr error
		want     Class
	}{
		{"transient stays transient", Transient("audio pipeline", errors.New("ffmpeg interrupted")), ClassTransient},
		{"resource stays resource", Resource("audio pipeline", errors.New("scratch disk full")), ClassResource},
		{"unclassified defaults to permanent", errors.New("plain failure"), ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			captions := &fakeCaptionsSource{err: Permanent("captions", errors.New("no caption track"))}
			audio := &fakeAudioSource{t: t, dir: dir, duration: 100}
			splitter := &fakeChunkSplitter{t: t, dir: dir, err: tt.splitErr}
			o := newTestOrchestrator(t, captions, audio, splitter, nil, 0)

			_, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid"})
			require.Error(t, err)

			var acqErr *AcquisitionError
			require.ErrorAs(t, err, &acqErr)
			require.Len(t, acqErr.Tiers, 2)
			assert.Equal(t, tt.want, ClassOf(acqErr.Tiers[1].Err))
		})
	}
}

func TestOrchestratorMethodUnofficialNeverFallsBack(t *testing.T) {
	captions := &fakeCaptionsSource{err: Permanent("captions", errors.New("no caption track"))}
	audio := &fakeAudioSource{t: t, dir: t.TempDir(), duration: 100}
	o := newTestOrchestrator(t, captions, audio, nil, nil, 0)

	_, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid", Method: MethodUnofficial})
	require.Error(t, err)

	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Len(t, acqErr.Tiers, 1)
	assert.Zero(t, audio.calls)
}

func TestOrchestratorMethodAIAudioSkipsTier1(t *testing.T) {
	dir := t.TempDir()
	captions := &fakeCaptionsSource{segments: []Segment{{Text: "would succeed"}}}
	audio := &fakeAudioSource{t: t, dir: dir, duration: 100}
	splitter := &fakeChunkSplitter{t: t, dir: dir, n: 1}
	runner := &fakeChunkRunner{text: "from audio"}
	o := newTestOrchestrator(t, captions, audio, splitter, runner, 0)

	result, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid", Method: MethodAIAudio})
	require.NoError(t, err)

	assert.Equal(t, MethodAIAudio, result.Method)
	assert.Zero(t, captions.calls, "explicit ai_audio must not touch the captions endpoint")
}

func TestOrchestratorDurationGuardrail(t *testing.T) {
	dir := t.TempDir()
	captions := &fakeCaptionsSource{err: Permanent("captions", errors.New("no caption track"))}
	audio := &fakeAudioSource{t: t, dir: dir, duration: 7200}
	o := newTestOrchestrator(t, captions, audio, nil, nil, time.Hour)

	_, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid"})
	require.Error(t, err)

	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	require.Len(t, acqErr.Tiers, 2)
	assert.Equal(t, ClassResource, ClassOf(acqErr.Tiers[1].Err))

	// The downloaded audio is removed even when the guardrail rejects it.
	assert.NoFileExists(t, audio.created)
}

func TestOrchestratorAcquireFailurePropagates(t *testing.T) {
	captions := &fakeCaptionsSource{err: Permanent("captions", errors.New("no caption track"))}
	audio := &fakeAudioSource{t: t, dir: t.TempDir(), err: Permanent("audio download", errors.New("private video"))}
	o := newTestOrchestrator(t, captions, audio, nil, nil, 0)

	_, err := o.Acquire(context.Background(), TranscriptRequest{VideoID: "vid"})
	require.Error(t, err)

	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	require.Len(t, acqErr.Tiers, 2)
	assert.Equal(t, ClassPermanent, ClassOf(acqErr.Tiers[1].Err))
}
