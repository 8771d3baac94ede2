package internal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overlappingChunks() []AudioChunk {
	// Two 10s chunks sharing a 4s overlap window.
	return []AudioChunk{
		{Index: 0, Start: 0, End: 10, Overlap: 4},
		{Index: 1, Start: 6, End: 16},
	}
}

func TestAssembleTrimsOverlapWithExactAlignment(t *testing.T) {
	chunks := overlappingChunks()
	results := map[int]ChunkResult{
		0: {Index: 0, Text: "the quick brown fox", Status: ChunkSucceeded},
		1: {Index: 1, Text: "brown fox jumps over pond", Status: ChunkSucceeded},
	}

	ra := &Reassembler{}
	result, err := ra.Assemble(chunks, results)
	require.NoError(t, err)

	assert.Equal(t, "the quick brown fox\njumps over pond", result.Text)
	assert.Equal(t, MethodAIAudio, result.Method)
	assert.Equal(t, 2, result.Quality.ChunksTotal)
	assert.Equal(t, 2, result.Quality.ChunksOK)
}

func TestAssembleIsOrderIndependent(t *testing.T) {
	chunks := overlappingChunks()
	results := map[int]ChunkResult{
		0: {Index: 0, Text: "the quick brown fox", Status: ChunkSucceeded},
		1: {Index: 1, Text: "brown fox jumps over pond", Status: ChunkSucceeded},
	}

	ra := &Reassembler{}
	want, err := ra.Assemble(overlappingChunks(), results)
	require.NoError(t, err)

	// Present the chunks in reverse; the output must not change.
	reversed := []AudioChunk{chunks[1], chunks[0]}
	got, err := ra.Assemble(reversed, results)
	require.NoError(t, err)

	assert.Equal(t, want.Text, got.Text)
	assert.Equal(t, want.Segments, got.Segments)
}

func TestAssembleLeavesCallerChunkOrderUntouched(t *testing.T) {
	chunks := overlappingChunks()
	reversed := []AudioChunk{chunks[1], chunks[0]}
	results := map[int]ChunkResult{
		0: {Index: 0, Text: "the quick brown fox", Status: ChunkSucceeded},
		1: {Index: 1, Text: "brown fox jumps over pond", Status: ChunkSucceeded},
	}

	ra := &Reassembler{}
	_, err := ra.Assemble(reversed, results)
	require.NoError(t, err)

	// Assemble sorts internally on a copy; the caller's slice keeps whatever
	// order it arrived in.
	assert.Equal(t, 1, reversed[0].Index)
	assert.Equal(t, 0, reversed[1].Index)
}

func TestAssembleSegmentsAreOrderedWithUniqueStarts(t *testing.T) {
	chunks := []AudioChunk{
		{Index: 0, Start: 0, End: 10, Overlap: 2},
		{Index: 1, Start: 8, End: 18, Overlap: 2},
		{Index: 2, Start: 16, End: 20},
	}
	results := map[int]ChunkResult{
		0: {Index: 0, Text: "alpha beta gamma", Status: ChunkSucceeded},
		1: {Index: 1, Text: "delta epsilon zeta", Status: ChunkSucceeded},
		2: {Index: 2, Text: "eta theta", Status: ChunkSucceeded},
	}

	ra := &Reassembler{}
	result, err := ra.Assemble(chunks, results)
	require.NoError(t, err)
	require.Len(t, result.Segments, 3)

	prevStart := -1.0
	for _, seg := range result.Segments {
		assert.Greater(t, seg.Start, prevStart, "segment starts must be strictly increasing")
		prevStart = seg.Start
	}
	// A later chunk's content starts where the previous one ended.
	assert.Equal(t, 10.0, result.Segments[1].Start)
	assert.Equal(t, 18.0, result.Segments[2].Start)
	assert.Equal(t, 20.0, result.Segments[2].Start+result.Segments[2].Duration)
}

func TestAssembleFailsOnMissingChunkResult(t *testing.T) {
	chunks := overlappingChunks()
	results := map[int]ChunkResult{
		0: {Index: 0, Text: "only one", Status: ChunkSucceeded},
	}

	ra := &Reassembler{}
	_, err := ra.Assemble(chunks, results)
	assert.Error(t, err)
}

func TestAssembleFailurePolicy(t *testing.T) {
	chunks := overlappingChunks()
	results := map[int]ChunkResult{
		0: {Index: 0, Text: "the quick brown fox", Status: ChunkSucceeded},
		1: {Index: 1, Status: ChunkFailed, Err: errors.New("provider gave up")},
	}

	// Default policy: any failed chunk fails the tier, but the partial
	// result still comes back with the failure recorded.
	strict := &Reassembler{}
	result, err := strict.Assemble(chunks, results)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "the quick brown fox", result.Text)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "provider gave up")

	// A tolerant policy accepts the gap.
	tolerant := &Reassembler{MaxFailedFraction: 0.5}
	result, err = tolerant.Assemble(chunks, results)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Quality.ChunksOK)
	assert.Len(t, result.Errors, 1)
}

func TestAssembleSkipsTrimAfterFailedPredecessor(t *testing.T) {
	chunks := []AudioChunk{
		{Index: 0, Start: 0, End: 10, Overlap: 4},
		{Index: 1, Start: 6, End: 16, Overlap: 4},
		{Index: 2, Start: 12, End: 22},
	}
	results := map[int]ChunkResult{
		0: {Index: 0, Text: "first part here", Status: ChunkSucceeded},
		1: {Index: 1, Status: ChunkFailed, Err: errors.New("boom")},
		2: {Index: 2, Text: "third part entirely kept", Status: ChunkSucceeded},
	}

	ra := &Reassembler{MaxFailedFraction: 0.5}
	result, err := ra.Assemble(chunks, results)
	require.NoError(t, err)

	// With chunk 1 missing there is no known duplicate text to trim from
	// chunk 2, so all of it is kept.
	assert.Equal(t, "first part here\nthird part entirely kept", result.Text)
}

func TestAssembleAggregatesQualityOverReportingChunks(t *testing.T) {
	chunks := []AudioChunk{
		{Index: 0, Start: 0, End: 10, Overlap: 2},
		{Index: 1, Start: 8, End: 18},
	}
	results := map[int]ChunkResult{
		// Only the second chunk reports quality data.
		0: {Index: 0, Text: "text only backend", Status: ChunkSucceeded},
		1: {Index: 1, Text: "quality reporting backend", Status: ChunkSucceeded, Confidence: 0.8, SpeechRatio: 0.6},
	}

	ra := &Reassembler{}
	result, err := ra.Assemble(chunks, results)
	require.NoError(t, err)

	assert.Equal(t, 0.8, result.Quality.Confidence)
	assert.Equal(t, 0.6, result.Quality.SpeechRatio)
}

func TestTrimOverlapFallsBackToEstimate(t *testing.T) {
	// Transcription noise: the overlapping words differ, so no exact
	// alignment exists and the estimated count is dropped instead.
	prev := []string{"we", "talked", "about", "sand", "dunes"}
	next := []string{"san", "dunes", "and", "their", "shapes"}

	trimmed := trimOverlap(prev, next, 2)
	assert.Equal(t, []string{"and", "their", "shapes"}, trimmed)
}

func TestTrimOverlapIgnoresCaseAndPunctuation(t *testing.T) {
	prev := []string{"ends", "with", "Brown", "fox."}
	next := []string{"brown", "fox", "runs", "fast"}

	trimmed := trimOverlap(prev, next, 2)
	assert.Equal(t, []string{"runs", "fast"}, trimmed)
}
