package internal

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Reassembler turns per-chunk results back into one ordered transcript. The
// overlap shared by adjacent chunks exists only to protect word boundaries,
// so the duplicated text is trimmed from the later chunk's leading words.
// Trimming always the later chunk keeps the output identical no matter what
// order the chunks finished in.
type Reassembler struct {
	// MaxFailedFraction is the share of failed chunks tolerated before the
	// whole assembly reports failure instead of a silently gappy transcript.
	// 0 means any failed chunk fails the tier.
	MaxFailedFraction float64
}

// Assemble builds the transcript from a complete result set. Every chunk
// index in [0, len(chunks)) must be present. The result is returned even
// when chunks failed (with Errors populated); the error return tells the
// orchestrator whether the failure policy was breached.
func (ra *Reassembler) Assemble(chunks []AudioChunk, results map[int]ChunkResult) (*TranscriptResult, error) {
	ordered := make([]ChunkResult, len(chunks))
	for i := range chunks {
		res, ok := results[i]
		if !ok {
			return nil, fmt.Errorf("missing result for chunk %d of %d", i, len(chunks))
		}
		ordered[i] = res
	}
	// Sort a copy; the caller's slice stays untouched.
	sorted := make([]AudioChunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	chunks = sorted

	result := &TranscriptResult{
		Method:  MethodAIAudio,
		Quality: QualityMetrics{ChunksTotal: len(chunks)},
	}

	var parts []string
	var confidenceSum, speechSum float64
	var confidenceN, speechN int
	prevSucceeded := false
	var prevWords []string

	for i, chunk := range chunks {
		res := ordered[i]
		if res.Status == ChunkFailed {
			err := res.Err
			if err == nil {
				err = fmt.Errorf("chunk %d failed", i)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("chunk %d: %v", i, err))
			prevSucceeded = false
			prevWords = nil
			continue
		}

		words := strings.Fields(res.Text)
		if i > 0 && prevSucceeded && chunks[i-1].Overlap > 0 {
			words = trimOverlap(prevWords, words, overlapWordCount(chunk, chunks[i-1].Overlap, len(words)))
		}

		text := strings.Join(words, " ")
		if text != "" {
			parts = append(parts, text)
			result.Segments = append(result.Segments, Segment{
				Start:    segmentStart(chunks, i),
				Duration: chunk.End - segmentStart(chunks, i),
				Text:     text,
			})
		}

		result.Quality.ChunksOK++
		if res.Confidence > 0 {
			confidenceSum += res.Confidence
			confidenceN++
		}
		if res.SpeechRatio > 0 {
			speechSum += res.SpeechRatio
			speechN++
		}
		prevSucceeded = true
		prevWords = words
	}

	if confidenceN > 0 {
		result.Quality.Confidence = confidenceSum / float64(confidenceN)
	}
	if speechN > 0 {
		result.Quality.SpeechRatio = speechSum / float64(speechN)
	}
	result.Text = strings.Join(parts, "\n")

	failed := len(chunks) - result.Quality.ChunksOK
	if failed > 0 && float64(failed)/float64(len(chunks)) > ra.MaxFailedFraction {
		return result, fmt.Errorf("%d of %d chunks failed, above the tolerated fraction %.2f", failed, len(chunks), ra.MaxFailedFraction)
	}

	return result, nil
}

// segmentStart is where a chunk's non-duplicated content begins: the first
// chunk starts at zero, every later chunk starts where the previous one
// ended (its leading overlap belongs to the previous chunk's text).
func segmentStart(chunks []AudioChunk, i int) float64 {
	if i == 0 {
		return chunks[0].Start
	}
	return chunks[i-1].End
}

// overlapWordCount estimates how many leading words of a chunk fall inside
// the overlap window, using the chunk's own words-per-second rate.
func overlapWordCount(chunk AudioChunk, overlap float64, wordTotal int) int {
	duration := chunk.End - chunk.Start
	if duration <= 0 || wordTotal == 0 {
		return 0
	}
	wps := float64(wordTotal) / duration
	n := int(math.Round(overlap * wps))
	if n > wordTotal {
		n = wordTotal
	}
	return n
}

// trimOverlap removes the duplicated overlap words from the start of the
// later chunk. It prefers an exact alignment: the longest run of words that
// ends the previous chunk and starts this one. Transcription noise can break
// the alignment, in which case the estimated word count is dropped instead.
func trimOverlap(prevWords, words []string, estimate int) []string {
	if estimate <= 0 || len(words) == 0 || len(prevWords) == 0 {
		return words
	}

	maxRun := estimate * 2
	if maxRun > len(prevWords) {
		maxRun = len(prevWords)
	}
	if maxRun > len(words) {
		maxRun = len(words)
	}

	for n := maxRun; n >= 2; n-- {
		if wordsEqual(prevWords[len(prevWords)-n:], words[:n]) {
			return words[n:]
		}
	}

	if estimate > len(words) {
		estimate = len(words)
	}
	return words[estimate:]
}

func wordsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if normalizeWord(a[i]) != normalizeWord(b[i]) {
			return false
		}
	}
	return true
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.Trim(w, ".,!?;:\"'"))
}
