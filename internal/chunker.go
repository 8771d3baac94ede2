package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Chunker splits normalized audio into bounded segments that overlap by a
// fixed window. The overlap is a word-boundary safety margin only; the
// reassembler discards the duplicated text rather than merging it.
type Chunker struct {
	audio      *Audio
	scratchDir string
	maxBytes   int64
	overlap    float64
	verbose    bool
}

// NewChunker creates a chunker bounded by maxBytes per chunk with
// overlap seconds shared between adjacent chunks.
func NewChunker(audio *Audio, scratchDir string, maxBytes int64, overlap float64, verbose bool) *Chunker {
	return &Chunker{
		audio:      audio,
		scratchDir: scratchDir,
		maxBytes:   maxBytes,
		overlap:    overlap,
		verbose:    verbose,
	}
}

// PlanChunks walks the timeline and computes chunk boundaries without
// touching the audio. For every non-final chunk i:
//
//	chunk[i+1].Start == chunk[i].End - overlap
//
// and the final chunk's End equals duration exactly. The chunk duration is
// derived from the normalized format's bytes-per-second, so maxBytes bounds
// every chunk's payload.
func PlanChunks(duration float64, maxBytes int64, bytesPerSecond int, overlap float64) ([]AudioChunk, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("invalid audio duration %.3f", duration)
	}
	chunkDuration := float64(maxBytes) / float64(bytesPerSecond)
	if chunkDuration <= overlap {
		return nil, fmt.Errorf("chunk duration %.1fs must exceed overlap %.1fs", chunkDuration, overlap)
	}

	var chunks []AudioChunk
	start := 0.0
	for {
		end := start + chunkDuration
		if end >= duration {
			chunks = append(chunks, AudioChunk{
				Index: len(chunks),
				Start: start,
				End:   duration,
			})
			break
		}
		chunks = append(chunks, AudioChunk{
			Index:   len(chunks),
			Start:   start,
			End:     end,
			Overlap: overlap,
		})
		start = end - overlap
	}

	for i := range chunks {
		chunks[i].Size = int64((chunks[i].End - chunks[i].Start) * float64(bytesPerSecond))
	}
	return chunks, nil
}

// Split plans the chunk layout for a normalized audio handle and cuts one
// file per chunk into the scratch directory. On any failure the files cut so
// far are removed.
func (c *Chunker) Split(ctx context.Context, handle *NormalizedAudio) ([]AudioChunk, error) {
	if err := EnsureDirs(c.scratchDir); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	chunks, err := PlanChunks(handle.Duration, c.maxBytes, BytesPerSecond, c.overlap)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 1 {
		// Single chunk: the normalized file already is the payload.
		chunks[0].Path = handle.Path
		chunks[0].Size = handle.Size
		return chunks, nil
	}

	if c.verbose {
		fmt.Printf("Splitting %.1fs of audio into %d chunks\n", handle.Duration, len(chunks))
	}

	base := filepath.Base(handle.Path)
	var created []string
	for i := range chunks {
		output := filepath.Join(c.scratchDir, fmt.Sprintf("%s_chunk_%d.mp3", base, i))
		if err := c.audio.Cut(ctx, handle.Path, chunks[i].Start, chunks[i].End-chunks[i].Start, output); err != nil {
			cleanupFiles(created...)
			return nil, fmt.Errorf("creating chunk %d: %w", i, err)
		}
		created = append(created, output)
		chunks[i].Path = output
		if info, err := os.Stat(output); err == nil {
			chunks[i].Size = info.Size()
		}
	}

	return chunks, nil
}
