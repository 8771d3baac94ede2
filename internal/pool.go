package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WorkerPool transcribes chunks concurrently with a bounded number of
// workers. Each chunk gets its own retry budget; a provider is reselected on
// every attempt so a struggling backend doesn't pin a chunk down. The pool
// always terminates: every chunk ends SUCCEEDED or FAILED within its budget.
type WorkerPool struct {
	router      *Router
	concurrency int
	retry       RetryPolicy
	callTimeout time.Duration
	language    string
	ui          UIManager
}

// NewWorkerPool creates a pool of at most concurrency simultaneous calls.
func NewWorkerPool(router *Router, concurrency int, retry RetryPolicy, callTimeout time.Duration, language string, ui UIManager) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &WorkerPool{
		router:      router,
		concurrency: concurrency,
		retry:       retry,
		callTimeout: callTimeout,
		language:    language,
		ui:          ui,
	}
}

// Run transcribes every chunk and returns one terminal ChunkResult per
// index. Completion order is unconstrained; the reassembler restores index
// order. Cancellation stops new work immediately and marks undone chunks
// FAILED instead of blocking.
func (p *WorkerPool) Run(ctx context.Context, chunks []AudioChunk) map[int]ChunkResult {
	jobs := make(chan AudioChunk)
	results := make(map[int]ChunkResult, len(chunks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	bar := p.ui.NewProgressBar(len(chunks), "Transcribing chunks")
	defer bar.Finish()

	for range p.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				result := p.transcribeChunk(ctx, chunk)
				mu.Lock()
				results[chunk.Index] = result
				mu.Unlock()
				bar.Add(1)
			}
		}()
	}

	for _, chunk := range chunks {
		select {
		case jobs <- chunk:
		case <-ctx.Done():
			mu.Lock()
			results[chunk.Index] = ChunkResult{
				Index:  chunk.Index,
				Status: ChunkFailed,
				Err:    ctx.Err(),
			}
			mu.Unlock()
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// transcribeChunk drives one chunk to a terminal state. made counts provider
// calls actually issued, so terminal results never overstate the retries of a
// chunk that was cut short before its budget ran out.
func (p *WorkerPool) transcribeChunk(ctx context.Context, chunk AudioChunk) ChunkResult {
	var lastErr error
	var lastProvider string
	made := 0

	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		provider, err := p.router.Select(ctx, chunk.Size)
		if err != nil {
			// Capacity exhaustion and cancellation are terminal for the
			// chunk; there is nothing a retry would change.
			return ChunkResult{
				Index:   chunk.Index,
				Retries: made,
				Status:  ChunkFailed,
				Err:     err,
			}
		}
		lastProvider = provider.Name()
		made++

		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		res, err := provider.Transcribe(callCtx, chunk.Path, p.language)
		cancel()

		p.router.RecordUsage(provider.Name(), chunk.Size, err == nil)

		if err == nil {
			return ChunkResult{
				Index:       chunk.Index,
				Text:        res.Text,
				Confidence:  res.Confidence,
				SpeechRatio: res.SpeechRatio,
				Provider:    provider.Name(),
				Retries:     made - 1,
				Status:      ChunkSucceeded,
			}
		}
		lastErr = err

		if errors.Is(err, ErrRateLimited) {
			p.router.MarkRateLimited(provider.Name())
		}

		if !IsTransient(err) {
			return ChunkResult{
				Index:    chunk.Index,
				Provider: provider.Name(),
				Retries:  made - 1,
				Status:   ChunkFailed,
				Err:      err,
			}
		}

		if attempt < p.retry.MaxAttempts {
			wait := p.retry.Wait(attempt)
			slog.Debug("retrying chunk",
				slog.Int("chunk", chunk.Index),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("chunk %d exhausted its retry budget", chunk.Index)
	}
	retries := 0
	if made > 0 {
		retries = made - 1
	}
	return ChunkResult{
		Index:    chunk.Index,
		Provider: lastProvider,
		Retries:  retries,
		Status:   ChunkFailed,
		Err:      lastErr,
	}
}
