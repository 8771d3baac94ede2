package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// App holds the application state and dependencies
type App struct {
	youtube      *YouTube
	audio        *Audio
	captions     *CaptionsFetcher
	chunker      *Chunker
	pool         *WorkerPool
	assembler    *Reassembler
	orchestrator *Orchestrator
	config       *Config
	ui           UIManager
}

// NewApp initializes the application
func NewApp(config *Config, options ...AppOption) *App {
	cmdRunner := &DefaultCommandRunner{}

	audio := NewAudio(cmdRunner, config.Verbose)
	ui := NewUIManager(config.Verbose, config.Quiet)
	youtube := NewYouTube(audio, config.ScratchDir, config.Verbose)

	tier1Policy := DefaultRetryPolicy
	if config.Tier1Attempts > 0 {
		tier1Policy.MaxAttempts = config.Tier1Attempts
	}
	captions := NewCaptionsFetcher(config.CaptionsBaseURL, config.Tier1Timeout, tier1Policy, config.Verbose)

	specs := providerSpecs(config)
	router := NewRouter(specs, DefaultRouteRules(config.LargeChunkBytes, specs), config.ProviderWaitBudget)

	chunkPolicy := DefaultRetryPolicy
	chunkPolicy.MaxAttempts = config.ChunkRetries + 1 // first attempt plus retries

	pool := NewWorkerPool(router, config.MaxConcurrency, chunkPolicy, config.CallTimeout, config.Language, ui)
	chunker := NewChunker(audio, config.ScratchDir, config.ChunkMaxBytes, config.OverlapSeconds, config.Verbose)
	assembler := &Reassembler{MaxFailedFraction: config.MaxFailedFraction}

	app := &App{
		youtube:   youtube,
		audio:     audio,
		captions:  captions,
		chunker:   chunker,
		pool:      pool,
		assembler: assembler,
		config:    config,
		ui:        ui,
	}
	app.orchestrator = NewOrchestrator(captions, youtube, chunker, pool, assembler, ui, config.Tier2MaxDuration)

	// Apply any custom options
	for _, option := range options {
		option(app)
	}

	return app
}

// providerSpecs builds the provider roster from whatever credentials are
// configured. Window quotas are conservative defaults; the router's safety
// factor keeps routing below them regardless.
func providerSpecs(config *Config) []ProviderSpec {
	var specs []ProviderSpec

	if config.OpenAIAPIKey != "" {
		specs = append(specs, ProviderSpec{
			Provider: NewOpenAIProvider(config.OpenAIAPIKey),
			Limits: ProviderLimits{
				Window:        time.Minute,
				MaxBytes:      256 << 20,
				MaxRequests:   50,
				MaxChunkBytes: OpenAIUploadLimit,
				SafetyFactor:  config.SafetyFactor,
			},
		})
	}

	if config.CloudflareAccountID != "" && config.CloudflareAPIToken != "" {
		specs = append(specs, ProviderSpec{
			Provider: NewCloudflareProvider(config.CloudflareAccountID, config.CloudflareAPIToken, config.CloudflareModel),
			Limits: ProviderLimits{
				Window:        time.Minute,
				MaxBytes:      64 << 20,
				MaxRequests:   30,
				MaxChunkBytes: CloudflareUploadLimit,
				SafetyFactor:  config.SafetyFactor,
			},
		})
	}

	return specs
}

// AppOption customizes App creation
type AppOption func(*App)

// WithYouTube sets a custom audio acquirer
func WithYouTube(youtube *YouTube) AppOption {
	return func(a *App) {
		a.youtube = youtube
	}
}

// WithAudio sets a custom audio processor
func WithAudio(audio *Audio) AppOption {
	return func(a *App) {
		a.audio = audio
	}
}

// WithOrchestrator sets a custom acquisition orchestrator
func WithOrchestrator(o *Orchestrator) AppOption {
	return func(a *App) {
		a.orchestrator = o
	}
}

// AcquireTranscript runs the tiered acquisition for one request, serving from
// the transcript cache when a previous run already acquired the video with a
// compatible method. Fresh results are cached for future runs.
func (app *App) AcquireTranscript(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	if err := EnsureDirs(app.config.TranscriptsDir); err != nil {
		return nil, fmt.Errorf("creating transcripts directory: %w", err)
	}

	if cached, err := LoadCachedResult(req.VideoID, app.config.TranscriptsDir); err == nil {
		if req.Method == MethodAuto || req.Method == cached.Method {
			app.ui.Verbose("Using cached transcript for %s (method=%s)\n", req.VideoID, cached.Method)
			return cached, nil
		}
	}

	result, err := app.orchestrator.Acquire(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := SaveResult(req.VideoID, result, app.config.TranscriptsDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	return result, nil
}

// Captions fetches existing captions only, without the audio fallback.
func (app *App) Captions(ctx context.Context, videoID, language string) ([]Segment, error) {
	return app.captions.Fetch(ctx, videoID, language)
}

// Metadata gets video metadata from YouTube
func (app *App) Metadata(ctx context.Context, arg string) (*VideoMetadata, error) {
	return app.youtube.Metadata(ctx, arg)
}

// TranscribeFile runs a local audio file through the transcription pipeline:
// normalize, chunk, transcribe, reassemble. Scratch artifacts are removed on
// every exit path.
func (app *App) TranscribeFile(ctx context.Context, audioFile string) (*TranscriptResult, error) {
	if !FileExists(audioFile) {
		return nil, fmt.Errorf("audio file not found: %s", audioFile)
	}
	if err := EnsureDirs(app.config.ScratchDir); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	base := filepath.Base(audioFile)
	normalizedPath := filepath.Join(app.config.ScratchDir, base+".normalized.mp3")
	if err := app.audio.Normalize(ctx, audioFile, normalizedPath); err != nil {
		return nil, err
	}
	defer cleanupFiles(normalizedPath)

	duration, err := app.audio.Duration(ctx, normalizedPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(normalizedPath)
	if err != nil {
		return nil, fmt.Errorf("stat normalized audio: %w", err)
	}

	handle := &NormalizedAudio{Path: normalizedPath, Duration: duration, Size: info.Size()}

	chunks, err := app.chunker.Split(ctx, handle)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, chunk := range chunks {
			if chunk.Path != handle.Path {
				cleanupFiles(chunk.Path)
			}
		}
	}()

	results := app.pool.Run(ctx, chunks)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return app.assembler.Assemble(chunks, results)
}
