package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// TranscriptionClient defines the interface for the Whisper API calls we make
type TranscriptionClient interface {
	CreateTranscription(ctx context.Context, file *os.File, language string) (string, error)
}

// OpenAIClient wraps the official OpenAI Go SDK
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: &client}
}

// CreateTranscription implements the transcription method
func (c *OpenAIClient) CreateTranscription(ctx context.Context, file *os.File, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  file,
		Model: openai.AudioModelWhisper1,
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// OpenAIProvider transcribes chunks with the Whisper API. The API returns
// text without quality data, so Confidence and SpeechRatio stay unreported.
type OpenAIProvider struct {
	client TranscriptionClient
}

// NewOpenAIProvider creates the Whisper-backed provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: NewOpenAIClient(apiKey)}
}

// NewOpenAIProviderWithClient injects a custom client (used in tests)
func NewOpenAIProviderWithClient(client TranscriptionClient) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Transcribe sends one chunk file to Whisper.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audioPath, language string) (ProviderResult, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return ProviderResult{}, Permanent("openai transcription", fmt.Errorf("opening chunk: %w", err))
	}
	defer file.Close()

	text, err := p.client.CreateTranscription(ctx, file, language)
	if err != nil {
		return ProviderResult{}, classifyOpenAIError(err)
	}

	return ProviderResult{Text: text}, nil
}

func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return classifyProviderStatus("openai", apierr.StatusCode, apierr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient("openai transcription", err)
	}
	if IsTransient(err) {
		return Transient("openai transcription", err)
	}
	return Permanent("openai transcription", err)
}
