package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// CloudflareProvider transcribes chunks with Workers AI whisper via the REST
// API. The response carries word timings, so SpeechRatio is derived from how
// much of the chunk's timeline actually contains speech.
type CloudflareProvider struct {
	accountID string
	apiToken  string
	model     string
	baseURL   string
	client    *http.Client
}

// NewCloudflareProvider creates the Workers AI backed provider
func NewCloudflareProvider(accountID, apiToken, model string) *CloudflareProvider {
	return &CloudflareProvider{
		accountID: accountID,
		apiToken:  apiToken,
		model:     model,
		baseURL:   "https://api.cloudflare.com/client/v4",
		client:    &http.Client{},
	}
}

// NewCloudflareProviderForTest points the provider at a local test server.
func NewCloudflareProviderForTest(baseURL string, client *http.Client) *CloudflareProvider {
	return &CloudflareProvider{
		accountID: "test-account",
		apiToken:  "test-token",
		model:     "@cf/openai/whisper",
		baseURL:   baseURL,
		client:    client,
	}
}

func (p *CloudflareProvider) Name() string {
	return "cloudflare"
}

type cfEnvelope struct {
	Success bool            `json:"success"`
	Errors  []any           `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type cfWhisperResult struct {
	Text      string   `json:"text"`
	WordCount int      `json:"word_count"`
	Words     []cfWord `json:"words"`
}

type cfWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcribe uploads one chunk as multipart form data.
func (p *CloudflareProvider) Transcribe(ctx context.Context, audioPath, language string) (ProviderResult, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return ProviderResult{}, Permanent("cloudflare transcription", fmt.Errorf("opening chunk: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ProviderResult{}, Permanent("cloudflare transcription", fmt.Errorf("stat chunk: %w", err))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return ProviderResult{}, Permanent("cloudflare transcription", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return ProviderResult{}, Permanent("cloudflare transcription", err)
	}
	if err := mw.Close(); err != nil {
		return ProviderResult{}, Permanent("cloudflare transcription", err)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s", p.baseURL, p.accountID, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return ProviderResult{}, Permanent("cloudflare transcription", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return ProviderResult{}, Transient("cloudflare transcription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ProviderResult{}, classifyProviderStatus("cloudflare", resp.StatusCode, string(detail))
	}

	var envelope cfEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return ProviderResult{}, Transient("cloudflare transcription", fmt.Errorf("decoding response: %w", err))
	}
	if !envelope.Success {
		return ProviderResult{}, Permanent("cloudflare transcription", fmt.Errorf("request rejected: %v", envelope.Errors))
	}

	var result cfWhisperResult
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return ProviderResult{}, Transient("cloudflare transcription", fmt.Errorf("decoding whisper result: %w", err))
	}

	// The normalized format makes byte size a duration proxy, which gives us
	// the chunk length without another ffprobe round trip.
	chunkDuration := float64(info.Size()) / float64(BytesPerSecond)

	return ProviderResult{
		Text:        result.Text,
		SpeechRatio: speechRatio(result.Words, chunkDuration),
	}, nil
}

// speechRatio measures how much of the chunk timeline is covered by words.
func speechRatio(words []cfWord, duration float64) float64 {
	if duration <= 0 || len(words) == 0 {
		return 0
	}
	var spoken float64
	for _, w := range words {
		if w.End > w.Start {
			spoken += w.End - w.Start
		}
	}
	ratio := spoken / duration
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}
