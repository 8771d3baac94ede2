package internal

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CaptionsFetcher pulls existing captions from the unofficial timedtext
// endpoint. The endpoint fails intermittently with truncated or malformed
// XML, so every call runs under an injected retry policy; failures that a
// retry cannot fix (captions disabled, video gone) short-circuit immediately.
type CaptionsFetcher struct {
	client  *http.Client
	baseURL string
	policy  RetryPolicy
	verbose bool
}

// NewCaptionsFetcher creates a Tier 1 fetcher against baseURL (the production
// endpoint unless a test substitutes its own server).
func NewCaptionsFetcher(baseURL string, timeout time.Duration, policy RetryPolicy, verbose bool) *CaptionsFetcher {
	return &CaptionsFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		policy:  policy,
		verbose: verbose,
	}
}

// timedtextDoc mirrors the endpoint's XML payload.
type timedtextDoc struct {
	XMLName xml.Name       `xml:"transcript"`
	Texts   []timedtextSeg `xml:"text"`
}

type timedtextSeg struct {
	Start float64 `xml:"start,attr"`
	Dur   float64 `xml:"dur,attr"`
	Body  string  `xml:",chardata"`
}

// Fetch returns the caption segments for a video, or a classified failure.
// An empty-but-valid caption track is a success with zero segments.
func (cf *CaptionsFetcher) Fetch(ctx context.Context, videoID, language string) ([]Segment, error) {
	if cf.verbose {
		fmt.Printf("Fetching captions for %s (lang=%s)\n", videoID, language)
	}

	return Retry(ctx, cf.policy, func() ([]Segment, error) {
		return cf.fetchOnce(ctx, videoID, language)
	})
}

func (cf *CaptionsFetcher) fetchOnce(ctx context.Context, videoID, language string) ([]Segment, error) {
	endpoint := fmt.Sprintf("%s/timedtext?lang=%s&v=%s",
		cf.baseURL, url.QueryEscape(language), url.QueryEscape(videoID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, Permanent("captions", err)
	}

	resp, err := cf.client.Do(req)
	if err != nil {
		return nil, Transient("captions", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to the body
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return nil, Permanent("captions", fmt.Errorf("captions unavailable for %s (status %d)", videoID, resp.StatusCode))
	case classifyStatus(resp.StatusCode) == ClassTransient:
		return nil, Transient("captions", fmt.Errorf("captions endpoint returned %d", resp.StatusCode))
	default:
		return nil, Permanent("captions", fmt.Errorf("captions endpoint returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient("captions", fmt.Errorf("reading captions body: %w", err))
	}

	// The endpoint answers 200 with an empty body when the video has no
	// caption track at all; no amount of retrying changes that.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, Permanent("captions", fmt.Errorf("no caption track for %s", videoID))
	}

	var doc timedtextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		// Malformed payloads show up intermittently and usually parse fine
		// on the next attempt.
		return nil, Transient("captions", fmt.Errorf("parsing captions XML: %w", err))
	}

	segments := make([]Segment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start:    t.Start,
			Duration: t.Dur,
			Text:     text,
		})
	}

	return segments, nil
}

// JoinSegments flattens caption segments into plain transcript text.
func JoinSegments(segments []Segment) string {
	var sb strings.Builder
	for i, seg := range segments {
		sb.WriteString(seg.Text)
		if i < len(segments)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
