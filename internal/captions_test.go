package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const captionsXML = `<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.0" dur="2.5">Hello &amp; welcome</text>
  <text start="2.5" dur="3.0">to the show</text>
  <text start="5.5" dur="1.0">   </text>
</transcript>`

func newTestFetcher(baseURL string, attempts int) *CaptionsFetcher {
	policy := fastPolicy
	policy.MaxAttempts = attempts
	return NewCaptionsFetcher(baseURL, 5*time.Second, policy, false)
}

func TestCaptionsFetchParsesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/timedtext", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		assert.Equal(t, "abc123def45", r.URL.Query().Get("v"))
		fmt.Fprint(w, captionsXML)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, 3)
	segments, err := fetcher.Fetch(context.Background(), "abc123def45", "en")
	require.NoError(t, err)

	// Whitespace-only segments are dropped, entities are unescaped.
	require.Len(t, segments, 2)
	assert.Equal(t, Segment{Start: 0, Duration: 2.5, Text: "Hello & welcome"}, segments[0])
	assert.Equal(t, Segment{Start: 2.5, Duration: 3.0, Text: "to the show"}, segments[1])
}

func TestCaptionsFetchRetriesMalformedXML(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			fmt.Fprint(w, "<transcript><text start=\"0\"") // truncated payload
			return
		}
		fmt.Fprint(w, captionsXML)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, 5)
	segments, err := fetcher.Fetch(context.Background(), "abc123def45", "en")
	require.NoError(t, err)
	assert.Len(t, segments, 2)
	assert.Equal(t, int32(3), calls.Load(), "two malformed responses then success")
}

func TestCaptionsFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, captionsXML)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, 3)
	_, err := fetcher.Fetch(context.Background(), "abc123def45", "en")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCaptionsFetchDoesNotRetryMissingCaptions(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, 5)
	_, err := fetcher.Fetch(context.Background(), "abc123def45", "en")
	require.Error(t, err)
	assert.Equal(t, ClassPermanent, ClassOf(err))
	assert.Equal(t, int32(1), calls.Load(), "permanent failures must not burn retry budget")
}

func TestCaptionsFetchEmptyBodyIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// 200 with an empty body means the video has no caption track.
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, 5)
	_, err := fetcher.Fetch(context.Background(), "abc123def45", "en")
	require.Error(t, err)
	assert.Equal(t, ClassPermanent, ClassOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCaptionsFetchExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, 4)
	_, err := fetcher.Fetch(context.Background(), "abc123def45", "en")
	require.Error(t, err)
	assert.Equal(t, ClassTransient, ClassOf(err), "the last transient error surfaces after exhaustion")
	assert.Equal(t, int32(4), calls.Load())
}

func TestCaptionsFetchEmptyTranscriptIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?><transcript></transcript>`)
	}))
	defer srv.Close()

	fetcher := newTestFetcher(srv.URL, 3)
	segments, err := fetcher.Fetch(context.Background(), "abc123def45", "en")
	require.NoError(t, err)
	assert.Empty(t, segments, "a valid but empty caption track is a success")
}

func TestJoinSegments(t *testing.T) {
	segments := []Segment{
		{Text: "first"},
		{Text: "second"},
		{Text: "third"},
	}
	assert.Equal(t, "first\nsecond\nthird", JoinSegments(segments))
	assert.Equal(t, "", JoinSegments(nil))
}
