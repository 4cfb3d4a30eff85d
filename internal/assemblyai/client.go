// Package assemblyai is a client for the AssemblyAI v2 transcription API,
// limited to what sentiment analysis of a recorded call needs:
//
//  1. Upload: stream a local audio file to /upload in fixed-size chunks
//  2. Submit: create a transcript job for the uploaded audio (/transcript)
//  3. Poll: read /transcript/{id} at a fixed interval until it completes or fails
//
// Every response is validated before use; failures surface as the typed
// errors in errors.go so callers can tell a bad file from a rejected job
// from a timeout.
package assemblyai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/sentiment"
)

const (
	// DefaultBaseURL is the AssemblyAI v2 API base URL.
	DefaultBaseURL = "https://api.assemblyai.com/v2"

	// DefaultChunkSize is the upload chunk size (5 MiB).
	DefaultChunkSize = 5 << 20

	// DefaultPollInterval is the fixed delay between status reads.
	DefaultPollInterval = time.Second

	// requestTimeout bounds the small JSON calls (submit, status). Uploads
	// are bounded only by the caller's context since audio can be large.
	requestTimeout = 30 * time.Second

	defaultMaxRetries      = 3
	defaultRetryInitial    = 500 * time.Millisecond
	defaultRetryMaxBackoff = 5 * time.Second

	// maxResponseBytes caps how much of a response body is read. Completed
	// transcripts of long calls run to a few MB.
	maxResponseBytes = 64 << 20
)

// Status is the remote job state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions will happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// RemoteReference is the opaque upload_url returned by the upload endpoint.
type RemoteReference string

// Transcript is the job status payload. SentimentAnalysisResults is nil
// when the field was absent or null, and non-nil (possibly empty) otherwise.
type Transcript struct {
	ID                       string             `json:"id"`
	Status                   Status             `json:"status"`
	Text                     string             `json:"text"`
	Error                    string             `json:"error,omitempty"`
	AudioDuration            float64            `json:"audio_duration,omitempty"`
	SentimentAnalysisResults []sentiment.Record `json:"sentiment_analysis_results"`
}

// Clock abstracts time for the poll loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Client talks to the AssemblyAI API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	chunkSize  int
	clock      Clock

	maxRetries      uint64
	retryInitial    time.Duration
	retryMaxBackoff time.Duration

	// onChunk, if set, is called once per upload chunk read from disk.
	onChunk func(index, size int)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithChunkSize overrides the upload chunk size. Values <= 0 are ignored.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithClock injects the clock used by Poll.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithMaxRetries sets how many times a failed network call is retried.
// Zero disables retries.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryBackoff sets the initial and maximum retry delay.
func WithRetryBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		c.retryInitial = initial
		c.retryMaxBackoff = max
	}
}

// WithChunkObserver registers a callback invoked for every upload chunk.
func WithChunkObserver(fn func(index, size int)) Option {
	return func(c *Client) { c.onChunk = fn }
}

// NewClient creates a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{},
		apiKey:          apiKey,
		baseURL:         DefaultBaseURL,
		chunkSize:       DefaultChunkSize,
		clock:           realClock{},
		maxRetries:      defaultMaxRetries,
		retryInitial:    defaultRetryInitial,
		retryMaxBackoff: defaultRetryMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends req and returns the status code and (size-capped) body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("authorization", c.apiKey)

	start := time.Now()
	log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("AssemblyAI API request")

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("AssemblyAI API response")
		return 0, nil, err
	}
	defer resp.Body.Close()

	log.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).Msg("AssemblyAI API response")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// apiMessage extracts {"error": "..."} from an error body, falling back to
// a truncated copy of the raw body.
func apiMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return truncate(string(body), 200)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func withRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, requestTimeout)
}

// CheckAuth makes the cheapest authenticated read the API offers (list one
// transcript) so a bad key fails before any audio is uploaded. A rejected
// key surfaces as a *ResponseError with status 401.
func (c *Client) CheckAuth(ctx context.Context) error {
	const endpoint = "/transcript?limit=1"

	reqCtx, cancel := withRequestTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	code, body, err := c.do(req)
	if err != nil {
		return err
	}
	if !isSuccess(code) {
		return &ResponseError{Endpoint: "/transcript", StatusCode: code, Reason: apiMessage(body)}
	}
	return nil
}
