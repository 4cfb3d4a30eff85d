package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/metrics"
)

// Options are the transcript job settings. Extra holds any further fields
// the API recognizes (speaker_labels, language_code, ...); they are sent
// as given but cannot override audio_url or sentiment_analysis.
type Options struct {
	SentimentAnalysis bool
	Extra             map[string]any
}

// requestBody builds the job-creation payload. sentiment_analysis is sent
// as the string "True"/"False".
func (o Options) requestBody(ref RemoteReference) map[string]any {
	body := make(map[string]any, len(o.Extra)+2)
	for k, v := range o.Extra {
		body[k] = v
	}
	body["audio_url"] = string(ref)
	body["sentiment_analysis"] = "False"
	if o.SentimentAnalysis {
		body["sentiment_analysis"] = "True"
	}
	return body
}

type submitResponse struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Submit creates a transcript job for ref and returns its ID. A non-2xx
// response or a response without id is a *SubmissionError. Only dial/DNS
// failures are retried.
func (c *Client) Submit(ctx context.Context, ref RemoteReference, opts Options) (string, error) {
	if ref == "" {
		return "", &SubmissionError{Message: "empty audio reference"}
	}

	payload, err := json.Marshal(opts.requestBody(ref))
	if err != nil {
		return "", &SubmissionError{Message: "encode request", Err: err}
	}

	start := time.Now()
	var jobID string

	op := func() error {
		reqCtx, cancel := withRequestTimeout(ctx)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(&SubmissionError{Err: fmt.Errorf("build request: %w", err)})
		}
		req.Header.Set("content-type", "application/json")

		code, body, err := c.do(req)
		if err != nil {
			if isTransportFailure(err) {
				return err
			}
			return backoff.Permanent(&SubmissionError{StatusCode: code, Err: err})
		}
		if !isSuccess(code) {
			return backoff.Permanent(&SubmissionError{StatusCode: code, Message: apiMessage(body)})
		}

		var resp submitResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return backoff.Permanent(&SubmissionError{StatusCode: code, Message: "invalid JSON response", Err: err})
		}
		if resp.ID == "" {
			return backoff.Permanent(&SubmissionError{StatusCode: code, Message: "response missing id (body: " + truncate(string(body), 200) + ")"})
		}
		jobID = resp.ID
		return nil
	}

	if err := c.retry(ctx, "submit", op); err != nil {
		var subErr *SubmissionError
		if errors.As(err, &subErr) {
			return "", err
		}
		return "", &SubmissionError{Err: err}
	}

	log.Info().
		Str("jobId", jobID).
		Bool("sentiment_analysis", opts.SentimentAnalysis).
		Int("extra_options", len(opts.Extra)).
		Msg("Transcript job submitted")

	metrics.New().
		Dimension("Stage", "submit").
		Duration("SubmitMs", time.Since(start)).
		Property("jobId", jobID).
		Flush()

	return jobID, nil
}
