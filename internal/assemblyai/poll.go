package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/metrics"
	"github.com/fpang/call-sentiment/internal/sentiment"
)

// PollOptions control the wait for a transcript job.
type PollOptions struct {
	// Interval between status reads. Zero means DefaultPollInterval.
	Interval time.Duration

	// Timeout is the overall deadline. Zero means wait indefinitely
	// (still bounded by the context).
	Timeout time.Duration

	// RequireSentiment rejects a completed payload that has no
	// sentiment_analysis_results field.
	RequireSentiment bool

	// OnStatus is called whenever the remote status changes.
	OnStatus func(Status)
}

// Status reads the current state of a transcript job once. The GET is
// idempotent, so transport errors and 5xx/429 responses are retried.
func (c *Client) Status(ctx context.Context, jobID string) (*Transcript, error) {
	var t *Transcript
	op := func() error {
		got, err := c.fetchStatus(ctx, jobID)
		if err != nil {
			if isRetryableRead(ctx, err) {
				return err
			}
			return backoff.Permanent(err)
		}
		t = got
		return nil
	}
	if err := c.retry(ctx, "status", op); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Client) fetchStatus(ctx context.Context, jobID string) (*Transcript, error) {
	endpoint := "/transcript/" + url.PathEscape(jobID)

	reqCtx, cancel := withRequestTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	code, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(code) {
		return nil, &ResponseError{Endpoint: endpoint, StatusCode: code, Reason: apiMessage(body)}
	}

	var t Transcript
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, &ResponseError{Endpoint: endpoint, StatusCode: code, Reason: "invalid JSON response", Err: err}
	}
	if t.Status == "" {
		return nil, &ResponseError{Endpoint: endpoint, StatusCode: code, Reason: "response missing status"}
	}
	if t.ID == "" {
		t.ID = jobID
	}
	if t.Status == StatusCompleted {
		if err := sentiment.ValidateAll(t.SentimentAnalysisResults); err != nil {
			return nil, &ResponseError{Endpoint: endpoint, StatusCode: code, Reason: "invalid sentiment_analysis_results", Err: err}
		}
	}
	return &t, nil
}

// Poll reads the job status every Interval until it is completed (the
// transcript is returned) or error (a *JobFailedError is returned). The
// remote status is taken as-is; any transition it reports is accepted.
// A passed deadline is a *PollTimeoutError; context cancellation is
// checked on every iteration.
func (c *Client) Poll(ctx context.Context, jobID string, opts PollOptions) (*Transcript, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	start := c.clock.Now()
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = start.Add(opts.Timeout)
	}

	status := StatusSubmitted
	iterations := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("poll transcript %s: %w", jobID, err)
		}
		if !deadline.IsZero() && !c.clock.Now().Before(deadline) {
			return nil, &PollTimeoutError{JobID: jobID, Timeout: opts.Timeout, LastStatus: status}
		}

		iterations++
		t, err := c.statusBefore(ctx, jobID, deadline)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, errDeadline) {
				return nil, &PollTimeoutError{JobID: jobID, Timeout: opts.Timeout, LastStatus: status}
			}
			return nil, fmt.Errorf("poll transcript %s: %w", jobID, err)
		}

		if t.Status != status {
			log.Debug().
				Str("jobId", jobID).
				Str("from", string(status)).
				Str("to", string(t.Status)).
				Msg("Transcript status changed")
			if opts.OnStatus != nil {
				opts.OnStatus(t.Status)
			}
		}
		status = t.Status

		switch status {
		case StatusCompleted:
			if opts.RequireSentiment && t.SentimentAnalysisResults == nil {
				return nil, &ResponseError{
					Endpoint: "/transcript/" + jobID,
					Reason:   "completed transcript has no sentiment_analysis_results",
				}
			}
			elapsed := c.clock.Now().Sub(start)
			log.Info().
				Str("jobId", jobID).
				Int("poll_iterations", iterations).
				Int("sentences", len(t.SentimentAnalysisResults)).
				Dur("total_time", elapsed).
				Msg("Transcript completed")
			metrics.New().
				Dimension("Stage", "poll").
				Duration("PollMs", elapsed).
				Metric("PollIterations", float64(iterations), metrics.UnitCount).
				Flush()
			return t, nil
		case StatusError:
			log.Error().Str("jobId", jobID).Str("error", t.Error).Msg("Transcript job failed")
			return nil, &JobFailedError{JobID: jobID, Message: t.Error}
		case StatusQueued, StatusSubmitted, StatusProcessing:
			log.Debug().Str("jobId", jobID).Str("status", string(status)).Int("poll_iteration", iterations).Msg("Transcript not ready yet")
		default:
			log.Warn().Str("jobId", jobID).Str("status", string(status)).Msg("Unknown transcript status")
		}

		wait := interval
		if !deadline.IsZero() {
			if remaining := deadline.Sub(c.clock.Now()); remaining < wait {
				wait = remaining
			}
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("poll transcript %s: %w", jobID, ctx.Err())
		case <-c.clock.After(wait):
		}
	}
}

// errDeadline marks a status read cut short by the poll deadline.
var errDeadline = errors.New("poll deadline reached")

// statusBefore runs Status with the remaining time before deadline as its
// limit, covering the request and its retry waits. The remaining time is
// measured on the client's clock.
func (c *Client) statusBefore(ctx context.Context, jobID string, deadline time.Time) (*Transcript, error) {
	if deadline.IsZero() {
		return c.Status(ctx, jobID)
	}
	readCtx, cancel := context.WithTimeoutCause(ctx, deadline.Sub(c.clock.Now()), errDeadline)
	defer cancel()

	t, err := c.Status(readCtx, jobID)
	if err != nil && errors.Is(context.Cause(readCtx), errDeadline) {
		return nil, fmt.Errorf("%w: %w", errDeadline, err)
	}
	return t, err
}
