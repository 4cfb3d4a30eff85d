package assemblyai

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// newBackOff returns the bounded exponential policy shared by every call.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMaxBackoff
	b.MaxElapsedTime = 0
	b.Clock = c.clock
	return backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
}

// retry runs op under the client's backoff policy, logging each failed
// attempt. op marks non-retryable errors with backoff.Permanent. Waits
// between attempts run on the client's clock.
func (c *Client) retry(ctx context.Context, name string, op func() error) error {
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Str("call", name).Dur("nextAttemptIn", next).Msg("AssemblyAI call failed, retrying")
	}
	return backoff.RetryNotifyWithTimer(op, c.newBackOff(ctx), notify, &clockTimer{clock: c.clock})
}

// clockTimer adapts Clock to backoff.Timer.
type clockTimer struct {
	clock Clock
	c     <-chan time.Time
}

func (t *clockTimer) Start(d time.Duration) { t.c = t.clock.After(d) }
func (t *clockTimer) Stop()                 {}
func (t *clockTimer) C() <-chan time.Time   { return t.c }

// isTransportFailure reports errors where the request cannot have reached
// the server: DNS resolution or connection establishment failed. Only these
// are safe to retry for the non-idempotent upload and submit POSTs.
func isTransportFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}

// isRetryableRead reports whether a failed status GET may be retried: any
// transport error that is not the caller's own cancellation, or a 5xx/429.
func isRetryableRead(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode >= 500 || respErr.StatusCode == 429
	}
	return false
}
