package forge

import (
	"context"
	"time"

	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
)

// backoffPolicy controls the retry schedule for rate-limited calls.
type backoffPolicy struct {
	maxAttempts int
	base        time.Duration
	cap         time.Duration
}

var defaultBackoff = backoffPolicy{
	maxAttempts: 4,
	base:        time.Second,
	cap:         30 * time.Second,
}

// call waits for the client-side limiter, runs fn, and normalizes the error.
// Rate-limit responses are retried with exponential backoff up to the policy
// cap; exhaustion surfaces the rate-limit error to the caller, whose unit of
// work fails and is picked up again by reconciliation.
func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	delay := c.backoff.base
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, errors.KindUpstreamUnavailable, "%s: rate limiter", op)
		}

		err := normalizeError(fn(), op)
		if err == nil {
			return nil
		}
		if errors.KindOf(err) != errors.KindRateLimited || attempt >= c.backoff.maxAttempts {
			return err
		}

		c.logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("forge rate limited, backing off")

		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), errors.KindUpstreamUnavailable, "%s: canceled during backoff", op)
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.backoff.cap {
			delay = c.backoff.cap
		}
	}
}

// normalizeError maps go-github errors onto the pipeline taxonomy.
func normalizeError(err error, op string) error {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case *github.RateLimitError:
		return errors.RateLimited(err, op)
	case *github.AbuseRateLimitError:
		return errors.RateLimited(err, op)
	case *github.ErrorResponse:
		if e.Response != nil {
			switch {
			case e.Response.StatusCode == 401 || e.Response.StatusCode == 403:
				return errors.Auth(err, op)
			case e.Response.StatusCode >= 500:
				return errors.Upstream(err, op)
			}
		}
		return errors.Wrap(err, errors.KindInternal, op)
	}

	// Anything else at this layer is transport-level: timeouts, connection
	// resets, canceled contexts. All retryable via reconciliation.
	return errors.Upstream(err, op)
}
