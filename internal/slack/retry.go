package slack

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy retries rate-limited Slack calls with exponential backoff.
// Non-rate-limit failures propagate immediately: waiting does not fix a
// missing channel or a bad token.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

func NewRetryPolicy(logger *slog.Logger) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Second,
		MaxDelay:    60 * time.Second,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Do runs fn until it succeeds, fails with a non-recoverable error, or
// exhausts MaxAttempts. First successes are silent; every failure and every
// backoff is logged with the operation name.
func (p *RetryPolicy) Do(ctx context.Context, operation string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var apiErr *APIError
		rateLimited := errors.As(err, &apiErr) && apiErr.RateLimited()

		p.logger.Warn("slack call failed",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"rate_limited", rateLimited,
			"error", err,
		)

		if !rateLimited || attempt >= p.MaxAttempts {
			return err
		}

		wait := p.waitFor(attempt, apiErr.RetryAfter)
		p.logger.Warn("rate limited, backing off",
			"operation", operation,
			"attempt", attempt,
			"wait", wait,
		)
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// waitFor computes the backoff before the next attempt: the larger of the
// server's Retry-After hint and BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (p *RetryPolicy) waitFor(attempt int, hint time.Duration) time.Duration {
	wait := p.BaseDelay << (attempt - 1)
	if hint > wait {
		wait = hint
	}
	if wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
