package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RateLimitError marks a provider response carrying rate-limit semantics
// (HTTP 429). It selects the exponential branch of the retry policy.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Message)
}

// RetryPolicy drives retries for network calls to a flaky provider.
// Rate-limit signals and timeouts back off exponentially (BaseDelay doubling
// each attempt, no jitter); other transient failures wait a fixed RetryDelay.
// The attempt ceiling applies to both branches.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	RetryDelay  time.Duration
}

// Do runs fn until it succeeds or MaxAttempts calls have failed, returning
// the last error. Context cancellation stops waiting immediately.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, fn func(context.Context) error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.BaseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	expo.Reset()

	constant := backoff.NewConstantBackOff(p.RetryDelay)

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		var delay time.Duration
		if isRateLimited(err) {
			delay = expo.NextBackOff()
		} else {
			delay = constant.NextBackOff()
		}
		logger.Warn("provider call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// isRateLimited reports whether the error should take the exponential
// branch. Timeouts are treated identically to an explicit rate-limit signal.
func isRateLimited(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
