package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
)

// RetryExecutor runs an operation with bounded exponential backoff. Each
// delay doubles from BaseDelay up to MaxDelay and is jittered to half-full
// range so colliding replicas spread out.
type RetryExecutor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func NewRetryExecutor() *RetryExecutor {
	return &RetryExecutor{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

// Do runs op until it succeeds, a non-retryable error fires, ctx is done, or
// attempts are exhausted. Session expiry aborts immediately: waiting longer
// cannot resurrect an expired session.
func (r *RetryExecutor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff(attempt)):
			}
		}

		if err = op(ctx); err == nil {
			return nil
		}
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
}

// backoff computes the jittered delay before the given attempt (1-based).
func (r *RetryExecutor) backoff(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := r.MaxDelay
	if max <= 0 {
		max = defaultMaxDelay
	}

	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		delay = max
	}

	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
