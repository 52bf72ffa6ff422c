// Package retry provides the single retry policy shared by session
// bootstrap and per-item fetches.
package retry

import (
	"context"
	"time"
)

// Policy retries an operation up to MaxAttempts times with a fixed delay
// between attempts. A nil Retryable treats every error as retryable.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// Do runs op until it succeeds, exhausts the attempt budget, or hits a
// non-retryable error. Context cancellation interrupts the inter-attempt
// wait and is returned as-is.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
