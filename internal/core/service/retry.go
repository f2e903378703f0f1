package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// RetryPolicy bounds how often a contended operation is attempted.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy is used when a service is built with a zero policy.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, Delay: 20 * time.Millisecond}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrLockHeld) || errors.Is(err, domain.ErrVersionConflict)
}

// withRetry runs fn until it succeeds, fails for a non-retryable reason, or
// the policy runs out. Exhaustion surfaces as domain.ErrContention.
func withRetry(ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) error) error {
	p = p.normalize()
	var last error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 && p.Delay > 0 {
			t := time.NewTimer(p.Delay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		last = fn(ctx)
		if last == nil || !retryable(last) {
			return last
		}
	}
	return fmt.Errorf("%s: %w after %d attempts: %v", op, domain.ErrContention, p.Attempts, last)
}
