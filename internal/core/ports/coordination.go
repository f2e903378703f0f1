package ports

import (
	"context"
	"time"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// TxRunner runs fn inside a write scope that commits all or nothing. Writes
// made through repositories with the ctx handed to fn belong to the scope.
type TxRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Unlock releases a lock obtained from Locker.
type Unlock func(ctx context.Context) error

// Locker provides per-aggregate mutual exclusion. Acquire does not wait: a
// held key yields domain.ErrLockHeld and the caller decides whether to retry.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// DedupChecker remembers request tokens that were already honoured.
type DedupChecker interface {
	IsDuplicate(ctx context.Context, scope, token string) (bool, error)
	Mark(ctx context.Context, scope, token string) error
}

// ResourceGuard validates that a run's vehicle or queue slot is still free and
// consumes it. Rejection yields domain.ErrResourceExhausted.
type ResourceGuard interface {
	Claim(ctx context.Context, kind domain.MovementKind, a domain.ResourceAssignment) error
	Release(ctx context.Context, kind domain.MovementKind, a domain.ResourceAssignment) error
}

// Clock abstracts wall time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real UTC clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
