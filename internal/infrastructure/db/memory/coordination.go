package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

var (
	_ ports.Locker        = (*Locker)(nil)
	_ ports.DedupChecker  = (*Dedup)(nil)
	_ ports.ResourceGuard = (*ResourceGuard)(nil)
)

// Locker is an in-process lock table keyed by aggregate.
type Locker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]string)}
}

func (l *Locker) Acquire(_ context.Context, key string) (ports.Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLockHeld, key)
	}
	token := uuid.NewString()
	l.held[key] = token
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

// Dedup remembers request tokens for ttl.
type Dedup struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock ports.Clock
	seen  map[string]time.Time
}

func NewDedup(ttl time.Duration, clock ports.Clock) *Dedup {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Dedup{ttl: ttl, clock: clock, seen: make(map[string]time.Time)}
}

func (d *Dedup) IsDuplicate(_ context.Context, scope, token string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.seen[scope+"|"+token]
	return ok && d.clock.Now().Before(exp), nil
}

func (d *Dedup) Mark(_ context.Context, scope, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[scope+"|"+token] = d.clock.Now().Add(d.ttl)
	return nil
}

// ResourceGuard tracks claimed run slots until they expire or are released.
type ResourceGuard struct {
	mu     sync.Mutex
	ttl    time.Duration
	clock  ports.Clock
	claims map[string]time.Time
}

func NewResourceGuard(ttl time.Duration, clock ports.Clock) *ResourceGuard {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &ResourceGuard{ttl: ttl, clock: clock, claims: make(map[string]time.Time)}
}

// Claim takes every slot of the assignment or none of them.
func (g *ResourceGuard) Claim(_ context.Context, kind domain.MovementKind, a domain.ResourceAssignment) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	keys := a.ClaimKeys(kind)
	for _, k := range keys {
		if exp, ok := g.claims[k]; ok && now.Before(exp) {
			return fmt.Errorf("%w: %s", domain.ErrResourceExhausted, k)
		}
	}
	for _, k := range keys {
		g.claims[k] = now.Add(g.ttl)
	}
	return nil
}

func (g *ResourceGuard) Release(_ context.Context, kind domain.MovementKind, a domain.ResourceAssignment) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range a.ClaimKeys(kind) {
		delete(g.claims, k)
	}
	return nil
}
