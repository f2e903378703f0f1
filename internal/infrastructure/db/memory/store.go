// Package memory is an in-process implementation of the persistence and
// coordination ports. It backs STORAGE=memory and the service test suites.
package memory

import (
	"context"
	"sync"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// Store holds every aggregate behind one mutex. Writes made inside
// WithinTransaction are staged in a journal and become visible together at
// commit, or not at all.
type Store struct {
	mu         sync.RWMutex
	shipments  map[string]*domain.Shipment
	byTracking map[string]string
	invoices   map[string]*domain.Invoice
	returns    map[string]*domain.ReturnBatch
	events     []domain.TrackingEvent
	sequences  map[string]int64
}

func NewStore() *Store {
	return &Store{
		shipments:  make(map[string]*domain.Shipment),
		byTracking: make(map[string]string),
		invoices:   make(map[string]*domain.Invoice),
		returns:    make(map[string]*domain.ReturnBatch),
		sequences:  make(map[string]int64),
	}
}

// op is one staged write. check runs against committed state and must not
// mutate; apply runs only after every check in the journal passed.
type op struct {
	check func(s *Store) error
	apply func(s *Store)
}

type journal struct {
	ops []op
}

type txKey struct{}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(txKey{}).(*journal)
	return j
}

// WithinTransaction implements ports.TxRunner. Nested calls join the outer
// scope.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range j.ops {
		if err := o.check(s); err != nil {
			return err
		}
	}
	for _, o := range j.ops {
		o.apply(s)
	}
	return nil
}

// write stages o when ctx carries a journal and applies it immediately
// otherwise. Staged writes are checked once now, to fail fast, and again at
// commit.
func (s *Store) write(ctx context.Context, o op) error {
	if j := journalFrom(ctx); j != nil {
		s.mu.RLock()
		err := o.check(s)
		s.mu.RUnlock()
		if err != nil {
			return err
		}
		j.ops = append(j.ops, o)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := o.check(s); err != nil {
		return err
	}
	o.apply(s)
	return nil
}

// Events returns a copy of the audit trail.
func (s *Store) Events() []domain.TrackingEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TrackingEvent(nil), s.events...)
}
