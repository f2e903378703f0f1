package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

var (
	_ ports.ShipmentRepository = (*ShipmentRepository)(nil)
	_ ports.InvoiceRepository  = (*InvoiceRepository)(nil)
	_ ports.ReturnRepository   = (*ReturnRepository)(nil)
	_ ports.EventRepository    = (*EventRepository)(nil)
	_ ports.SequenceRepository = (*SequenceRepository)(nil)
	_ ports.TxRunner           = (*Store)(nil)
)

type ShipmentRepository struct{ store *Store }

func NewShipmentRepository(store *Store) *ShipmentRepository {
	return &ShipmentRepository{store: store}
}

func (r *ShipmentRepository) Create(ctx context.Context, sh *domain.Shipment) error {
	c := sh.Clone()
	return r.store.write(ctx, op{
		check: func(s *Store) error {
			if _, ok := s.shipments[c.ID]; ok {
				return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidShipment, c.ID)
			}
			if _, ok := s.byTracking[c.TrackingNumber]; ok {
				return fmt.Errorf("%w: duplicate tracking number %s", domain.ErrInvalidShipment, c.TrackingNumber)
			}
			return nil
		},
		apply: func(s *Store) {
			s.shipments[c.ID] = c
			s.byTracking[c.TrackingNumber] = c.ID
		},
	})
}

func (r *ShipmentRepository) FindByID(_ context.Context, id string) (*domain.Shipment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	sh, ok := r.store.shipments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, id)
	}
	return sh.Clone(), nil
}

func (r *ShipmentRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error) {
	r.store.mu.RLock()
	id, ok := r.store.byTracking[trackingNumber]
	r.store.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, trackingNumber)
	}
	return r.FindByID(ctx, id)
}

func (r *ShipmentRepository) Update(ctx context.Context, sh *domain.Shipment) error {
	c := sh.Clone()
	c.Version = sh.Version + 1
	err := r.store.write(ctx, op{
		check: func(s *Store) error {
			cur, ok := s.shipments[c.ID]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, c.ID)
			}
			if cur.Version != sh.Version {
				return fmt.Errorf("%w: shipment %s", domain.ErrVersionConflict, c.ID)
			}
			return nil
		},
		apply: func(s *Store) { s.shipments[c.ID] = c },
	})
	if err != nil {
		return err
	}
	sh.Version = c.Version
	return nil
}

func (r *ShipmentRepository) DeletePending(ctx context.Context, id string) error {
	return r.store.write(ctx, op{
		check: func(s *Store) error {
			cur, ok := s.shipments[id]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, id)
			}
			if cur.Status != domain.StatusPending {
				return fmt.Errorf("%w: %s", domain.ErrNotPending, cur.TrackingNumber)
			}
			return nil
		},
		apply: func(s *Store) {
			delete(s.byTracking, s.shipments[id].TrackingNumber)
			delete(s.shipments, id)
		},
	})
}

type InvoiceRepository struct{ store *Store }

func NewInvoiceRepository(store *Store) *InvoiceRepository {
	return &InvoiceRepository{store: store}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	c := inv.Clone()
	return r.store.write(ctx, op{
		check: func(s *Store) error {
			if _, ok := s.invoices[c.ID]; ok {
				return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidInvoice, c.ID)
			}
			for _, id := range c.MemberIDs() {
				if other := s.activeInvoiceFor(id); other != nil {
					return &domain.InvoiceError{ShipmentID: id, InvoiceNumber: other.Number, Err: domain.ErrAlreadyInvoiced}
				}
			}
			return nil
		},
		apply: func(s *Store) { s.invoices[c.ID] = c },
	})
}

func (r *InvoiceRepository) FindByID(_ context.Context, id string) (*domain.Invoice, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	inv, ok := r.store.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, id)
	}
	return inv.Clone(), nil
}

func (r *InvoiceRepository) FindActiveByShipment(_ context.Context, shipmentID string) (*domain.Invoice, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if inv := r.store.activeInvoiceFor(shipmentID); inv != nil {
		return inv.Clone(), nil
	}
	return nil, fmt.Errorf("%w: no active invoice for shipment %s", domain.ErrInvoiceNotFound, shipmentID)
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	c := inv.Clone()
	c.Version = inv.Version + 1
	err := r.store.write(ctx, op{
		check: func(s *Store) error {
			cur, ok := s.invoices[c.ID]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, c.ID)
			}
			if cur.Version != inv.Version {
				return fmt.Errorf("%w: invoice %s", domain.ErrVersionConflict, c.Number)
			}
			return nil
		},
		apply: func(s *Store) { s.invoices[c.ID] = c },
	})
	if err != nil {
		return err
	}
	inv.Version = c.Version
	return nil
}

func (r *InvoiceRepository) ListOutstanding(_ context.Context) ([]*domain.Invoice, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Invoice
	for _, inv := range r.store.invoices {
		if inv.Active() && inv.Status == domain.SettlementOutstanding {
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// activeInvoiceFor must be called with the store lock held.
func (s *Store) activeInvoiceFor(shipmentID string) *domain.Invoice {
	for _, inv := range s.invoices {
		if !inv.Active() {
			continue
		}
		for _, l := range inv.Lines {
			if l.ShipmentID == shipmentID {
				return inv
			}
		}
	}
	return nil
}

type ReturnRepository struct{ store *Store }

func NewReturnRepository(store *Store) *ReturnRepository {
	return &ReturnRepository{store: store}
}

func (r *ReturnRepository) Create(ctx context.Context, rb *domain.ReturnBatch) error {
	c := rb.Clone()
	return r.store.write(ctx, op{
		check: func(s *Store) error {
			if _, ok := s.returns[c.ID]; ok {
				return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidReturn, c.ID)
			}
			return nil
		},
		apply: func(s *Store) { s.returns[c.ID] = c },
	})
}

func (r *ReturnRepository) FindByID(_ context.Context, id string) (*domain.ReturnBatch, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rb, ok := r.store.returns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrReturnNotFound, id)
	}
	return rb.Clone(), nil
}

func (r *ReturnRepository) Update(ctx context.Context, rb *domain.ReturnBatch) error {
	c := rb.Clone()
	c.Version = rb.Version + 1
	err := r.store.write(ctx, op{
		check: func(s *Store) error {
			cur, ok := s.returns[c.ID]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrReturnNotFound, c.ID)
			}
			if cur.Version != rb.Version {
				return fmt.Errorf("%w: return %s", domain.ErrVersionConflict, c.ID)
			}
			return nil
		},
		apply: func(s *Store) { s.returns[c.ID] = c },
	})
	if err != nil {
		return err
	}
	rb.Version = c.Version
	return nil
}

type EventRepository struct{ store *Store }

func NewEventRepository(store *Store) *EventRepository {
	return &EventRepository{store: store}
}

func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.TrackingEvent) error {
	e := *event
	return r.store.write(ctx, op{
		check: func(*Store) error { return nil },
		apply: func(s *Store) { s.events = append(s.events, e) },
	})
}

// SequenceRepository hands out numbers outside any transaction, so gaps are
// possible but duplicates are not.
type SequenceRepository struct{ store *Store }

func NewSequenceRepository(store *Store) *SequenceRepository {
	return &SequenceRepository{store: store}
}

func (r *SequenceRepository) Next(_ context.Context, key string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sequences[key]++
	return r.store.sequences[key], nil
}
