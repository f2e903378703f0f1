package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
	"github.com/kargonusa/freight-core/internal/pkg/metrics"
)

// BillingOptions configures the collection ledger.
type BillingOptions struct {
	DueHorizon time.Duration
	Location   *time.Location // calendar for payment dates
}

// BillingLedger records invoices and their termin payments. Every mutation
// of an invoice runs under that invoice's lock with a version checked write,
// so installments are admitted one at a time.
type BillingLedger struct {
	deps Dependencies
	opts BillingOptions
	log  zerolog.Logger
}

var _ ports.BillingService = (*BillingLedger)(nil)

func NewBillingLedger(deps Dependencies, opts BillingOptions, log zerolog.Logger) *BillingLedger {
	if opts.DueHorizon <= 0 {
		opts.DueHorizon = 30 * 24 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &BillingLedger{deps: deps.withDefaults(), opts: opts, log: log}
}

// CreateInvoice snapshots member prices into a new outstanding invoice. The
// member locks are held from the already-invoiced check until the insert.
func (b *BillingLedger) CreateInvoice(ctx context.Context, in ports.CreateInvoiceInput) (*domain.Invoice, error) {
	role := domain.CustomerRole(in.CustomerRole)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown customer role %q", domain.ErrInvalidInvoice, in.CustomerRole)
	}
	members := domain.UniqueIDs(in.MemberShipmentIDs)
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: no member shipments", domain.ErrInvalidInvoice)
	}
	keys := make([]string, len(members))
	for i, id := range members {
		keys[i] = shipmentKey(id)
	}

	var inv *domain.Invoice
	err := withRetry(ctx, b.deps.Retry, "create invoice", func(ctx context.Context) error {
		release, err := lockAll(ctx, b.deps.Locker, b.log, keys...)
		if err != nil {
			return err
		}
		defer release()

		lines := make([]domain.InvoiceLine, 0, len(members))
		for _, id := range members {
			sh, err := b.deps.Shipments.FindByID(ctx, id)
			if err != nil {
				return &domain.InvoiceError{ShipmentID: id, Err: err}
			}
			if party := billedParty(sh, role); party != in.CustomerID {
				return &domain.InvoiceError{ShipmentID: id, Err: fmt.Errorf("%w: billed party is %q, not %q", domain.ErrInvalidInvoice, party, in.CustomerID)}
			}
			existing, err := b.deps.Invoices.FindActiveByShipment(ctx, id)
			switch {
			case err == nil:
				return &domain.InvoiceError{ShipmentID: id, InvoiceNumber: existing.Number, Err: domain.ErrAlreadyInvoiced}
			case !errors.Is(err, domain.ErrInvoiceNotFound):
				return err
			}
			lines = append(lines, domain.InvoiceLine{ShipmentID: sh.ID, TrackingNumber: sh.TrackingNumber, Price: sh.Price})
		}

		now := b.deps.Clock.Now()
		local := now.In(b.opts.Location)
		seq, err := b.deps.Sequences.Next(ctx, fmt.Sprintf("invoice:%s:%s", strings.ToUpper(in.BranchID), local.Format("200601")))
		if err != nil {
			return fmt.Errorf("create invoice: next sequence: %w", err)
		}
		created, err := domain.NewInvoice(domain.NewInvoiceParams{
			ID:           uuid.NewString(),
			Number:       domain.FormatInvoiceNumber(strings.ToUpper(in.BranchID), local, seq),
			CustomerID:   in.CustomerID,
			CustomerRole: role,
			BranchID:     in.BranchID,
			Lines:        lines,
			Actor:        in.Actor,
			DueHorizon:   b.opts.DueHorizon,
		}, now)
		if err != nil {
			return err
		}
		if err := b.deps.Invoices.Create(ctx, created); err != nil {
			return err
		}
		inv = created
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrContention) {
			metrics.ContentionTotal.WithLabelValues("invoice").Inc()
		}
		return nil, err
	}

	metrics.InvoicesCreatedTotal.WithLabelValues(string(inv.CustomerRole)).Inc()
	publish(ctx, b.deps.Publisher, b.log, ports.DomainEvent{
		Type:        ports.EventInvoiceCreated,
		AggregateID: inv.ID,
		OccurredAt:  inv.CreatedAt,
		Payload:     inv,
	})
	b.log.Info().
		Str("invoice", inv.Number).
		Str("customer_id", inv.CustomerID).
		Int64("total", inv.Total).
		Int("members", len(inv.Lines)).
		Msg("invoice created")
	return inv, nil
}

// AddPayment appends one termin. Overpayment is rejected, never clamped.
func (b *BillingLedger) AddPayment(ctx context.Context, in ports.AddPaymentInput) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := b.mutate(ctx, "add payment", in.InvoiceID, func(inv *domain.Invoice, now time.Time) (bool, error) {
		paidAt := in.PaidAt
		if paidAt.IsZero() {
			paidAt = now
		}
		err := inv.ApplyPayment(domain.PaymentInput{
			Amount: in.Amount,
			PaidAt: paidAt,
			Note:   in.Note,
			Actor:  in.Actor,
		}, now, b.opts.Location)
		if err != nil {
			return false, err
		}
		out = inv
		return true, nil
	})
	metrics.PaymentsTotal.WithLabelValues(paymentResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	last := out.Installments[len(out.Installments)-1]
	publish(ctx, b.deps.Publisher, b.log, ports.DomainEvent{
		Type:        ports.EventPaymentRecorded,
		AggregateID: out.ID,
		OccurredAt:  last.RecordedAt,
		Payload:     last,
	})
	if out.Status == domain.SettlementSettled {
		metrics.InvoicesSettledTotal.Inc()
		publish(ctx, b.deps.Publisher, b.log, ports.DomainEvent{
			Type:        ports.EventInvoiceSettled,
			AggregateID: out.ID,
			OccurredAt:  *out.SettledAt,
			Payload:     out,
		})
	}
	b.log.Info().
		Str("invoice", out.Number).
		Int("sequence", last.Sequence).
		Int64("amount", last.Amount).
		Str("status", string(out.Status)).
		Msg("payment recorded")
	return out, nil
}

// MarkOverdue recomputes the overdue flag as of asOf. Repeating it with the
// same asOf changes nothing.
func (b *BillingLedger) MarkOverdue(ctx context.Context, invoiceID string, asOf time.Time) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := b.mutate(ctx, "mark overdue", invoiceID, func(inv *domain.Invoice, now time.Time) (bool, error) {
		if asOf.IsZero() {
			asOf = now
		}
		out = inv
		changed := inv.RecomputeOverdue(asOf)
		if changed {
			inv.UpdatedAt = now
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	if out.Overdue {
		b.log.Debug().Str("invoice", out.Number).Time("due_at", out.DueAt).Msg("invoice overdue")
	}
	return out, nil
}

// SweepOverdue applies MarkOverdue to every outstanding invoice and returns
// how many are overdue afterwards. Failures on one invoice do not stop the
// sweep.
func (b *BillingLedger) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	if asOf.IsZero() {
		asOf = b.deps.Clock.Now()
	}
	outstanding, err := b.deps.Invoices.ListOutstanding(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue: %w", err)
	}
	var (
		overdue int
		errs    []error
	)
	for _, inv := range outstanding {
		wasOverdue := inv.Overdue
		updated, err := b.MarkOverdue(ctx, inv.ID, asOf)
		if err != nil {
			errs = append(errs, fmt.Errorf("invoice %s: %w", inv.Number, err))
			continue
		}
		if updated.Overdue {
			overdue++
			if !wasOverdue {
				metrics.InvoicesMarkedOverdueTotal.Inc()
			}
		}
	}
	b.log.Info().Int("outstanding", len(outstanding)).Int("overdue", overdue).Time("as_of", asOf).Msg("overdue sweep finished")
	return overdue, errors.Join(errs...)
}

// RemainingBalance is Total minus all installments.
func (b *BillingLedger) RemainingBalance(ctx context.Context, invoiceID string) (int64, error) {
	inv, err := b.deps.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return 0, err
	}
	rem, err := inv.Remaining()
	if err != nil {
		b.log.Error().Err(err).Str("invoice", inv.Number).Msg("invoice balance corrupted")
		return 0, err
	}
	return rem, nil
}

func (b *BillingLedger) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	inv, err := b.deps.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(inv.Installments, func(i, j int) bool {
		return inv.Installments[i].Sequence < inv.Installments[j].Sequence
	})
	return inv, nil
}

// VoidInvoice cancels an unpaid invoice and frees its members.
func (b *BillingLedger) VoidInvoice(ctx context.Context, invoiceID, reason, actor string) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := b.mutate(ctx, "void invoice", invoiceID, func(inv *domain.Invoice, now time.Time) (bool, error) {
		if err := inv.Void(reason, actor, now); err != nil {
			return false, err
		}
		out = inv
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Info().Str("invoice", out.Number).Str("actor", actor).Str("reason", reason).Msg("invoice voided")
	return out, nil
}

// mutate runs fn on a fresh copy of the invoice under its lock and writes it
// back when fn reports a change.
func (b *BillingLedger) mutate(ctx context.Context, op, invoiceID string, fn func(inv *domain.Invoice, now time.Time) (bool, error)) error {
	err := withRetry(ctx, b.deps.Retry, op, func(ctx context.Context) error {
		release, err := lockAll(ctx, b.deps.Locker, b.log, invoiceKey(invoiceID))
		if err != nil {
			return err
		}
		defer release()

		inv, err := b.deps.Invoices.FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		changed, err := fn(inv, b.deps.Clock.Now())
		if err != nil || !changed {
			return err
		}
		return b.deps.Invoices.Update(ctx, inv)
	})
	if errors.Is(err, domain.ErrContention) {
		metrics.ContentionTotal.WithLabelValues("invoice").Inc()
	}
	return err
}

func billedParty(s *domain.Shipment, role domain.CustomerRole) string {
	if role == domain.RoleRecipientPays {
		return s.RecipientID
	}
	return s.SenderID
}

func paymentResult(err error) string {
	switch {
	case err == nil:
		return "recorded"
	case errors.Is(err, domain.ErrOverpayment):
		return "overpayment"
	case errors.Is(err, domain.ErrFutureDatedPayment):
		return "future_dated"
	case errors.Is(err, domain.ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrInvoiceVoided):
		return "voided"
	case errors.Is(err, domain.ErrContention):
		return "contention"
	}
	return "other"
}
