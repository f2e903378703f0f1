package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

func (f *fixture) invoice(t *testing.T, ids ...string) *domain.Invoice {
	t.Helper()
	inv, err := f.ledger.CreateInvoice(context.Background(), ports.CreateInvoiceInput{
		CustomerID:        "cust-sender",
		CustomerRole:      string(domain.RoleSenderPays),
		MemberShipmentIDs: ids,
		BranchID:          "JKT",
		Actor:             "finance-1",
	})
	require.NoError(t, err)
	return inv
}

func (f *fixture) pay(id string, amount int64) (*domain.Invoice, error) {
	return f.ledger.AddPayment(context.Background(), ports.AddPaymentInput{
		InvoiceID: id,
		Amount:    amount,
		PaidAt:    f.clock.Now(),
		Actor:     "cashier",
	})
}

func TestCreateInvoice_SnapshotsMemberPrices(t *testing.T) {
	f := newFixture(t)
	ids := f.registerN(t, 2)

	inv := f.invoice(t, ids...)

	assert.Equal(t, "INV/JKT/202610/00001", inv.Number)
	assert.Equal(t, int64(300000), inv.Total)
	assert.Equal(t, domain.SettlementOutstanding, inv.Status)
	assert.False(t, inv.Overdue)
	assert.Empty(t, inv.Installments)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), inv.DueAt)
	assert.ElementsMatch(t, ids, inv.MemberIDs())
	assert.Contains(t, f.publisher.types(), ports.EventInvoiceCreated)
}

func TestCreateInvoice_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.registerN(t, 2)
	first := f.invoice(t, ids[0])

	_, err := f.ledger.CreateInvoice(ctx, ports.CreateInvoiceInput{
		CustomerID:        "cust-sender",
		CustomerRole:      string(domain.RoleSenderPays),
		MemberShipmentIDs: ids,
		BranchID:          "JKT",
	})
	require.ErrorIs(t, err, domain.ErrAlreadyInvoiced)
	var ie *domain.InvoiceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ids[0], ie.ShipmentID)
	assert.Equal(t, first.Number, ie.InvoiceNumber)

	_, err = f.ledger.CreateInvoice(ctx, ports.CreateInvoiceInput{
		CustomerID:   "cust-sender",
		CustomerRole: string(domain.RoleSenderPays),
		BranchID:     "JKT",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInvoice)

	_, err = f.ledger.CreateInvoice(ctx, ports.CreateInvoiceInput{
		CustomerID:        "cust-sender",
		CustomerRole:      string(domain.RoleSenderPays),
		MemberShipmentIDs: []string{"missing"},
		BranchID:          "JKT",
	})
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)

	_, err = f.ledger.CreateInvoice(ctx, ports.CreateInvoiceInput{
		CustomerID:        "cust-sender",
		CustomerRole:      string(domain.RoleRecipientPays),
		MemberShipmentIDs: []string{ids[1]},
		BranchID:          "JKT",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInvoice, "recipient-pays invoice must bill the recipient")
}

func TestCreateInvoice_VoidFreesMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.registerN(t, 1)
	inv := f.invoice(t, ids...)

	voided, err := f.ledger.VoidInvoice(ctx, inv.ID, "wrong branch", "finance-1")
	require.NoError(t, err)
	require.NotNil(t, voided.VoidedAt)

	again := f.invoice(t, ids...)
	assert.NotEqual(t, inv.ID, again.ID)

	_, err = f.pay(inv.ID, 1000)
	assert.ErrorIs(t, err, domain.ErrInvoiceVoided)
}

func TestVoidInvoice_RejectsPaidInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, f.registerN(t, 1)...)
	_, err := f.pay(inv.ID, 50000)
	require.NoError(t, err)

	_, err = f.ledger.VoidInvoice(context.Background(), inv.ID, "late", "finance-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInvoice)
}

func TestAddPayment_TerminToSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t, f.registerN(t, 2)...)
	require.Equal(t, int64(300000), inv.Total)

	inv, err := f.pay(inv.ID, 100000)
	require.NoError(t, err)
	rem, err := f.ledger.RemainingBalance(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), rem)

	_, err = f.pay(inv.ID, 250000)
	require.ErrorIs(t, err, domain.ErrOverpayment)
	var pe *domain.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, int64(200000), pe.Remaining)

	f.clock.Advance(24 * time.Hour)
	inv, err = f.pay(inv.ID, 200000)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementSettled, inv.Status)
	require.NotNil(t, inv.SettledAt)
	assert.Equal(t, f.clock.Now(), *inv.SettledAt)
	require.Len(t, inv.Installments, 2)
	assert.Equal(t, 1, inv.Installments[0].Sequence)
	assert.Equal(t, 2, inv.Installments[1].Sequence)

	_, err = f.pay(inv.ID, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	assert.Contains(t, f.publisher.types(), ports.EventInvoiceSettled)
}

func TestAddPayment_DateRules(t *testing.T) {
	f := newFixture(t)
	// 18:00 UTC is already the next calendar day in Jakarta.
	f.clock.now = time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	inv := f.invoice(t, f.registerN(t, 1)...)

	_, err := f.ledger.AddPayment(context.Background(), ports.AddPaymentInput{
		InvoiceID: inv.ID,
		Amount:    1000,
		PaidAt:    time.Date(2026, 10, 17, 20, 0, 0, 0, jakarta),
	})
	require.NoError(t, err, "later the same local day is not the future")

	_, err = f.ledger.AddPayment(context.Background(), ports.AddPaymentInput{
		InvoiceID: inv.ID,
		Amount:    1000,
		PaidAt:    time.Date(2026, 10, 18, 0, 5, 0, 0, jakarta),
	})
	assert.ErrorIs(t, err, domain.ErrFutureDatedPayment)

	_, err = f.pay(inv.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.pay(inv.ID, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.pay("unknown", 10)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestAddPayment_ConcurrentNeverExceedsTotal(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, f.registerN(t, 2)...)

	const (
		payers = 20
		amount = int64(20000)
	)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		contended int
	)
	for i := 0; i < payers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pay(inv.ID, amount)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrContention):
				contended++
			default:
				assert.True(t, errors.Is(err, domain.ErrOverpayment) || errors.Is(err, domain.ErrAlreadySettled), "unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := f.ledger.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.PaidTotal(), got.Total)
	assert.Equal(t, int64(succeeded)*amount, got.PaidTotal())
	for i, in := range got.Installments {
		assert.Equal(t, i+1, in.Sequence)
	}
	if contended == 0 {
		assert.Equal(t, 15, succeeded)
		assert.Equal(t, domain.SettlementSettled, got.Status)
	}
}

func TestMarkOverdue_IdempotentAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	late := f.invoice(t, f.registerN(t, 1)...)
	paid := f.invoice(t, f.registerN(t, 1)...)
	_, err := f.pay(paid.ID, paid.Total)
	require.NoError(t, err)

	asOf := late.DueAt.Add(time.Hour)
	first, err := f.ledger.MarkOverdue(ctx, late.ID, asOf)
	require.NoError(t, err)
	assert.True(t, first.Overdue)
	assert.Equal(t, domain.SettlementOutstanding, first.Status)

	second, err := f.ledger.MarkOverdue(ctx, late.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version, "repeating must not write")

	settled, err := f.ledger.MarkOverdue(ctx, paid.ID, asOf)
	require.NoError(t, err)
	assert.False(t, settled.Overdue)

	f.clock.Advance(72 * time.Hour)
	fresh := f.invoice(t, f.registerN(t, 1)...)
	n, err := f.ledger.SweepOverdue(ctx, fresh.DueAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the already late invoice is overdue before the fresh one's due date")

	n, err = f.ledger.SweepOverdue(ctx, fresh.DueAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
