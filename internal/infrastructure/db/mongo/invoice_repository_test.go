package mongo

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

func duplicateKey(index string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: freight.invoices index: " + index + " dup key: { : \"x\" }",
	}}}
}

func TestInsertInvoiceError(t *testing.T) {
	inv := &domain.Invoice{Number: "INV/JKT/202610/00007"}

	err := insertInvoiceError(inv, duplicateKey(invoiceActiveMemberIndex))
	if !errors.Is(err, domain.ErrAlreadyInvoiced) {
		t.Fatalf("member clash: expected ErrAlreadyInvoiced, got %v", err)
	}

	err = insertInvoiceError(inv, duplicateKey(invoiceNumberIndex))
	if errors.Is(err, domain.ErrAlreadyInvoiced) {
		t.Fatalf("number clash must not be reported as already invoiced: %v", err)
	}
	if !mongo.IsDuplicateKeyError(err) {
		t.Fatalf("number clash should keep the driver error, got %v", err)
	}

	err = insertInvoiceError(inv, errors.New("connection reset"))
	if errors.Is(err, domain.ErrAlreadyInvoiced) {
		t.Fatalf("plain failure mapped to ErrAlreadyInvoiced: %v", err)
	}
}
