package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// domainStatus maps sentinels to HTTP codes. Order matters: the first match wins.
var domainStatus = []struct {
	err  error
	code int
}{
	{domain.ErrShipmentNotFound, http.StatusNotFound},
	{domain.ErrInvoiceNotFound, http.StatusNotFound},
	{domain.ErrReturnNotFound, http.StatusNotFound},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrContention, http.StatusServiceUnavailable},
	{domain.ErrLockHeld, http.StatusServiceUnavailable},
	{domain.ErrVersionConflict, http.StatusServiceUnavailable},
	{domain.ErrTerminalState, http.StatusConflict},
	{domain.ErrPreconditionFailed, http.StatusConflict},
	{domain.ErrResourceExhausted, http.StatusConflict},
	{domain.ErrAlreadyInvoiced, http.StatusConflict},
	{domain.ErrNotPending, http.StatusConflict},
	{domain.ErrAlreadySettled, http.StatusConflict},
	{domain.ErrInvoiceVoided, http.StatusConflict},
	{domain.ErrReturnAlreadyReceived, http.StatusConflict},
	{domain.ErrInvalidTransition, http.StatusUnprocessableEntity},
	{domain.ErrMissingForwardingAgent, http.StatusUnprocessableEntity},
	{domain.ErrEmptyBatch, http.StatusUnprocessableEntity},
	{domain.ErrOverpayment, http.StatusUnprocessableEntity},
	{domain.ErrFutureDatedPayment, http.StatusUnprocessableEntity},
	{domain.ErrInvalidAmount, http.StatusUnprocessableEntity},
	{domain.ErrInvalidShipment, http.StatusUnprocessableEntity},
	{domain.ErrInvalidInvoice, http.StatusUnprocessableEntity},
	{domain.ErrInvalidReturn, http.StatusUnprocessableEntity},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain errors
// to status codes, attaches the structured context of transition, batch,
// payment and invoice errors, and logs anything unexpected without leaking it.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if code == http.StatusServiceUnavailable {
			c.Response().Header().Set("Retry-After", "1")
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			return m.code, errorResponse{Error: err.Error(), Details: details(err)}
		}
	}

	// Unexpected error, including a corrupted invoice balance: log the real
	// cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}

// details collects the fields of every structured error in the chain.
func details(err error) map[string]any {
	d := map[string]any{}

	var te *domain.TransitionError
	if errors.As(err, &te) {
		d["shipment_id"] = te.ShipmentID
		d["tracking_number"] = te.TrackingNumber
		d["from"] = te.From
		d["to"] = te.To
	}
	var be *domain.BatchError
	if errors.As(err, &be) {
		d["batch_kind"] = be.Kind
		if be.MemberID != "" {
			d["member_id"] = be.MemberID
		}
		if be.Required != "" {
			d["current_status"] = be.Current
			d["required_status"] = be.Required
		}
	}
	var pe *domain.PaymentError
	if errors.As(err, &pe) {
		d["invoice_number"] = pe.InvoiceNumber
		d["amount"] = pe.Amount
		d["remaining"] = pe.Remaining
	}
	var ie *domain.InvoiceError
	if errors.As(err, &ie) {
		d["shipment_id"] = ie.ShipmentID
		if ie.InvoiceNumber != "" {
			d["conflicting_invoice"] = ie.InvoiceNumber
		}
	}
	if errors.Is(err, domain.ErrContention) {
		d["retryable"] = true
	}

	if len(d) == 0 {
		return nil
	}
	return d
}
