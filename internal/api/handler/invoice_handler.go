package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

// InvoiceHandler exposes the billing ledger. Calendar dates in requests and
// responses are read on the billing timezone.
type InvoiceHandler struct {
	billing ports.BillingService
	loc     *time.Location
	now     func() time.Time
}

func NewInvoiceHandler(billing ports.BillingService, loc *time.Location) *InvoiceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &InvoiceHandler{billing: billing, loc: loc, now: time.Now}
}

// Create handles POST /v1/invoices.
//
// @Summary      Open an invoice over shipment notes of one customer
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createInvoiceRequest  true  "Customer and members"
// @Success      201   {object}  invoiceResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/invoices [post]
func (h *InvoiceHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req createInvoiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if !actor.CanActFor(req.BranchID) {
		return domain.ErrForbidden
	}

	inv, err := h.billing.CreateInvoice(c.Request().Context(), ports.CreateInvoiceInput{
		CustomerID:        req.CustomerID,
		CustomerRole:      req.CustomerRole,
		MemberShipmentIDs: req.ShipmentIDs,
		BranchID:          req.BranchID,
		Actor:             actor.ID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toInvoiceResponse(inv, h.loc))
}

// Get handles GET /v1/invoices/:id.
//
// @Summary      Get an invoice with its termin payments
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice id"
// @Success      200  {object}  invoiceResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/invoices/{id} [get]
func (h *InvoiceHandler) Get(c echo.Context) error {
	inv, err := h.billing.GetInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toInvoiceResponse(inv, h.loc))
}

// Balance handles GET /v1/invoices/:id/balance.
//
// @Summary      Remaining balance of an invoice
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice id"
// @Success      200  {object}  balanceResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /v1/invoices/{id}/balance [get]
func (h *InvoiceHandler) Balance(c echo.Context) error {
	id := c.Param("id")
	rem, err := h.billing.RemainingBalance(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{InvoiceID: id, Remaining: rem})
}

// AddPayment handles POST /v1/invoices/:id/payments.
//
// @Summary      Record a termin payment
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true  "Invoice id"
// @Param        body  body      paymentRequest  true  "Installment"
// @Success      201   {object}  invoiceResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/invoices/{id}/payments [post]
func (h *InvoiceHandler) AddPayment(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req paymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	paidAt, err := parseDate(req.PaidAt, h.loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "paid_at must be a date (YYYY-MM-DD)")
	}

	inv, err := h.billing.AddPayment(c.Request().Context(), ports.AddPaymentInput{
		InvoiceID: c.Param("id"),
		Amount:    req.Amount,
		PaidAt:    paidAt,
		Note:      req.Note,
		Actor:     actor.ID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toInvoiceResponse(inv, h.loc))
}

// MarkOverdue handles POST /v1/invoices/:id/overdue. as_of defaults to now.
//
// @Summary      Recompute the overdue flag of an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true   "Invoice id"
// @Param        body  body      overdueRequest  false  "Reference date"
// @Success      200   {object}  invoiceResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/invoices/{id}/overdue [post]
func (h *InvoiceHandler) MarkOverdue(c echo.Context) error {
	asOf, err := h.asOf(c)
	if err != nil {
		return err
	}
	inv, err := h.billing.MarkOverdue(c.Request().Context(), c.Param("id"), asOf)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toInvoiceResponse(inv, h.loc))
}

// SweepOverdue handles POST /v1/invoices/overdue-sweep.
//
// @Summary      Recompute the overdue flag of every outstanding invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      overdueRequest  false  "Reference date"
// @Success      200   {object}  sweepResponse
// @Router       /v1/invoices/overdue-sweep [post]
func (h *InvoiceHandler) SweepOverdue(c echo.Context) error {
	asOf, err := h.asOf(c)
	if err != nil {
		return err
	}
	n, err := h.billing.SweepOverdue(c.Request().Context(), asOf)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sweepResponse{Overdue: n})
}

// Void handles POST /v1/invoices/:id/void.
//
// @Summary      Void an unpaid invoice and release its shipment notes
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string       true  "Invoice id"
// @Param        body  body      voidRequest  true  "Reason"
// @Success      200   {object}  invoiceResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/invoices/{id}/void [post]
func (h *InvoiceHandler) Void(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req voidRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	inv, err := h.billing.VoidInvoice(c.Request().Context(), c.Param("id"), req.Reason, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toInvoiceResponse(inv, h.loc))
}

// asOf reads the optional reference date. A given date means the end of that
// day on the billing calendar.
func (h *InvoiceHandler) asOf(c echo.Context) (time.Time, error) {
	var req overdueRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return time.Time{}, err
		}
	}
	if req.AsOf == "" {
		return h.now().UTC(), nil
	}
	day, err := parseDate(req.AsOf, h.loc)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusUnprocessableEntity, "as_of must be a date (YYYY-MM-DD)")
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC(), nil
}
