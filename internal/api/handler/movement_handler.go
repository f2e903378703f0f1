package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

// MovementHandler handles batch movements and return runs.
type MovementHandler struct {
	service ports.MovementService
}

func NewMovementHandler(service ports.MovementService) *MovementHandler {
	return &MovementHandler{service: service}
}

// Run handles POST /v1/movements with explicit start and target statuses.
//
// @Summary      Move a batch of shipment notes all-or-nothing
// @Tags         movements
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      movementRequest  true  "Members, statuses and assignment"
// @Success      200   {object}  batchResultResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/movements [post]
func (h *MovementHandler) Run(c echo.Context) error {
	in, err := h.movementInput(c)
	if err != nil {
		return err
	}
	res, err := h.service.RunBatchMovement(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBatchResultResponse(res))
}

// Preset returns the handler of a fixed-edge movement: loading (PENDING→MUAT),
// departure (MUAT→TRANSIT) or local delivery (TRANSIT→LANSIR).
//
// @Summary      Run a preset batch movement
// @Tags         movements
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string           true  "loading, departure or local-delivery"
// @Param        body  body      movementRequest  true  "Members and assignment"
// @Success      200   {object}  batchResultResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/movements/{kind} [post]
func (h *MovementHandler) Preset(kind domain.MovementKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		in, err := h.movementInput(c)
		if err != nil {
			return err
		}
		res, err := h.service.RunPresetMovement(c.Request().Context(), kind, in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, toBatchResultResponse(res))
	}
}

func (h *MovementHandler) movementInput(c echo.Context) (ports.BatchMovementInput, error) {
	actor, err := ctxActor(c)
	if err != nil {
		return ports.BatchMovementInput{}, err
	}
	var req movementRequest
	if err := bindAndValidate(c, &req); err != nil {
		return ports.BatchMovementInput{}, err
	}
	return ports.BatchMovementInput{
		MemberIDs:    req.MemberIDs,
		StartStatus:  req.StartStatus,
		TargetStatus: req.TargetStatus,
		Assignment:   toAssignment(req.Assignment),
		Actor:        actor.ID,
		Location:     req.Location,
	}, nil
}

// CreateReturn handles POST /v1/returns.
//
// @Summary      Open a return run to the origin branch
// @Tags         returns
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createReturnRequest  true  "Return run"
// @Success      201   {object}  returnResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/returns [post]
func (h *MovementHandler) CreateReturn(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req createReturnRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if !actor.CanActFor(req.BranchID) {
		return domain.ErrForbidden
	}
	dispatch, err := parseDate(req.DispatchDate, time.UTC)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "dispatch_date must be a date (YYYY-MM-DD)")
	}

	r, err := h.service.CreateReturn(c.Request().Context(), ports.CreateReturnInput{
		BranchID:     req.BranchID,
		MemberIDs:    req.MemberIDs,
		DispatchDate: dispatch,
		Assignment:   toAssignment(req.Assignment),
		Actor:        actor.ID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReturnResponse(r))
}

// ReceiveReturn handles POST /v1/returns/:id/receive.
//
// @Summary      Confirm a return run arrived
// @Tags         returns
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Return id"
// @Param        body  body      receiveReturnRequest  true  "Arrival"
// @Success      200   {object}  returnResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/returns/{id}/receive [post]
func (h *MovementHandler) ReceiveReturn(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req receiveReturnRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	arrival, err := parseDate(req.ArrivalDate, time.UTC)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "arrival_date must be a date (YYYY-MM-DD)")
	}

	r, err := h.service.ReceiveReturn(c.Request().Context(), ports.ReceiveReturnInput{
		ReturnID:    c.Param("id"),
		ArrivalDate: arrival,
		ReceiptRef:  req.ReceiptRef,
		Actor:       actor.ID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReturnResponse(r))
}

// GetReturn handles GET /v1/returns/:id.
//
// @Summary      Get a return run
// @Tags         returns
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Return id"
// @Success      200  {object}  returnResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/returns/{id} [get]
func (h *MovementHandler) GetReturn(c echo.Context) error {
	r, err := h.service.GetReturn(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReturnResponse(r))
}
