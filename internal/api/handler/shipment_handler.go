package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

// ShipmentHandler handles HTTP requests for shipment notes.
type ShipmentHandler struct {
	service ports.ShipmentService
}

func NewShipmentHandler(service ports.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{service: service}
}

// Create handles POST /v1/shipments.
//
// @Summary      Register a shipment note
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerShipmentRequest  true  "Intake details"
// @Success      201   {object}  shipmentResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/shipments [post]
func (h *ShipmentHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req registerShipmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if !actor.CanActFor(req.OriginBranchID) {
		return domain.ErrForbidden
	}

	s, err := h.service.RegisterShipment(c.Request().Context(), toRegisterInput(req, actor.ID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toShipmentResponse(s))
}

// Get handles GET /v1/shipments/:id.
//
// @Summary      Get a shipment note
// @Tags         shipments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Shipment id"
// @Success      200  {object}  shipmentResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/shipments/{id} [get]
func (h *ShipmentHandler) Get(c echo.Context) error {
	s, err := h.service.GetShipment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toShipmentResponse(s))
}

// Delete handles DELETE /v1/shipments/:id. Only PENDING, uninvoiced notes go.
//
// @Summary      Delete a pending shipment note
// @Tags         shipments
// @Security     BearerAuth
// @Param        id   path  string  true  "Shipment id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/shipments/{id} [delete]
func (h *ShipmentHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	s, err := h.service.GetShipment(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if !actor.CanActFor(s.OriginBranchID) {
		return domain.ErrForbidden
	}
	if err := h.service.DeletePending(ctx, s.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignForwardingAgent handles PUT /v1/shipments/:id/forwarding-agent.
//
// @Summary      Assign the forwarding agent of a pending shipment
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "Shipment id"
// @Param        body  body      assignAgentRequest  true  "Agent"
// @Success      200   {object}  shipmentResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/shipments/{id}/forwarding-agent [put]
func (h *ShipmentHandler) AssignForwardingAgent(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req assignAgentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.service.AssignForwardingAgent(c.Request().Context(), c.Param("id"), req.ForwardingAgentID, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toShipmentResponse(s))
}

// Transition handles POST /v1/shipments/:id/transitions. The Idempotency-Key
// header makes client retries safe.
//
// @Summary      Move a shipment note along one lifecycle edge
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id               path      string             true   "Shipment id"
// @Param        Idempotency-Key  header    string             false  "Request token"
// @Param        body             body      transitionRequest  true   "Target status"
// @Success      200              {object}  shipmentResponse
// @Failure      404              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      422              {object}  errorResponse
// @Router       /v1/shipments/{id}/transitions [post]
func (h *ShipmentHandler) Transition(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	s, err := h.service.ApplyTransition(c.Request().Context(), ports.TransitionInput{
		ShipmentID:   c.Param("id"),
		TargetStatus: req.Status,
		Actor:        actor.ID,
		Location:     req.Location,
		Notes:        req.Notes,
		RequestToken: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toShipmentResponse(s))
}
