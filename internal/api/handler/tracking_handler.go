package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kargonusa/freight-core/internal/core/ports"
)

// TrackingHandler serves customer-facing timelines.
type TrackingHandler struct {
	tracking ports.TrackingService
}

func NewTrackingHandler(tracking ports.TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// Timeline handles GET /v1/tracking/:tracking_number.
//
// @Summary      Tracking timeline of a shipment note
// @Tags         tracking
// @Produce      json
// @Security     BearerAuth
// @Param        tracking_number  path      string  true  "Tracking number (e.g. JKT-20261016-000001)"
// @Success      200              {object}  timelineResponse
// @Failure      404              {object}  errorResponse
// @Router       /v1/tracking/{tracking_number} [get]
func (h *TrackingHandler) Timeline(c echo.Context) error {
	t, err := h.tracking.ProjectTimelineByTrackingNumber(c.Request().Context(), c.Param("tracking_number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTimelineResponse(t))
}
