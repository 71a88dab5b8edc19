package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// AvailabilityHandler serves the public remaining-unit queries.
type AvailabilityHandler struct {
	svc *service.AvailabilityService
}

func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

// Event handles GET /v1/events/:id/availability.
func (h *AvailabilityHandler) Event(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid event id")
	}
	av, err := h.svc.Event(c.Request().Context(), id)
	if err != nil {
		return failService(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, toEventAvailabilityDTO(av))
}

// Category handles GET /v1/categories/:id/availability.
func (h *AvailabilityHandler) Category(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid category id")
	}
	av, err := h.svc.Category(c.Request().Context(), id)
	if err != nil {
		return failService(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, toCategoryAvailabilityDTO(av))
}
