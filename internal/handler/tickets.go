package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// TicketHandler covers the buyer listing and the admin back office:
// cancellation and manual payment status.
type TicketHandler struct {
	tickets  *service.TicketService
	payments *service.PaymentService
}

func NewTicketHandler(tickets *service.TicketService, payments *service.PaymentService) *TicketHandler {
	return &TicketHandler{tickets: tickets, payments: payments}
}

// Mine handles GET /v1/my-tickets.
func (h *TicketHandler) Mine(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	list, err := h.tickets.ListMine(c.Request().Context(), id)
	if err != nil {
		return failService(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": toTicketDTOs(list)})
}

// Cancel handles POST /v1/admin/tickets/:id/cancel.
func (h *TicketHandler) Cancel(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return fail(c, http.StatusBadRequest, "invalid_request", "ticket id required")
	}
	t, err := h.tickets.Cancel(c.Request().Context(), id)
	if err != nil {
		return failService(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, toTicketDTO(t))
}

type paymentReq struct {
	Status string `json:"status" validate:"required,oneof=paid failed expired"`
}

// ApplyPayment handles POST /v1/admin/orders/:id/payment. It goes through
// the same path as messages from the payment queue.
func (h *TicketHandler) ApplyPayment(c echo.Context) error {
	orderID := strings.TrimSpace(c.Param("id"))
	if orderID == "" {
		return fail(c, http.StatusBadRequest, "invalid_request", "order id required")
	}
	var body paymentReq
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	if err := h.payments.ApplyPayment(c.Request().Context(), orderID, model.PaymentOutcome(body.Status)); err != nil {
		return failService(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": orderID, "status": body.Status})
}
