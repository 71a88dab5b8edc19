package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// PurchaseHandler exposes the reservation engine.
type PurchaseHandler struct {
	svc *service.ReservationService
}

func NewPurchaseHandler(svc *service.ReservationService) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

type attendeeReq struct {
	Name       string  `json:"name"`
	IDDocument string  `json:"id_document"`
	Email      string  `json:"email"`
	Phone      *string `json:"phone"`
}

type selectionReq struct {
	CategoryID uint64        `json:"category_id" validate:"required"`
	Quantity   int           `json:"quantity" validate:"gte=1"`
	Attendees  []attendeeReq `json:"attendees"`
}

type purchaseReq struct {
	Selections []selectionReq `json:"selections" validate:"required,min=1,dive"`
	Notes      string         `json:"notes" validate:"max=1000"`
}

// Create handles POST /v1/events/:id/purchases. Attendee completeness is
// left to the engine so it is reported with its own rejection code.
func (h *PurchaseHandler) Create(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid_request", "invalid event id")
	}
	var body purchaseReq
	if ok, err := bindValid(c, &body); !ok {
		return err
	}

	req := model.PurchaseRequest{
		Buyer:      model.Buyer{AccountID: accountID, Role: middleware.Role(c)},
		EventID:    eventID,
		Selections: make([]model.Selection, len(body.Selections)),
		Notes:      strings.TrimSpace(body.Notes),
	}
	for i, s := range body.Selections {
		sel := model.Selection{CategoryID: s.CategoryID, Quantity: s.Quantity,
			Attendees: make([]model.Attendee, len(s.Attendees))}
		for j, a := range s.Attendees {
			sel.Attendees[j] = model.Attendee{Name: a.Name, IDDocument: a.IDDocument, Email: a.Email, Phone: a.Phone}
		}
		req.Selections[i] = sel
	}

	res, err := h.svc.Purchase(c.Request().Context(), req)
	if err != nil {
		return failService(c, err, http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusCreated, toPurchaseResp(res))
}
