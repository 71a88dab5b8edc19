package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// ticketDTO is the wire shape of a ticket. The validation token stays in
// the ledger; clients only ever see the scan code.
type ticketDTO struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	EventID         uint64          `json:"event_id"`
	CategoryID      uint64          `json:"category_id"`
	CategoryName    string          `json:"category_name,omitempty"`
	AttendeeName    string          `json:"attendee_name"`
	AttendeeEmail   string          `json:"attendee_email"`
	ScanCode        string          `json:"scan_code"`
	State           string          `json:"state"`
	Price           decimal.Decimal `json:"price"`
	PurchasedAt     time.Time       `json:"purchased_at"`
	UsedAt          *time.Time      `json:"used_at,omitempty"`
}

func toTicketDTO(t model.Ticket) ticketDTO {
	return ticketDTO{
		ID:              t.ID,
		OrderID:         t.OrderID,
		EventID:         t.EventID,
		CategoryID:      t.CategoryID,
		CategoryName:    t.CategoryName,
		AttendeeName:    t.AttendeeName,
		AttendeeEmail:   t.AttendeeEmail,
		ScanCode:        t.ScanCode,
		State:           string(t.State),
		Price:           t.Price,
		PurchasedAt:     t.PurchasedAt,
		UsedAt:          t.UsedAt,
	}
}

func toTicketDTOs(ts []model.Ticket) []ticketDTO {
	out := make([]ticketDTO, len(ts))
	for i, t := range ts {
		out[i] = toTicketDTO(t)
	}
	return out
}

type orderDTO struct {
	ID        string          `json:"id"`
	EventID   uint64          `json:"event_id"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type paymentDTO struct {
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

type purchaseResp struct {
	Order           orderDTO    `json:"order"`
	Tickets         []ticketDTO `json:"tickets"`
	PaymentRequired bool        `json:"payment_required"`
	Payment         *paymentDTO `json:"payment,omitempty"`
}

func toPurchaseResp(r model.PurchaseResult) purchaseResp {
	out := purchaseResp{
		Order: orderDTO{
			ID:        r.Order.ID,
			EventID:   r.Order.EventID,
			Total:     r.Order.Total,
			Currency:  r.Order.Currency,
			Status:    string(r.Order.Status),
			CreatedAt: r.Order.CreatedAt,
		},
		Tickets:         toTicketDTOs(r.Tickets),
		PaymentRequired: r.PaymentRequired,
	}
	if p := r.Payment; p != nil {
		out.Payment = &paymentDTO{OrderID: p.OrderID, Amount: p.Amount, Currency: p.Currency,
			Description: p.Description, ExpiresAt: p.ExpiresAt}
	}
	return out
}

type scanResp struct {
	Result       string     `json:"result"`
	TicketID     string     `json:"ticket_id,omitempty"`
	AttendeeName string     `json:"attendee_name,omitempty"`
	IDDocument   string     `json:"id_document,omitempty"`
	CategoryName string     `json:"category_name,omitempty"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
}

func toScanResp(o model.ScanOutcome) scanResp {
	return scanResp{
		Result:       string(o.Result),
		TicketID:     o.TicketID,
		AttendeeName: o.AttendeeName,
		IDDocument:   o.IDDocument,
		CategoryName: o.CategoryName,
		UsedAt:       o.UsedAt,
	}
}

type categoryAvailabilityDTO struct {
	CategoryID uint64 `json:"category_id"`
	LotID      uint64 `json:"lot_id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	Total      int    `json:"total"`
	Sold       int    `json:"sold"`
	Remaining  int    `json:"remaining"`
}

type lotAvailabilityDTO struct {
	LotID      uint64                    `json:"lot_id"`
	Name       string                    `json:"name"`
	Open       bool                      `json:"open"`
	MaxUnits   *int                      `json:"max_units,omitempty"`
	Sold       int                       `json:"sold"`
	Remaining  int                       `json:"remaining"`
	Categories []categoryAvailabilityDTO `json:"categories"`
}

type eventAvailabilityDTO struct {
	EventID   uint64               `json:"event_id"`
	Capacity  *int                 `json:"capacity,omitempty"`
	Sold      int                  `json:"sold"`
	Remaining int                  `json:"remaining"`
	Lots      []lotAvailabilityDTO `json:"lots"`
}

func toCategoryAvailabilityDTO(c model.CategoryAvailability) categoryAvailabilityDTO {
	return categoryAvailabilityDTO(c)
}

func toEventAvailabilityDTO(e model.EventAvailability) eventAvailabilityDTO {
	out := eventAvailabilityDTO{EventID: e.EventID, Capacity: e.Capacity, Sold: e.Sold,
		Remaining: e.Remaining, Lots: make([]lotAvailabilityDTO, 0, len(e.Lots))}
	for _, l := range e.Lots {
		ld := lotAvailabilityDTO{LotID: l.LotID, Name: l.Name, Open: l.Open, MaxUnits: l.MaxUnits,
			Sold: l.Sold, Remaining: l.Remaining, Categories: make([]categoryAvailabilityDTO, 0, len(l.Categories))}
		for _, c := range l.Categories {
			ld.Categories = append(ld.Categories, toCategoryAvailabilityDTO(c))
		}
		out.Lots = append(out.Lots, ld)
	}
	return out
}
