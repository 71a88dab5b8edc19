package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Attendee carries the per-ticket holder details collected at checkout.
type Attendee struct {
	Name       string
	IDDocument string
	Email      string
	Phone      *string
}

// Selection asks for Quantity units of one category, with one attendee
// record per unit.
type Selection struct {
	CategoryID uint64
	Quantity   int
	Attendees  []Attendee
}

// Buyer identifies the purchasing account and the role it authenticated
// with.
type Buyer struct {
	AccountID uint64
	Role      string
}

// PurchaseRequest is the complete, self-contained input of one checkout.
// Nothing about a purchase lives outside this value.
type PurchaseRequest struct {
	Buyer      Buyer
	EventID    uint64
	Selections []Selection
	Notes      string
}

// TotalQuantity sums the requested units over all selections.
func (r PurchaseRequest) TotalQuantity() int {
	n := 0
	for _, s := range r.Selections {
		n += s.Quantity
	}
	return n
}

// SaleLine is the per-category increment applied by a commit.
type SaleLine struct {
	CategoryID uint64
	LotID      uint64
	Quantity   int
}

// Sale is everything the ledger must apply atomically: the counter
// increments for every line, the order row and the ticket rows.
type Sale struct {
	EventID uint64
	Order   Order
	Lines   []SaleLine
	Tickets []Ticket
}

// LotQuantities aggregates the sale's lines per lot.
func (s Sale) LotQuantities() map[uint64]int {
	out := make(map[uint64]int, len(s.Lines))
	for _, l := range s.Lines {
		out[l.LotID] += l.Quantity
	}
	return out
}

// TotalQuantity sums all lines.
func (s Sale) TotalQuantity() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// PaymentInitiation is handed to the payment collaborator when a committed
// sale has a nonzero total. It is a value; the engine never calls the
// provider itself.
type PaymentInitiation struct {
	OrderID     string
	AccountID   uint64
	EventID     uint64
	Amount      decimal.Decimal
	Currency    string
	Description string
	ExpiresAt   time.Time
}

// PurchaseResult is the successful outcome of a purchase.
type PurchaseResult struct {
	Order           Order
	Tickets         []Ticket
	PaymentRequired bool
	Payment         *PaymentInitiation
}

// TicketIDs lists the ids of the issued tickets in issuance order.
func (r PurchaseResult) TicketIDs() []string {
	ids := make([]string, len(r.Tickets))
	for i, t := range r.Tickets {
		ids[i] = t.ID
	}
	return ids
}
