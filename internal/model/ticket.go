package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketState is the lifecycle state persisted on a ticket row.
type TicketState string

const (
	TicketPending     TicketState = "pending"
	TicketValid       TicketState = "valid"
	TicketUsed        TicketState = "used"
	TicketCancelled   TicketState = "cancelled"
	TicketTransferred TicketState = "transferred"
)

// Counted reports whether a ticket in this state holds a unit of inventory.
// Only cancellation gives the unit back.
func (s TicketState) Counted() bool {
	return s != TicketCancelled
}

// Ticket is one admission unit. ScanCode is public and printable;
// ValidationToken is a secret that never leaves the server except through
// the issuance record itself.
type Ticket struct {
	ID               string
	OrderID          string
	EventID          uint64
	LotID            uint64
	CategoryID       uint64
	CategoryName     string
	AccountID        uint64
	AttendeeName     string
	AttendeeDocument string
	AttendeeEmail    string
	AttendeePhone    *string
	ScanCode         string
	ValidationToken  string
	State            TicketState
	Price            decimal.Decimal
	PurchasedAt      time.Time
	UsedAt           *time.Time
	Notes            string
}

// OrderStatus tracks the payment side of a committed sale.
type OrderStatus string

const (
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderFree            OrderStatus = "free"
	OrderCancelled       OrderStatus = "cancelled"
)

// Order groups the tickets committed by one purchase request.
type Order struct {
	ID        string
	AccountID uint64
	EventID   uint64
	Total     decimal.Decimal
	Currency  string
	Status    OrderStatus
	CreatedAt time.Time
}

// PaymentOutcome is the status reported by the payment collaborator for an
// order.
type PaymentOutcome string

const (
	PaymentPaid    PaymentOutcome = "paid"
	PaymentFailed  PaymentOutcome = "failed"
	PaymentExpired PaymentOutcome = "expired"
)
