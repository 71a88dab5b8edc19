// Package queue defines the messages exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import (
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketsIssuedEvent is published after a sale commits. It carries enough
// for the notification side to send tickets without querying the ledger.
// Validation tokens are never included.
type TicketsIssuedEvent struct {
	OrderID         string         `json:"order_id"`
	AccountID       uint64         `json:"account_id"`
	EventID         uint64         `json:"event_id"`
	EventName       string         `json:"event_name"`
	PaymentRequired bool           `json:"payment_required"`
	Tickets         []IssuedTicket `json:"tickets"`
	IssuedAt        time.Time      `json:"issued_at"`
}

// IssuedTicket is one ticket of a TicketsIssuedEvent.
type IssuedTicket struct {
	TicketID      string `json:"ticket_id"`
	ScanCode      string `json:"scan_code"`
	CategoryName  string `json:"category_name"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
}

// PaymentEvent is consumed from the payment collaborator.
type PaymentEvent struct {
	OrderID string               `json:"order_id"`
	Status  model.PaymentOutcome `json:"status"`
}

var ErrMalformedPayment = errors.New("malformed payment event")

// Validate checks the fields the consumer relies on.
func (e PaymentEvent) Validate() error {
	if e.OrderID == "" {
		return errors.Join(ErrMalformedPayment, errors.New("order_id is empty"))
	}
	switch e.Status {
	case model.PaymentPaid, model.PaymentFailed, model.PaymentExpired:
		return nil
	}
	return errors.Join(ErrMalformedPayment, errors.New("unknown status "+string(e.Status)))
}
