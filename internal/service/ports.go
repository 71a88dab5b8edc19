// Package service holds the reservation and validation engine: purchase
// validation and commit, ticket issuance, the scan state machine,
// availability queries and payment follow-up. Storage is reached through
// the small interfaces below, implemented by the MySQL repositories and by
// the in-memory store.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
)

// Catalog reads events, lots and categories.
type Catalog interface {
	EventByID(ctx context.Context, id uint64) (model.Event, error)
	CategoriesWithLots(ctx context.Context, ids []uint64) (map[uint64]model.CategoryInLot, error)
	CategoryByID(ctx context.Context, id uint64) (model.CategoryInLot, error)
	LotsByEvent(ctx context.Context, eventID uint64) ([]model.SalesLot, map[uint64][]model.TicketCategory, error)
}

// Ledger applies counter changes together with the ticket rows they
// account for.
type Ledger interface {
	CommitSale(ctx context.Context, sale model.Sale) error
	ConfirmOrder(ctx context.Context, orderID string) (int, error)
	CancelOrder(ctx context.Context, orderID string) (int, error)
	CancelTicket(ctx context.Context, id string) (model.Ticket, bool, error)
}

// TicketStore reads tickets and performs the valid to used transition.
type TicketStore interface {
	TicketByScanCode(ctx context.Context, code string) (model.Ticket, error)
	TicketByID(ctx context.Context, id string) (model.Ticket, error)
	TicketsByAccount(ctx context.Context, accountID uint64) ([]model.Ticket, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// IssuedPublisher hands committed sales to the notification side.
type IssuedPublisher interface {
	PublishTicketsIssued(ctx context.Context, ev queue.TicketsIssuedEvent) error
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// ledgerPrecision is the resolution of the DATETIME(3) columns orders and
// tickets are stored with. Timestamps handed back to callers are cut to it
// so they compare equal to what a later read returns.
const ledgerPrecision = time.Millisecond
