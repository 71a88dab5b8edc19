package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Event is a single occurrence tickets are sold for. StartsAt is the door
// time used for the "already occurred" check; EndsAt and Capacity are
// optional. UnitsSold mirrors the sum of its categories' sold units and is
// only maintained so the optional Capacity cap can be enforced with one
// conditional update.
type Event struct {
	ID          uint64
	Name        string
	StartsAt    time.Time
	EndsAt      *time.Time
	Capacity    *int
	UnitsSold   int
	MembersOnly bool
	CreatedAt   time.Time
}

// HasStarted reports whether the event's start time is at or before now.
func (e Event) HasStarted(now time.Time) bool {
	return !e.StartsAt.After(now)
}

// SalesLot is a time-boxed sales window of one event ("early bird",
// "general" ...). MaxUnits caps the units sold across all of the lot's
// categories when set.
type SalesLot struct {
	ID        uint64
	EventID   uint64
	Name      string
	StartsAt  time.Time
	EndsAt    time.Time
	Active    bool
	MaxUnits  *int
	UnitsSold int
}

// IsOpen reports whether the lot accepts sales at now: it must be active and
// now must fall inside [StartsAt, EndsAt].
func (l SalesLot) IsOpen(now time.Time) bool {
	if !l.Active {
		return false
	}
	return !now.Before(l.StartsAt) && !now.After(l.EndsAt)
}

// Remaining returns the units still sellable under the lot cap and whether
// the lot is capped at all.
func (l SalesLot) Remaining() (int, bool) {
	if l.MaxUnits == nil {
		return 0, false
	}
	return clampZero(*l.MaxUnits - l.UnitsSold), true
}

// TicketCategory is a priced, quantity-limited ticket type nested under a
// lot. UnitsSold is the contended counter.
type TicketCategory struct {
	ID             uint64
	LotID          uint64
	Name           string
	Price          decimal.Decimal
	MemberPrice    decimal.NullDecimal
	TotalUnits     int
	UnitsSold      int
	MaxPerPurchase int
	Active         bool
}

var (
	ErrMemberPriceAboveStandard = errors.New("member price exceeds standard price")
	ErrNegativePrice            = errors.New("price must not be negative")
	ErrInvalidUnits             = errors.New("units must be positive and sold must not exceed total")
)

// Validate checks the static category invariants.
func (c TicketCategory) Validate() error {
	if c.Price.IsNegative() {
		return ErrNegativePrice
	}
	if c.MemberPrice.Valid {
		if c.MemberPrice.Decimal.IsNegative() {
			return ErrNegativePrice
		}
		if c.MemberPrice.Decimal.GreaterThan(c.Price) {
			return ErrMemberPriceAboveStandard
		}
	}
	if c.TotalUnits < 0 || c.UnitsSold < 0 || c.UnitsSold > c.TotalUnits || c.MaxPerPurchase < 1 {
		return ErrInvalidUnits
	}
	return nil
}

// Remaining is total minus sold, never negative.
func (c TicketCategory) Remaining() int {
	return clampZero(c.TotalUnits - c.UnitsSold)
}

// UnitPrice selects the member price for members when one is defined and the
// standard price otherwise.
func (c TicketCategory) UnitPrice(member bool) decimal.Decimal {
	if member && c.MemberPrice.Valid {
		return c.MemberPrice.Decimal
	}
	return c.Price
}

// CategoryInLot pairs a category with the lot it belongs to; the reservation
// path always needs both.
type CategoryInLot struct {
	Category TicketCategory
	Lot      SalesLot
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
