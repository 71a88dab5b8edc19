package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestSalesLot_IsOpen(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	lot := SalesLot{Active: true, StartsAt: start, EndsAt: end}

	assert.False(t, lot.IsOpen(start.Add(-time.Second)))
	assert.True(t, lot.IsOpen(start))
	assert.True(t, lot.IsOpen(end))
	assert.False(t, lot.IsOpen(end.Add(time.Second)))

	lot.Active = false
	assert.False(t, lot.IsOpen(start.Add(time.Hour)))
}

func TestTicketCategory_Validate(t *testing.T) {
	base := TicketCategory{Price: decimal.NewFromInt(50), TotalUnits: 10, MaxPerPurchase: 2}
	assert.NoError(t, base.Validate())

	member := base
	member.MemberPrice = decimal.NewNullDecimal(decimal.NewFromInt(60))
	assert.ErrorIs(t, member.Validate(), ErrMemberPriceAboveStandard)

	member.MemberPrice = decimal.NewNullDecimal(decimal.NewFromInt(50))
	assert.NoError(t, member.Validate())

	oversold := base
	oversold.UnitsSold = 11
	assert.ErrorIs(t, oversold.Validate(), ErrInvalidUnits)

	noLimit := base
	noLimit.MaxPerPurchase = 0
	assert.ErrorIs(t, noLimit.Validate(), ErrInvalidUnits)
}

func TestTicketCategory_UnitPrice(t *testing.T) {
	c := TicketCategory{Price: decimal.RequireFromString("80.00")}
	assert.True(t, c.UnitPrice(true).Equal(decimal.RequireFromString("80.00")))

	c.MemberPrice = decimal.NewNullDecimal(decimal.RequireFromString("55.50"))
	assert.True(t, c.UnitPrice(true).Equal(decimal.RequireFromString("55.50")))
	assert.True(t, c.UnitPrice(false).Equal(decimal.RequireFromString("80.00")))
}

func TestBuildEventAvailability(t *testing.T) {
	ev := Event{ID: 1, Capacity: intPtr(100), UnitsSold: 95}
	lots := []SalesLot{
		{ID: 10, Name: "early", MaxUnits: intPtr(20), UnitsSold: 15},
		{ID: 11, Name: "general"},
	}
	cats := map[uint64][]TicketCategory{
		10: {{ID: 100, LotID: 10, TotalUnits: 50, UnitsSold: 15, Active: true}},
		11: {
			{ID: 110, LotID: 11, TotalUnits: 80, UnitsSold: 80, Active: true},
			{ID: 111, LotID: 11, TotalUnits: 10, UnitsSold: 0, Active: false},
		},
	}
	got := BuildEventAvailability(ev, lots, cats, func(SalesLot) bool { return true })

	assert.Equal(t, 5, got.Lots[0].Remaining, "lot cap clips category remaining")
	assert.Equal(t, 0, got.Lots[1].Remaining, "inactive categories do not count")
	assert.Equal(t, 10, got.Lots[1].Categories[1].Remaining)
	assert.Equal(t, 5, got.Remaining)

	ev.UnitsSold = 98
	got = BuildEventAvailability(ev, lots, cats, func(SalesLot) bool { return true })
	assert.Equal(t, 2, got.Remaining, "event capacity clips the total")
}

func TestTicketState_Counted(t *testing.T) {
	for _, s := range []TicketState{TicketPending, TicketValid, TicketUsed, TicketTransferred} {
		assert.True(t, s.Counted(), s)
	}
	assert.False(t, TicketCancelled.Counted())
}

func TestNormalizeScanCode(t *testing.T) {
	assert.Equal(t, "EV3-0K1Q1-AB111", NormalizeScanCode("  ev3-ok1q1-abiLl "))
	assert.Equal(t, "EVIL", NormalizeScanCode("evil"))
	assert.Equal(t, "", NormalizeScanCode("   "))
}
