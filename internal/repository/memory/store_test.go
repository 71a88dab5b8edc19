package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

func seed(t *testing.T, total int) (*Store, uint64, uint64, uint64) {
	t.Helper()
	s := New()
	now := time.Now()
	ev := s.AddEvent(model.Event{Name: "Show", StartsAt: now.Add(24 * time.Hour)})
	lot := s.AddLot(model.SalesLot{EventID: ev, Name: "General", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Active: true})
	cat := s.AddCategory(model.TicketCategory{LotID: lot, Name: "Standard", Price: decimal.NewFromInt(10), TotalUnits: total, MaxPerPurchase: 4, Active: true})
	return s, ev, lot, cat
}

func sale(ev, lot, cat uint64, order string, codes ...string) model.Sale {
	out := model.Sale{EventID: ev, Order: model.Order{ID: order, EventID: ev, Status: model.OrderAwaitingPayment}}
	out.Lines = []model.SaleLine{{CategoryID: cat, LotID: lot, Quantity: len(codes)}}
	for _, c := range codes {
		out.Tickets = append(out.Tickets, model.Ticket{ID: order + c, OrderID: order, EventID: ev, LotID: lot,
			CategoryID: cat, ScanCode: c, State: model.TicketPending})
	}
	return out
}

func TestCommitSale_RejectsWithoutPartialWrites(t *testing.T) {
	s, ev, lot, cat := seed(t, 2)
	ctx := context.Background()

	require.NoError(t, s.CommitSale(ctx, sale(ev, lot, cat, "o1", "A")))
	err := s.CommitSale(ctx, sale(ev, lot, cat, "o2", "B", "C"))
	var ce *repository.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, repository.ScopeCategory, ce.Scope)

	cl, err := s.CategoryByID(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, 1, cl.Category.UnitsSold)
	assert.Equal(t, 1, cl.Lot.UnitsSold)
	_, ok := s.Order("o2")
	assert.False(t, ok)
	_, err = s.TicketByScanCode(ctx, "B")
	assert.ErrorIs(t, err, repository.ErrTicketNotFound)
}

func TestCommitSale_DuplicateCodeIsConflict(t *testing.T) {
	s, ev, lot, cat := seed(t, 5)
	ctx := context.Background()
	require.NoError(t, s.CommitSale(ctx, sale(ev, lot, cat, "o1", "A")))
	assert.ErrorIs(t, s.CommitSale(ctx, sale(ev, lot, cat, "o2", "A")), repository.ErrConflict)
}

func TestCancelOrder_ReleasesPendingUnits(t *testing.T) {
	s, ev, lot, cat := seed(t, 5)
	ctx := context.Background()
	require.NoError(t, s.CommitSale(ctx, sale(ev, lot, cat, "o1", "A", "B")))

	n, err := s.CancelOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CancelOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Zero(t, n)

	cl, _ := s.CategoryByID(ctx, cat)
	assert.Zero(t, cl.Category.UnitsSold)
	assert.Zero(t, s.CountTickets(cat))
	o, _ := s.Order("o1")
	assert.Equal(t, model.OrderCancelled, o.Status)
}

func TestMarkUsed_SingleWinner(t *testing.T) {
	s, ev, lot, cat := seed(t, 5)
	ctx := context.Background()
	require.NoError(t, s.CommitSale(ctx, sale(ev, lot, cat, "o1", "A")))
	_, err := s.ConfirmOrder(ctx, "o1")
	require.NoError(t, err)

	at := time.Now()
	won, err := s.MarkUsed(ctx, "o1A", at)
	require.NoError(t, err)
	assert.True(t, won)
	won, _ = s.MarkUsed(ctx, "o1A", at.Add(time.Second))
	assert.False(t, won)

	tk, err := s.TicketByID(ctx, "o1A")
	require.NoError(t, err)
	assert.Equal(t, model.TicketUsed, tk.State)
	assert.True(t, at.Equal(*tk.UsedAt))
	assert.Equal(t, "Standard", tk.CategoryName)

	_, _, err = s.CancelTicket(ctx, "o1A")
	assert.ErrorIs(t, err, repository.ErrTicketUsed)
}
