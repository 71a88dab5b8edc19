package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

func requireRejection(t *testing.T, err error, code RejectionCode) *Rejection {
	t.Helper()
	rej, ok := AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	require.Equal(t, code, rej.Code, rej.Error())
	return rej
}

func TestPurchase_ConcurrentBuyersNeverOversell(t *testing.T) {
	const (
		total    = 12
		quantity = 3
		buyers   = 10
	)
	f := newFixture(t, categorySeed{name: "Floor", total: total, maxPer: quantity, price: "25.00"})

	var ok, soldOut atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(account uint64) {
			defer wg.Done()
			_, err := f.res.Purchase(context.Background(), f.request(account, f.cat, quantity))
			if err == nil {
				ok.Add(1)
				return
			}
			if rej, isRej := AsRejection(err); isRej && rej.Code == InsufficientInventory {
				soldOut.Add(1)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, int32(total/quantity), ok.Load())
	assert.Equal(t, int32(buyers-total/quantity), soldOut.Load())
	assert.Equal(t, total, f.sold(t, f.cat))
	assert.Equal(t, total, f.store.CountTickets(f.cat))
}

func TestPurchase_LastTwoUnitsScenario(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 2, maxPer: 2, price: "0"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.res.Purchase(context.Background(), f.request(uint64(i+1), f.cat, 1))
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 2, f.sold(t, f.cat))

	_, err := f.res.Purchase(context.Background(), f.request(3, f.cat, 1))
	rej := requireRejection(t, err, InsufficientInventory)
	assert.Contains(t, rej.Message, "General")
	assert.Equal(t, 2, f.sold(t, f.cat))
}

func TestPurchase_AttendeeMismatchLeavesNoTrace(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 10, maxPer: 4, price: "10"})
	req := f.request(1, f.cat, 2)
	req.Selections[0].Attendees = attendees(1)

	_, err := f.res.Purchase(context.Background(), req)
	requireRejection(t, err, AttendeeDataIncomplete)
	assert.Zero(t, f.sold(t, f.cat))
	assert.Zero(t, f.store.CountTickets(f.cat))

	req.Selections[0].Attendees = attendees(2)
	req.Selections[0].Attendees[1].Email = " "
	_, err = f.res.Purchase(context.Background(), req)
	requireRejection(t, err, AttendeeDataIncomplete)
}

func TestPurchase_EndedLotIsClosed(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 10, maxPer: 4, price: "10"})
	f.res.WithClock(func() time.Time { return testNow.Add(48 * time.Hour) })

	_, err := f.res.Purchase(context.Background(), f.request(1, f.cat, 1))
	requireRejection(t, err, LotClosed)
	assert.Zero(t, f.sold(t, f.cat))
}

func TestPurchase_EventChecks(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 10, maxPer: 4, price: "10"})

	req := f.request(1, f.cat, 1)
	req.EventID = 999
	_, err := f.res.Purchase(context.Background(), req)
	requireRejection(t, err, EventNotFound)

	f.res.WithClock(func() time.Time { return testNow.Add(8 * 24 * time.Hour) })
	_, err = f.res.Purchase(context.Background(), f.request(1, f.cat, 1))
	requireRejection(t, err, EventAlreadyOccurred)
}

func TestPurchase_MembersOnlyEvent(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 10, maxPer: 4, price: "10"})
	ev, err := f.store.EventByID(context.Background(), f.event)
	require.NoError(t, err)
	ev.MembersOnly = true
	f.store.AddEvent(ev)

	_, err = f.res.Purchase(context.Background(), f.request(1, f.cat, 1))
	requireRejection(t, err, MembershipRequired)

	req := f.request(1, f.cat, 1)
	req.Buyer.Role = "member"
	_, err = f.res.Purchase(context.Background(), req)
	assert.NoError(t, err)
}

func TestPurchase_SelectionChecks(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 10, maxPer: 2, price: "10"})
	inactive := f.store.AddCategory(model.TicketCategory{LotID: f.lot, Name: "Closed", TotalUnits: 5, MaxPerPurchase: 1})

	_, err := f.res.Purchase(context.Background(), f.request(1, f.cat, 3))
	requireRejection(t, err, PurchaseLimitExceeded)

	_, err = f.res.Purchase(context.Background(), f.request(1, inactive, 1))
	requireRejection(t, err, CategoryInactive)

	_, err = f.res.Purchase(context.Background(), f.request(1, 4242, 1))
	requireRejection(t, err, CategoryInactive)

	_, err = f.res.Purchase(context.Background(), model.PurchaseRequest{EventID: f.event})
	requireRejection(t, err, InvalidRequest)

	req := f.request(1, f.cat, 1)
	req.Selections = append(req.Selections, req.Selections[0])
	_, err = f.res.Purchase(context.Background(), req)
	requireRejection(t, err, InvalidRequest)
}

func TestPurchase_LotCapSpansCategories(t *testing.T) {
	f := newFixture(t, categorySeed{name: "A", total: 10, maxPer: 4, price: "10"})
	lot, err := f.store.CategoryByID(context.Background(), f.cat)
	require.NoError(t, err)
	capped := lot.Lot
	limit := 3
	capped.MaxUnits = &limit
	f.store.AddLot(capped)
	other := f.addCategory(categorySeed{name: "B", total: 10, maxPer: 4, price: "10"})

	req := f.request(1, f.cat, 2)
	req.Selections = append(req.Selections, model.Selection{CategoryID: other, Quantity: 2, Attendees: attendees(2)})
	_, err = f.res.Purchase(context.Background(), req)
	rej := requireRejection(t, err, InsufficientInventory)
	assert.Equal(t, "lot 2", rej.Subject)
	assert.Zero(t, f.sold(t, f.cat))
	assert.Zero(t, f.sold(t, other))
}

func TestPurchase_PaidOrderAwaitsPayment(t *testing.T) {
	f := newFixture(t, categorySeed{name: "VIP", total: 10, maxPer: 4, price: "40.00", member: "30.00"})

	res, err := f.res.Purchase(context.Background(), f.request(7, f.cat, 2))
	require.NoError(t, err)
	assert.True(t, res.PaymentRequired)
	require.NotNil(t, res.Payment)
	assert.Equal(t, "80", res.Payment.Amount.String())
	assert.Equal(t, "USD", res.Payment.Currency)
	assert.Equal(t, res.Order.ID, res.Payment.OrderID)
	assert.Equal(t, testNow.Add(15*time.Minute), res.Payment.ExpiresAt)
	assert.Equal(t, model.OrderAwaitingPayment, res.Order.Status)
	for _, tk := range res.Tickets {
		assert.Equal(t, model.TicketPending, tk.State)
		assert.Equal(t, res.Order.ID, tk.OrderID)
	}
	assert.Len(t, res.TicketIDs(), 2)

	member := f.request(8, f.cat, 1)
	member.Buyer.Role = model.RoleMember
	res, err = f.res.Purchase(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, "30", res.Payment.Amount.String())
}

func TestPurchase_FreeOrderIsValidImmediately(t *testing.T) {
	f := newFixture(t, categorySeed{name: "Guest list", total: 10, maxPer: 4, price: "0.00"})

	res, err := f.res.Purchase(context.Background(), f.request(7, f.cat, 2))
	require.NoError(t, err)
	assert.False(t, res.PaymentRequired)
	assert.Nil(t, res.Payment)
	assert.Equal(t, model.OrderFree, res.Order.Status)
	for _, tk := range res.Tickets {
		assert.Equal(t, model.TicketValid, tk.State)
	}

	require.Len(t, f.pub.msgs, 1)
	msg := f.pub.msgs[0]
	assert.Equal(t, res.Order.ID, msg.OrderID)
	assert.Len(t, msg.Tickets, 2)
	assert.Equal(t, res.Tickets[0].ScanCode, msg.Tickets[0].ScanCode)
}

func TestPurchase_PublishFailureDoesNotFailSale(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 10, maxPer: 4, price: "0"})
	f.pub.err = errors.New("broker down")

	_, err := f.res.Purchase(context.Background(), f.request(1, f.cat, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, f.sold(t, f.cat))
}

// flakyLedger fails the first n commits with a conflict.
type flakyLedger struct {
	Ledger
	failures int
	calls    int
	codes    map[string]bool
}

func (l *flakyLedger) CommitSale(ctx context.Context, sale model.Sale) error {
	l.calls++
	for _, t := range sale.Tickets {
		l.codes[t.ScanCode] = true
	}
	if l.calls <= l.failures {
		return repository.ErrConflict
	}
	return l.Ledger.CommitSale(ctx, sale)
}

func TestPurchase_RetriesConflictsWithFreshCodes(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 10, maxPer: 4, price: "0"})
	flaky := &flakyLedger{Ledger: f.store, failures: 2, codes: map[string]bool{}}
	svc := NewReservationService(f.store, flaky, nil, testEngineConfig(), zerolog.Nop()).WithClock(fixedClock)

	res, err := svc.Purchase(context.Background(), f.request(1, f.cat, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	assert.Len(t, flaky.codes, 3, "every attempt mints new codes")
	assert.True(t, flaky.codes[res.Tickets[0].ScanCode])
}

func TestPurchase_ExhaustedRetriesAreBackendErrors(t *testing.T) {
	f := newFixture(t, categorySeed{name: "General", total: 10, maxPer: 4, price: "0"})
	flaky := &flakyLedger{Ledger: f.store, failures: 5, codes: map[string]bool{}}
	svc := NewReservationService(f.store, flaky, nil, testEngineConfig(), zerolog.Nop()).WithClock(fixedClock)

	_, err := svc.Purchase(context.Background(), f.request(1, f.cat, 1))
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, 3, flaky.calls)
	assert.Zero(t, f.sold(t, f.cat))
}
