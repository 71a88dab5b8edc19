package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository/memory"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fixture struct {
	store *memory.Store
	event uint64
	lot   uint64
	cat   uint64
	res   *ReservationService
	val   *ValidationService
	pub   *recordingPublisher
}

type categorySeed struct {
	name   string
	total  int
	maxPer int
	price  string
	member string
}

func newFixture(t *testing.T, seed categorySeed) *fixture {
	t.Helper()
	s := memory.New()
	f := &fixture{store: s, pub: &recordingPublisher{}}
	f.event = s.AddEvent(model.Event{Name: "Summer Fest", StartsAt: testNow.Add(7 * 24 * time.Hour)})
	f.lot = s.AddLot(model.SalesLot{EventID: f.event, Name: "General", Active: true,
		StartsAt: testNow.Add(-24 * time.Hour), EndsAt: testNow.Add(24 * time.Hour)})
	f.cat = f.addCategory(seed)
	f.res = NewReservationService(s, s, f.pub, testEngineConfig(), zerolog.Nop()).WithClock(fixedClock)
	f.val = NewValidationService(s, zerolog.Nop()).WithClock(fixedClock)
	return f
}

func (f *fixture) addCategory(seed categorySeed) uint64 {
	c := model.TicketCategory{LotID: f.lot, Name: seed.name, Price: decimal.RequireFromString(seed.price),
		TotalUnits: seed.total, MaxPerPurchase: seed.maxPer, Active: true}
	if seed.member != "" {
		c.MemberPrice = decimal.NewNullDecimal(decimal.RequireFromString(seed.member))
	}
	return f.store.AddCategory(c)
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		CommitMaxAttempts: 3,
		MembershipRoles:   []string{model.RoleMember},
		PaymentCurrency:   "USD",
		PaymentWindow:     15 * time.Minute,
	}
}

func attendees(n int) []model.Attendee {
	out := make([]model.Attendee, n)
	for i := range out {
		out[i] = model.Attendee{Name: fmt.Sprintf("Guest %d", i+1), IDDocument: fmt.Sprintf("DOC-%d", i+1),
			Email: fmt.Sprintf("guest%d@example.com", i+1)}
	}
	return out
}

func (f *fixture) request(account uint64, cat uint64, qty int) model.PurchaseRequest {
	return model.PurchaseRequest{
		Buyer:      model.Buyer{AccountID: account, Role: model.RoleBuyer},
		EventID:    f.event,
		Selections: []model.Selection{{CategoryID: cat, Quantity: qty, Attendees: attendees(qty)}},
	}
}

func (f *fixture) sold(t *testing.T, cat uint64) int {
	t.Helper()
	cl, err := f.store.CategoryByID(context.Background(), cat)
	require.NoError(t, err)
	return cl.Category.UnitsSold
}

// buyValid purchases one free ticket and returns it.
func (f *fixture) buyValid(t *testing.T) model.Ticket {
	t.Helper()
	res, err := f.res.Purchase(context.Background(), f.request(1, f.cat, 1))
	require.NoError(t, err)
	require.Len(t, res.Tickets, 1)
	require.Equal(t, model.TicketValid, res.Tickets[0].State)
	return res.Tickets[0]
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.TicketsIssuedEvent
	err  error
}

func (p *recordingPublisher) PublishTicketsIssued(_ context.Context, ev queue.TicketsIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, ev)
	return p.err
}
