// Package memory is a process-local implementation of the catalog, ledger
// and ticket stores. Every operation runs under one mutex, which gives it
// the same all-or-nothing and single-winner behavior as the MySQL
// repositories. It backs tests and single-node demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Store holds all rows in maps keyed by primary key.
type Store struct {
	mu sync.Mutex

	nextID     uint64
	events     map[uint64]model.Event
	lots       map[uint64]model.SalesLot
	categories map[uint64]model.TicketCategory
	orders     map[string]model.Order
	tickets    map[string]model.Ticket
	byCode     map[string]string
}

func New() *Store {
	return &Store{
		events:     make(map[uint64]model.Event),
		lots:       make(map[uint64]model.SalesLot),
		categories: make(map[uint64]model.TicketCategory),
		orders:     make(map[string]model.Order),
		tickets:    make(map[string]model.Ticket),
		byCode:     make(map[string]string),
	}
}

func (s *Store) id(requested uint64) uint64 {
	if requested != 0 {
		if requested > s.nextID {
			s.nextID = requested
		}
		return requested
	}
	s.nextID++
	return s.nextID
}

// AddEvent stores e, assigning an id when e.ID is zero.
func (s *Store) AddEvent(e model.Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id(e.ID)
	s.events[e.ID] = e
	return e.ID
}

// AddLot stores l, assigning an id when l.ID is zero.
func (s *Store) AddLot(l model.SalesLot) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id(l.ID)
	s.lots[l.ID] = l
	return l.ID
}

// AddCategory stores c, assigning an id when c.ID is zero.
func (s *Store) AddCategory(c model.TicketCategory) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id(c.ID)
	s.categories[c.ID] = c
	return c.ID
}

// SetTicketState overwrites a ticket's state without touching counters.
// It exists to stage states no engine operation produces, such as
// transferred.
func (s *Store) SetTicketState(id string, state model.TicketState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[id]; ok {
		t.State = state
		s.tickets[id] = t
	}
}

// Order returns a stored order.
func (s *Store) Order(id string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *Store) EventByID(_ context.Context, id uint64) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	return e, nil
}

func (s *Store) CategoriesWithLots(_ context.Context, ids []uint64) (map[uint64]model.CategoryInLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]model.CategoryInLot, len(ids))
	for _, id := range ids {
		c, ok := s.categories[id]
		if !ok {
			continue
		}
		l, ok := s.lots[c.LotID]
		if !ok {
			continue
		}
		out[id] = model.CategoryInLot{Category: c, Lot: l}
	}
	return out, nil
}

func (s *Store) CategoryByID(ctx context.Context, id uint64) (model.CategoryInLot, error) {
	found, _ := s.CategoriesWithLots(ctx, []uint64{id})
	cl, ok := found[id]
	if !ok {
		return model.CategoryInLot{}, repository.ErrCategoryNotFound
	}
	return cl, nil
}

func (s *Store) LotsByEvent(_ context.Context, eventID uint64) ([]model.SalesLot, map[uint64][]model.TicketCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lots []model.SalesLot
	cats := make(map[uint64][]model.TicketCategory)
	for _, c := range s.categories {
		l, ok := s.lots[c.LotID]
		if !ok || l.EventID != eventID {
			continue
		}
		cats[l.ID] = append(cats[l.ID], c)
	}
	for id := range cats {
		lots = append(lots, s.lots[id])
		sort.Slice(cats[id], func(i, j int) bool { return cats[id][i].ID < cats[id][j].ID })
	}
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].StartsAt.Equal(lots[j].StartsAt) {
			return lots[i].StartsAt.Before(lots[j].StartsAt)
		}
		return lots[i].ID < lots[j].ID
	})
	return lots, cats, nil
}

// CommitSale checks every cap before touching anything, so a failed commit
// leaves no trace.
func (s *Store) CommitSale(_ context.Context, sale model.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[sale.EventID]
	if !ok || (e.Capacity != nil && e.UnitsSold+sale.TotalQuantity() > *e.Capacity) {
		return &repository.CapacityError{Scope: repository.ScopeEvent, ID: sale.EventID}
	}
	perLot := sale.LotQuantities()
	for _, id := range sortedKeys(perLot) {
		l, ok := s.lots[id]
		if !ok || (l.MaxUnits != nil && l.UnitsSold+perLot[id] > *l.MaxUnits) {
			return &repository.CapacityError{Scope: repository.ScopeLot, ID: id}
		}
	}
	perCategory := make(map[uint64]int, len(sale.Lines))
	for _, line := range sale.Lines {
		perCategory[line.CategoryID] += line.Quantity
	}
	for _, id := range sortedKeys(perCategory) {
		c, ok := s.categories[id]
		if !ok || c.UnitsSold+perCategory[id] > c.TotalUnits {
			return &repository.CapacityError{Scope: repository.ScopeCategory, ID: id}
		}
	}
	if _, dup := s.orders[sale.Order.ID]; dup {
		return repository.ErrConflict
	}
	seen := make(map[string]bool, len(sale.Tickets))
	for _, t := range sale.Tickets {
		_, taken := s.byCode[t.ScanCode]
		_, idTaken := s.tickets[t.ID]
		if taken || idTaken || seen[t.ScanCode] {
			return repository.ErrConflict
		}
		seen[t.ScanCode] = true
	}

	e.UnitsSold += sale.TotalQuantity()
	s.events[e.ID] = e
	for id, n := range perLot {
		l := s.lots[id]
		l.UnitsSold += n
		s.lots[id] = l
	}
	for id, n := range perCategory {
		c := s.categories[id]
		c.UnitsSold += n
		s.categories[id] = c
	}
	order := sale.Order
	order.CreatedAt = stored(order.CreatedAt)
	s.orders[order.ID] = order
	for _, t := range sale.Tickets {
		t.PurchasedAt = stored(t.PurchasedAt)
		s.tickets[t.ID] = t
		s.byCode[t.ScanCode] = t.ID
	}
	return nil
}

func (s *Store) ConfirmOrder(_ context.Context, orderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return 0, repository.ErrOrderNotFound
	}
	n := 0
	for id, t := range s.tickets {
		if t.OrderID == orderID && t.State == model.TicketPending {
			t.State = model.TicketValid
			s.tickets[id] = t
			n++
		}
	}
	if o.Status == model.OrderAwaitingPayment {
		o.Status = model.OrderPaid
		s.orders[orderID] = o
	}
	return n, nil
}

func (s *Store) CancelOrder(_ context.Context, orderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return 0, repository.ErrOrderNotFound
	}
	n := 0
	for id, t := range s.tickets {
		if t.OrderID == orderID && t.State == model.TicketPending {
			t.State = model.TicketCancelled
			s.tickets[id] = t
			s.release(t)
			n++
		}
	}
	if o.Status == model.OrderAwaitingPayment {
		o.Status = model.OrderCancelled
		s.orders[orderID] = o
	}
	return n, nil
}

func (s *Store) CancelTicket(_ context.Context, id string) (model.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, false, repository.ErrTicketNotFound
	}
	switch t.State {
	case model.TicketUsed:
		return s.withCategoryName(t), false, repository.ErrTicketUsed
	case model.TicketCancelled:
		return s.withCategoryName(t), false, nil
	}
	t.State = model.TicketCancelled
	s.tickets[id] = t
	s.release(t)
	return s.withCategoryName(t), true, nil
}

// release gives one ticket's unit back; callers hold mu.
func (s *Store) release(t model.Ticket) {
	if e, ok := s.events[t.EventID]; ok && e.UnitsSold > 0 {
		e.UnitsSold--
		s.events[t.EventID] = e
	}
	if l, ok := s.lots[t.LotID]; ok && l.UnitsSold > 0 {
		l.UnitsSold--
		s.lots[t.LotID] = l
	}
	if c, ok := s.categories[t.CategoryID]; ok && c.UnitsSold > 0 {
		c.UnitsSold--
		s.categories[t.CategoryID] = c
	}
}

func (s *Store) withCategoryName(t model.Ticket) model.Ticket {
	t.CategoryName = s.categories[t.CategoryID].Name
	return t
}

func (s *Store) TicketByScanCode(_ context.Context, code string) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[code]
	if !ok {
		return model.Ticket{}, repository.ErrTicketNotFound
	}
	return s.withCategoryName(s.tickets[id]), nil
}

func (s *Store) TicketByID(_ context.Context, id string) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, repository.ErrTicketNotFound
	}
	return s.withCategoryName(t), nil
}

func (s *Store) TicketsByAccount(_ context.Context, accountID uint64) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ticket
	for _, t := range s.tickets {
		if t.AccountID == accountID {
			out = append(out, s.withCategoryName(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].PurchasedAt.After(out[j].PurchasedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.State != model.TicketValid {
		return false, nil
	}
	t.State = model.TicketUsed
	at = stored(at)
	t.UsedAt = &at
	s.tickets[id] = t
	return true, nil
}

// stored rounds t the way a DATETIME(3) column does.
func stored(t time.Time) time.Time { return t.Round(time.Millisecond) }

// CountTickets counts the non-cancelled tickets of a category.
func (s *Store) CountTickets(categoryID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tickets {
		if t.CategoryID == categoryID && t.State.Counted() {
			n++
		}
	}
	return n
}

func sortedKeys(m map[uint64]int) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
