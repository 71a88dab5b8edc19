package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// ReservationService validates purchase requests and commits them to the
// ledger as one atomic sale.
type ReservationService struct {
	catalog   Catalog
	ledger    Ledger
	issuer    *Issuer
	publisher IssuedPublisher
	cfg       config.EngineConfig
	log       zerolog.Logger
	now       Clock
}

// NewReservationService wires the engine. publisher may be nil.
func NewReservationService(catalog Catalog, ledger Ledger, publisher IssuedPublisher, cfg config.EngineConfig, log zerolog.Logger) *ReservationService {
	if cfg.CommitMaxAttempts < 1 {
		cfg.CommitMaxAttempts = 1
	}
	return &ReservationService{
		catalog:   catalog,
		ledger:    ledger,
		issuer:    NewIssuer(),
		publisher: publisher,
		cfg:       cfg,
		log:       log.With().Str("component", "reservation").Logger(),
		now:       systemClock,
	}
}

// WithClock replaces the time source.
func (s *ReservationService) WithClock(c Clock) *ReservationService {
	s.now = c
	return s
}

// isMember reports whether the role counts as a membership role.
func (s *ReservationService) isMember(role string) bool {
	return slices.Contains(s.cfg.MembershipRoles, strings.ToUpper(role))
}

// Purchase validates req and commits it. Every validation failure is a
// *Rejection returned before the ledger is touched; a capacity shortfall
// found by the commit itself is also reported as a *Rejection. Ledger
// conflicts are retried with fresh codes up to CommitMaxAttempts.
func (s *ReservationService) Purchase(ctx context.Context, req model.PurchaseRequest) (model.PurchaseResult, error) {
	started := time.Now()
	res, err := s.purchase(ctx, req)
	outcome := "ok"
	if rej, ok := AsRejection(err); ok {
		outcome = string(rej.Code)
	} else if err != nil {
		outcome = "error"
	}
	metrics.ObservePurchase(outcome, time.Since(started))
	return res, err
}

func (s *ReservationService) purchase(ctx context.Context, req model.PurchaseRequest) (model.PurchaseResult, error) {
	now := s.now().Truncate(ledgerPrecision)
	member := s.isMember(req.Buyer.Role)

	if err := checkShape(req); err != nil {
		return model.PurchaseResult{}, err
	}

	ev, err := s.catalog.EventByID(ctx, req.EventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return model.PurchaseResult{}, reject(EventNotFound, fmt.Sprintf("event %d", req.EventID), "event does not exist")
	}
	if err != nil {
		return model.PurchaseResult{}, unavailable("load event", err)
	}
	if ev.HasStarted(now) {
		return model.PurchaseResult{}, reject(EventAlreadyOccurred, fmt.Sprintf("event %d", ev.ID), "event started at %s", ev.StartsAt.Format(time.RFC3339))
	}
	if ev.MembersOnly && !member {
		return model.PurchaseResult{}, reject(MembershipRequired, fmt.Sprintf("event %d", ev.ID), "event is restricted to members")
	}

	ids := make([]uint64, len(req.Selections))
	for i, sel := range req.Selections {
		ids[i] = sel.CategoryID
	}
	found, err := s.catalog.CategoriesWithLots(ctx, ids)
	if err != nil {
		return model.PurchaseResult{}, unavailable("load categories", err)
	}

	// Remaining units and lot caps are checked by the commit's conditional
	// increments, not here.
	for _, sel := range req.Selections {
		cl, ok := found[sel.CategoryID]
		subject := fmt.Sprintf("category %d", sel.CategoryID)
		if !ok || cl.Lot.EventID != ev.ID {
			return model.PurchaseResult{}, reject(CategoryInactive, subject, "category is not on sale for this event")
		}
		if !cl.Category.Active {
			return model.PurchaseResult{}, reject(CategoryInactive, subject, "category %q is inactive", cl.Category.Name)
		}
		if !cl.Lot.IsOpen(now) {
			return model.PurchaseResult{}, reject(LotClosed, fmt.Sprintf("lot %d", cl.Lot.ID), "lot %q is not open for sales", cl.Lot.Name)
		}
		if sel.Quantity > cl.Category.MaxPerPurchase {
			return model.PurchaseResult{}, reject(PurchaseLimitExceeded, subject, "at most %d per purchase", cl.Category.MaxPerPurchase)
		}
		if err := checkAttendees(sel); err != nil {
			return model.PurchaseResult{}, err
		}
	}

	draft := s.draft(req, ev, found, member, now)

	var sale model.Sale
	for attempt := 1; ; attempt++ {
		sale, err = s.mint(draft)
		if err != nil {
			return model.PurchaseResult{}, err
		}
		err = s.ledger.CommitSale(ctx, sale)
		if err == nil {
			break
		}
		var ce *repository.CapacityError
		if errors.As(err, &ce) {
			return model.PurchaseResult{}, capacityRejection(ce, found)
		}
		if errors.Is(err, repository.ErrConflict) && attempt < s.cfg.CommitMaxAttempts {
			metrics.CommitRetried()
			s.log.Debug().Err(err).Int("attempt", attempt).Uint64("event_id", ev.ID).Msg("commit conflict, retrying")
			continue
		}
		return model.PurchaseResult{}, unavailable("commit sale", err)
	}

	result := model.PurchaseResult{Order: sale.Order, Tickets: sale.Tickets}
	if sale.Order.Status == model.OrderAwaitingPayment {
		result.PaymentRequired = true
		result.Payment = &model.PaymentInitiation{
			OrderID:     sale.Order.ID,
			AccountID:   sale.Order.AccountID,
			EventID:     ev.ID,
			Amount:      sale.Order.Total,
			Currency:    sale.Order.Currency,
			Description: fmt.Sprintf("%d ticket(s) for %s", len(sale.Tickets), ev.Name),
			ExpiresAt:   now.Add(s.cfg.PaymentWindow),
		}
	}
	s.log.Info().Str("order_id", sale.Order.ID).Uint64("event_id", ev.ID).Uint64("account_id", req.Buyer.AccountID).
		Int("tickets", len(sale.Tickets)).Str("total", sale.Order.Total.StringFixed(2)).Msg("sale committed")
	s.notify(ctx, ev, result)
	return result, nil
}

// checkShape rejects requests that are malformed regardless of catalog
// state.
func checkShape(req model.PurchaseRequest) error {
	if len(req.Selections) == 0 {
		return reject(InvalidRequest, "", "no selections")
	}
	seen := map[uint64]bool{}
	for _, sel := range req.Selections {
		subject := fmt.Sprintf("category %d", sel.CategoryID)
		if sel.Quantity < 1 {
			return reject(InvalidRequest, subject, "quantity must be positive")
		}
		if seen[sel.CategoryID] {
			return reject(InvalidRequest, subject, "category selected twice")
		}
		seen[sel.CategoryID] = true
	}
	return nil
}

func checkAttendees(sel model.Selection) error {
	subject := fmt.Sprintf("category %d", sel.CategoryID)
	if len(sel.Attendees) != sel.Quantity {
		return reject(AttendeeDataIncomplete, subject, "%d attendees for %d tickets", len(sel.Attendees), sel.Quantity)
	}
	for i, a := range sel.Attendees {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.IDDocument) == "" || strings.TrimSpace(a.Email) == "" {
			return reject(AttendeeDataIncomplete, subject, "attendee %d is missing name, document or email", i+1)
		}
	}
	return nil
}

// draft is a sale without ticket identities; each commit attempt mints
// fresh ones.
func (s *ReservationService) draft(req model.PurchaseRequest, ev model.Event, found map[uint64]model.CategoryInLot, member bool, now time.Time) model.Sale {
	order := model.Order{
		AccountID: req.Buyer.AccountID,
		EventID:   ev.ID,
		Currency:  s.cfg.PaymentCurrency,
		CreatedAt: now,
	}
	var lines []model.SaleLine
	var tickets []model.Ticket
	total := decimal.Zero
	for _, sel := range req.Selections {
		cl := found[sel.CategoryID]
		price := cl.Category.UnitPrice(member)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(sel.Quantity))))
		lines = append(lines, model.SaleLine{CategoryID: cl.Category.ID, LotID: cl.Lot.ID, Quantity: sel.Quantity})
		for _, a := range sel.Attendees {
			tickets = append(tickets, model.Ticket{
				EventID:          ev.ID,
				LotID:            cl.Lot.ID,
				CategoryID:       cl.Category.ID,
				CategoryName:     cl.Category.Name,
				AccountID:        req.Buyer.AccountID,
				AttendeeName:     strings.TrimSpace(a.Name),
				AttendeeDocument: strings.TrimSpace(a.IDDocument),
				AttendeeEmail:    strings.ToLower(strings.TrimSpace(a.Email)),
				AttendeePhone:    a.Phone,
				Price:            price,
				PurchasedAt:      now,
				Notes:            req.Notes,
			})
		}
	}
	order.Total = total
	state := model.TicketPending
	order.Status = model.OrderAwaitingPayment
	if total.IsZero() {
		state = model.TicketValid
		order.Status = model.OrderFree
	}
	for i := range tickets {
		tickets[i].State = state
	}
	return model.Sale{EventID: ev.ID, Order: order, Lines: lines, Tickets: tickets}
}

func (s *ReservationService) mint(draft model.Sale) (model.Sale, error) {
	sale := draft
	sale.Order.ID = uuid.NewString()
	sale.Tickets = make([]model.Ticket, len(draft.Tickets))
	for i, t := range draft.Tickets {
		t.OrderID = sale.Order.ID
		minted, err := s.issuer.Mint(t)
		if err != nil {
			return model.Sale{}, err
		}
		sale.Tickets[i] = minted
	}
	return sale, nil
}

func capacityRejection(ce *repository.CapacityError, found map[uint64]model.CategoryInLot) *Rejection {
	subject := fmt.Sprintf("%s %d", ce.Scope, ce.ID)
	switch ce.Scope {
	case repository.ScopeCategory:
		if cl, ok := found[ce.ID]; ok {
			return reject(InsufficientInventory, subject, "category %q sold out", cl.Category.Name)
		}
	case repository.ScopeLot:
		for _, cl := range found {
			if cl.Lot.ID == ce.ID {
				return reject(InsufficientInventory, subject, "lot %q sold out", cl.Lot.Name)
			}
		}
	case repository.ScopeEvent:
		return reject(InsufficientInventory, subject, "event capacity reached")
	}
	return reject(InsufficientInventory, subject, "sold out")
}

func (s *ReservationService) notify(ctx context.Context, ev model.Event, res model.PurchaseResult) {
	if s.publisher == nil {
		return
	}
	msg := queue.TicketsIssuedEvent{
		OrderID:         res.Order.ID,
		AccountID:       res.Order.AccountID,
		EventID:         ev.ID,
		EventName:       ev.Name,
		PaymentRequired: res.PaymentRequired,
		IssuedAt:        res.Order.CreatedAt,
	}
	for _, t := range res.Tickets {
		msg.Tickets = append(msg.Tickets, queue.IssuedTicket{
			TicketID:      t.ID,
			ScanCode:      t.ScanCode,
			CategoryName:  t.CategoryName,
			AttendeeName:  t.AttendeeName,
			AttendeeEmail: t.AttendeeEmail,
		})
	}
	if err := s.publisher.PublishTicketsIssued(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("order_id", res.Order.ID).Msg("tickets.issued publish failed")
	}
}
