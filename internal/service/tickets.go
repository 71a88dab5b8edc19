package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// ErrTicketUsed is returned when cancelling a ticket that already admitted
// its holder.
var ErrTicketUsed = errors.New("ticket already used")

// TicketService covers the buyer listing and administrative cancellation.
type TicketService struct {
	tickets TicketStore
	ledger  Ledger
	log     zerolog.Logger
}

func NewTicketService(tickets TicketStore, ledger Ledger, log zerolog.Logger) *TicketService {
	return &TicketService{tickets: tickets, ledger: ledger, log: log.With().Str("component", "tickets").Logger()}
}

// ListMine returns the account's tickets. Validation tokens are blanked.
func (s *TicketService) ListMine(ctx context.Context, accountID uint64) ([]model.Ticket, error) {
	list, err := s.tickets.TicketsByAccount(ctx, accountID)
	if err != nil {
		return nil, unavailable("list tickets", err)
	}
	for i := range list {
		list[i].ValidationToken = ""
	}
	return list, nil
}

// Cancel cancels a ticket that has not been used and returns its unit to
// the ledger. Cancelling twice is not an error.
func (s *TicketService) Cancel(ctx context.Context, ticketID string) (model.Ticket, error) {
	t, changed, err := s.ledger.CancelTicket(ctx, ticketID)
	switch {
	case errors.Is(err, repository.ErrTicketNotFound):
		return model.Ticket{}, ErrNotFound
	case errors.Is(err, repository.ErrTicketUsed):
		return model.Ticket{}, ErrTicketUsed
	case err != nil:
		return model.Ticket{}, unavailable("cancel ticket", err)
	}
	if changed {
		s.log.Info().Str("ticket_id", t.ID).Uint64("category_id", t.CategoryID).Msg("ticket cancelled")
	}
	t.ValidationToken = ""
	return t, nil
}
