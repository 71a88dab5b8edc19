package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// ValidationService is the door-side state machine. The only mutation it
// performs is the conditional valid to used transition in the store; all
// other branches are reads.
type ValidationService struct {
	tickets TicketStore
	log     zerolog.Logger
	now     Clock
}

func NewValidationService(tickets TicketStore, log zerolog.Logger) *ValidationService {
	return &ValidationService{
		tickets: tickets,
		log:     log.With().Str("component", "validation").Logger(),
		now:     systemClock,
	}
}

// WithClock replaces the time source.
func (s *ValidationService) WithClock(c Clock) *ValidationService {
	s.now = c
	return s
}

// Scan classifies a scanned code for the device's event and admits the
// holder when the ticket is valid.
//
// The returned error is non-nil only when the store could not be reached,
// and then wraps ErrBackendUnavailable.
func (s *ValidationService) Scan(ctx context.Context, req model.ScanRequest) (model.ScanOutcome, error) {
	out, err := s.scan(ctx, req)
	if err != nil {
		metrics.ObserveScan("error")
		s.log.Error().Err(err).Str("scan_code", req.ScanCode).Uint64("event_id", req.EventID).Msg("scan failed")
		return model.ScanOutcome{}, err
	}
	metrics.ObserveScan(string(out.Result))
	s.log.Info().Str("scan_code", req.ScanCode).Uint64("event_id", req.EventID).
		Str("result", string(out.Result)).Str("ticket_id", out.TicketID).Msg("scan")
	return out, nil
}

func (s *ValidationService) scan(ctx context.Context, req model.ScanRequest) (model.ScanOutcome, error) {
	code := model.NormalizeScanCode(req.ScanCode)
	if code == "" {
		return model.ScanOutcome{Result: model.ScanNotFound}, nil
	}
	t, err := s.tickets.TicketByScanCode(ctx, code)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return model.ScanOutcome{Result: model.ScanNotFound}, nil
	}
	if err != nil {
		return model.ScanOutcome{}, unavailable("lookup ticket", err)
	}
	if t.EventID != req.EventID {
		return model.ScanOutcome{Result: model.ScanWrongEvent}, nil
	}
	if t.State != model.TicketValid {
		return classify(t), nil
	}

	at := s.now().Truncate(ledgerPrecision)
	won, err := s.tickets.MarkUsed(ctx, t.ID, at)
	if err != nil {
		return model.ScanOutcome{}, unavailable("mark used", err)
	}
	if won {
		out := describe(t, model.ScanAdmitted)
		out.UsedAt = &at
		return out, nil
	}

	// Another scan got there first, or the ticket changed state in between.
	// Report whatever the row says now.
	t, err = s.tickets.TicketByID(ctx, t.ID)
	if err != nil {
		return model.ScanOutcome{}, unavailable("reload ticket", err)
	}
	if t.State == model.TicketValid {
		// MarkUsed only loses to a transition away from valid.
		return model.ScanOutcome{}, unavailable("mark used", errors.New("ticket still valid after lost transition"))
	}
	return classify(t), nil
}

// classify maps a ticket that is not valid to its scan result.
func classify(t model.Ticket) model.ScanOutcome {
	switch t.State {
	case model.TicketUsed:
		out := describe(t, model.ScanAlreadyUsed)
		out.UsedAt = t.UsedAt
		return out
	case model.TicketPending:
		return model.ScanOutcome{Result: model.ScanNotYetValid, TicketID: t.ID}
	default:
		// cancelled, and transferred: the holder of this code no longer owns
		// the admission.
		return model.ScanOutcome{Result: model.ScanCancelled, TicketID: t.ID}
	}
}

func describe(t model.Ticket, r model.ScanResult) model.ScanOutcome {
	return model.ScanOutcome{
		Result:       r,
		TicketID:     t.ID,
		AttendeeName: t.AttendeeName,
		IDDocument:   t.AttendeeDocument,
		CategoryName: t.CategoryName,
	}
}
