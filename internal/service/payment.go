package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

var ErrUnknownOutcome = errors.New("unknown payment outcome")

// PaymentService applies payment results reported by the payment
// collaborator. Applying the same result twice changes nothing the second
// time.
type PaymentService struct {
	ledger Ledger
	log    zerolog.Logger
}

func NewPaymentService(ledger Ledger, log zerolog.Logger) *PaymentService {
	return &PaymentService{ledger: ledger, log: log.With().Str("component", "payment").Logger()}
}

// ApplyPayment promotes the order's pending tickets on paid, and cancels
// them and releases their units on failed or expired.
func (s *PaymentService) ApplyPayment(ctx context.Context, orderID string, outcome model.PaymentOutcome) error {
	var (
		n   int
		err error
	)
	switch outcome {
	case model.PaymentPaid:
		n, err = s.ledger.ConfirmOrder(ctx, orderID)
	case model.PaymentFailed, model.PaymentExpired:
		n, err = s.ledger.CancelOrder(ctx, orderID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}
	if errors.Is(err, repository.ErrOrderNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("apply payment", err)
	}
	s.log.Info().Str("order_id", orderID).Str("outcome", string(outcome)).Int("tickets", n).Msg("payment applied")
	return nil
}
