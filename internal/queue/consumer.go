package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// PaymentApplier applies a payment result to an order.
type PaymentApplier interface {
	ApplyPayment(ctx context.Context, orderID string, outcome model.PaymentOutcome) error
}

// Disposition is what the consumer does with a delivery after handling it.
type Disposition int

const (
	Ack Disposition = iota
	// Drop nacks without requeue.
	Drop
	// Requeue nacks with requeue.
	Requeue
)

// PaymentConsumer reads PaymentEvent messages and applies them.
type PaymentConsumer struct {
	url      string
	queue    string
	applier  PaymentApplier
	isFinal  func(error) bool
	log      zerolog.Logger
	prefetch int
}

// NewPaymentConsumer builds a consumer. isFinal reports application errors
// that will never succeed on redelivery (an unknown order, say); those
// messages are acked and logged instead of requeued.
func NewPaymentConsumer(url, queue string, applier PaymentApplier, isFinal func(error) bool, log zerolog.Logger) *PaymentConsumer {
	if isFinal == nil {
		isFinal = func(error) bool { return false }
	}
	return &PaymentConsumer{
		url:      url,
		queue:    queue,
		applier:  applier,
		isFinal:  isFinal,
		log:      log.With().Str("component", "payment-consumer").Logger(),
		prefetch: 50,
	}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff capped at 30s.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *PaymentConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch c.Handle(ctx, d.Body) {
			case Ack:
				_ = d.Ack(false)
			case Drop:
				_ = d.Nack(false, false)
			case Requeue:
				_ = d.Nack(false, true)
			}
		}
	}
}

// Handle decodes and applies one message body.
func (c *PaymentConsumer) Handle(ctx context.Context, body []byte) Disposition {
	var ev PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.log.Error().Err(err).Msg("undecodable payment event dropped")
		return Drop
	}
	if err := ev.Validate(); err != nil {
		c.log.Error().Err(err).Str("order_id", ev.OrderID).Msg("invalid payment event dropped")
		return Drop
	}
	err := c.applier.ApplyPayment(ctx, ev.OrderID, ev.Status)
	switch {
	case err == nil:
		return Ack
	case c.isFinal(err):
		c.log.Warn().Err(err).Str("order_id", ev.OrderID).Msg("payment event not applicable")
		return Ack
	default:
		c.log.Error().Err(err).Str("order_id", ev.OrderID).Msg("payment event failed, requeueing")
		return Requeue
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
