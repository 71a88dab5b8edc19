package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher sends TicketsIssuedEvent messages to a durable queue on the
// default exchange. It dials per publish; sales are rare enough next to
// scans that a pooled channel has not been needed.
type Publisher struct {
	url   string
	queue string
	log   zerolog.Logger
}

func NewPublisher(url, queue string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, log: log.With().Str("component", "publisher").Logger()}
}

// PublishTicketsIssued marshals ev and publishes it as a persistent
// message. Errors are returned for the caller to log; the sale they
// describe is already committed.
func (p *Publisher) PublishTicketsIssued(ctx context.Context, ev TicketsIssuedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return p.publish(ctx, body)
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	p.log.Debug().Str("queue", p.queue).Int("bytes", len(body)).Msg("published")
	return nil
}
