// Package broker announces issued receipts on RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"bistro/pkg/receipts"
)

const (
	Exchange          = "receipts_topic"
	EventReceiptIssue = "receipt.issued"
)

// Event is the JSON body published for every closed session.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Receipt    receipts.Record `json:"receipt"`
}

// NewEvent wraps an archived receipt.
func NewEvent(rec receipts.Record) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventReceiptIssue,
		OccurredAt: rec.IssuedAt,
		Receipt:    rec,
	}
}

// RoutingKey lets consumers bind per table, e.g. "receipt.issued.table.*".
func RoutingKey(tableID int64) string {
	return fmt.Sprintf("%s.table.%d", EventReceiptIssue, tableID)
}

// Publisher owns one AMQP connection and channel.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects and declares the durable topic exchange.
func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("message broker connection failure: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("message broker channel failure: %w", err)
	}
	if err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

// PublishReceipt sends a persistent receipt.issued message.
func (p *Publisher) PublishReceipt(ctx context.Context, rec receipts.Record) error {
	event := NewEvent(rec)
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(
		ctx,
		Exchange,
		RoutingKey(rec.TableID),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Type:         event.Type,
			Body:         body,
		},
	)
}

// Close releases the channel and the connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) PublishReceipt(context.Context, receipts.Record) error { return nil }
