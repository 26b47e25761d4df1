// Package events publishes committed lifecycle transitions (listing booked,
// request assigned, OTP verified, ...) to downstream consumers. Publishing is
// an integration stream for reporting and analytics; the database
// status_events table stays the source of truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// DefaultExchange is the fanout exchange used when none is configured.
const DefaultExchange = "zerohunger.events"

// Publisher delivers status events after the transaction that produced them
// has committed.
type Publisher interface {
	Publish(ctx context.Context, evs ...domain.StatusEvent) error
	Close() error
}

// Nop discards every event. It is the default when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...domain.StatusEvent) error { return nil }
func (Nop) Close() error                                          { return nil }

// channel is the subset of *amqp.Channel used here.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher writes events as JSON to a durable fanout exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// DialAMQP connects to url, opens a channel and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p, err := newAMQPPublisher(ch, exchange)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange}, nil
}

// Publish sends each event as its own persistent message. The routing key is
// "<entity>.<to_status>" so topic-bound consumers can be added later.
func (p *AMQPPublisher) Publish(ctx context.Context, evs ...domain.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range evs {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		ts := ev.CreatedAt
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, ev.Entity+"."+ev.ToStatus, false, false, amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    ev.ID,
			Timestamp:    ts,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("failed to publish event %s: %w", ev.ID, err)
		}
	}
	return nil
}

// Close releases the channel and, when owned, the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
