package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the fanout exchange every API instance publishes
// notifications to and consumes them from.
const ExchangeName = "dinetab.notifications"

// amqpChannel is the subset of *amqp.Channel used here.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Broker relays events through RabbitMQ so that clients connected to any
// instance receive them. It is a Sink for the Bus; Consume feeds a local Sink.
// Publishing and consuming use separate channels so that flow control on the
// consumer never stalls Deliver.
type Broker struct {
	conn *amqp.Connection
	pub  amqpChannel
	sub  amqpChannel
}

// DialBroker connects to url and declares the notification exchange.
func DialBroker(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	sub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	b, err := newBroker(pub, sub)
	if err != nil {
		conn.Close()
		return nil, err
	}
	b.conn = conn
	return b, nil
}

func newBroker(pub, sub amqpChannel) (*Broker, error) {
	if err := pub.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Broker{pub: pub, sub: sub}, nil
}

// Deliver publishes e to the fanout exchange.
func (b *Broker) Deliver(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.pub.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Type:         e.Type,
		Body:         body,
	})
}

// Consume binds a private queue to the exchange and hands every event to
// local until ctx is cancelled or the channel closes.
func (b *Broker) Consume(ctx context.Context, local Sink) error {
	q, err := b.sub.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := b.sub.QueueBind(q.Name, "", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := b.sub.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			var e Event
			if err := json.Unmarshal(d.Body, &e); err != nil {
				log.Printf("WARN: discarding malformed notification: %v", err)
				continue
			}
			if err := local.Deliver(ctx, e); err != nil {
				log.Printf("ERROR: relay %s event to room %q: %v", e.Type, e.Room, err)
			}
		}
	}
}

// Close closes both channels and the connection.
func (b *Broker) Close() error {
	if err := b.sub.Close(); err != nil {
		log.Printf("WARN: close amqp consume channel: %v", err)
	}
	if err := b.pub.Close(); err != nil {
		log.Printf("WARN: close amqp publish channel: %v", err)
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
