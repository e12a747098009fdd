package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const OrderPlacedQueue = "order.placed"

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes events to a durable queue on the default exchange.
type Publisher struct {
	ch Channel
}

// Dial connects to the broker at url and opens a publisher on it. Closing
// the publisher also closes the connection.
func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewPublisher(connChannel{Channel: ch, conn: conn})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// NewPublisher declares the queue so publishing never fails on missing infra.
func NewPublisher(ch Channel) (*Publisher, error) {
	if _, err := ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare %s: %w", OrderPlacedQueue, err)
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) OrderPlaced(ctx context.Context, ev OrderPlaced) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal OrderPlaced: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(
		pubCtx,
		"",               // default exchange
		OrderPlacedQueue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.OrderID,
			Timestamp:    ev.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", OrderPlacedQueue, err)
	}
	return nil
}

// connChannel closes the owning connection together with the channel.
type connChannel struct {
	*amqp.Channel
	conn *amqp.Connection
}

func (c connChannel) Close() error {
	chErr := c.Channel.Close()
	if err := c.conn.Close(); err != nil {
		return err
	}
	return chErr
}
