package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	queueBookingCommitted = "booking.committed"
	queueBookingCancelled = "booking.cancelled"
)

// AMQPPublisher publishes events to durable RabbitMQ queues on the default
// exchange. Messages are persistent so they survive broker restarts.
type AMQPPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// NewAMQPPublisher dials the broker and declares the queues it publishes to.
func NewAMQPPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	for _, queue := range []string{queueBookingCommitted, queueBookingCancelled} {
		if _, err := channel.QueueDeclare(
			queue,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("events: declare queue %s: %w", queue, err)
		}
	}

	return &AMQPPublisher{conn: conn, channel: channel, logger: logger}, nil
}

// PublishBookingCommitted implements Publisher.
func (p *AMQPPublisher) PublishBookingCommitted(ctx context.Context, event BookingCommitted) error {
	return p.publish(ctx, queueBookingCommitted, event)
}

// PublishBookingCancelled implements Publisher.
func (p *AMQPPublisher) PublishBookingCancelled(ctx context.Context, event BookingCancelled) error {
	return p.publish(ctx, queueBookingCancelled, event)
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", queue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("event publish failed", "queue", queue, "error", err)
		return fmt.Errorf("events: publish %s: %w", queue, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
