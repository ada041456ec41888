// Package rabbitmq publishes task events to a RabbitMQ queue.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/streadway/amqp"

	"github.com/sakif/tasklist/internal/events"
)

var _ events.Publisher = (*Publisher)(nil)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends each event as a persistent JSON message to one durable
// queue through the default exchange.
//
// *amqp.Channel is not safe for concurrent publishing, so every call to
// Publish holds mu.
type Publisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     channel
	queue  string
	logger *slog.Logger
}

// Dial connects to the broker at url and declares queue.
func Dial(url, queue string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: connecting: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: opening channel: %w", err)
	}

	p, err := newPublisher(ch, queue, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, queue string, logger *slog.Logger) (*Publisher, error) {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: declaring queue %s: %w", queue, err)
	}

	logger.Info("rabbitmq publisher ready", slog.String("queue", queue))
	return &Publisher{ch: ch, queue: queue, logger: logger}, nil
}

// Publish marshals e and sends it. ctx is checked once before sending;
// the streadway client itself has no cancellation.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq: encoding event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.Publish(
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         e.Type,
			Timestamp:    e.OccurredAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("rabbitmq: publishing %s: %w", e.Type, err)
	}

	p.logger.Debug("event published",
		slog.String("type", e.Type),
		slog.Int64("taskID", e.TaskID),
	)
	return nil
}

// Close closes the channel and then the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing channel: %w", err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing connection: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	return nil
}
