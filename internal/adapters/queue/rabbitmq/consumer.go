package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer implements ports.ProgressConsumer with a private queue bound to
// the progress exchange.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *slog.Logger
}

var _ ports.ProgressConsumer = (*Consumer)(nil)

// NewConsumer dials RabbitMQ, declares topology, and returns a Consumer.
func NewConsumer(amqpURL string, log *slog.Logger) (*Consumer, error) {
	conn, ch, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(16, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	queue, err := declareSubscriberQueue(ch)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, channel: ch, queue: queue, log: log}, nil
}

// Consume calls handler for each progress event until ctx is cancelled.
// Events are acknowledged whether or not the handler succeeds; a stale
// progress event is never worth redelivering.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, ev domain.ProgressEvent) error) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		"",    // auto-generated consumer tag
		false, // manual ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}

			ev, err := decodeEvent(d.Body)
			if err != nil {
				c.log.Error("unmarshal progress event", "err", err)
				d.Nack(false, false)
				continue
			}

			if err := handler(ctx, ev); err != nil {
				c.log.Error("progress handler error", "operation_id", ev.OperationID, "err", err)
			}
			d.Ack(false)
		}
	}
}

// Close cleanly shuts down the channel and connection.
func (c *Consumer) Close() {
	c.channel.Close()
	c.conn.Close()
}

func decodeEvent(body []byte) (domain.ProgressEvent, error) {
	var ev domain.ProgressEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("decode progress event: %w", err)
	}
	return ev, nil
}
