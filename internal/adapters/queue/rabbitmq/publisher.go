package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher implements ports.ProgressPublisher using a RabbitMQ fanout exchange.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

var _ ports.ProgressPublisher = (*Publisher)(nil)

// NewPublisher dials RabbitMQ and declares the progress exchange.
func NewPublisher(amqpURL string) (*Publisher, error) {
	conn, ch, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch}, nil
}

// Publish serialises a progress event and sends it to every subscriber.
func (p *Publisher) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	msg, err := encodeEvent(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, ExchangeName, "", false, false, msg); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// Close cleanly shuts down the channel and connection.
func (p *Publisher) Close() {
	p.channel.Close()
	p.conn.Close()
}

func encodeEvent(ev domain.ProgressEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    ev.OperationID.String(),
		Type:         string(ev.Mode),
		Timestamp:    at,
		Body:         body,
	}, nil
}
