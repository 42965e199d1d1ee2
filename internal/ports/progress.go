package ports

import (
	"context"

	"golang-wa-broadcast/internal/domain"
)

// ProgressPublisher delivers operation progress to UI-layer subscribers.
type ProgressPublisher interface {
	Publish(ctx context.Context, ev domain.ProgressEvent) error
}

// ProgressConsumer receives progress events published by ProgressPublisher.
type ProgressConsumer interface {
	// Consume blocks until ctx is cancelled or a fatal error occurs.
	Consume(ctx context.Context, handler func(ctx context.Context, ev domain.ProgressEvent) error) error
}
