package ports

import (
	"context"
	"time"

	"golang-wa-broadcast/internal/domain"
)

// BatchRequest is one outbound batch and how to send it.
type BatchRequest struct {
	Mode    domain.Mode
	Batch   domain.Batch
	Extra   map[string]string // Merged into the request body next to "numbers"
	Timeout time.Duration     // Per-attempt deadline

	// OnRetry is called before waiting out the backoff of a retryable failure.
	OnRetry func(err error, wait time.Duration)
}

// BatchSender abstracts the remote gateway's bulk endpoints.
type BatchSender interface {
	// Send transmits one batch with timeout and bounded retry. It never
	// returns an error on its own: failures are carried in the result.
	Send(ctx context.Context, req BatchRequest) domain.BatchResult
}

// GatewayStatus is the gateway's view of its messaging session.
type GatewayStatus struct {
	Success   bool
	Connected bool
}

// StatusChecker reports gateway connectivity.
type StatusChecker interface {
	Status(ctx context.Context) (GatewayStatus, error)
}

// PairingCode is a pending QR pairing challenge. Empty Code means none is pending.
type PairingCode struct {
	Code      string
	ExpiresIn time.Duration
}

// SessionManager exposes the gateway's session endpoints.
type SessionManager interface {
	QR(ctx context.Context) (PairingCode, error)
	Disconnect(ctx context.Context) error
}

// Gateway is the full remote messaging gateway.
type Gateway interface {
	BatchSender
	StatusChecker
	SessionManager
}
