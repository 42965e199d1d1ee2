package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNoValidRecipients   = errors.New("no valid recipients")
	ErrEmptyMessage        = errors.New("message is required")
	ErrUnknownCountry      = errors.New("unknown country")
	ErrInvalidMode         = errors.New("invalid mode")
	ErrGatewayDisconnected = errors.New("gateway disconnected")
	ErrOperationNotFound   = errors.New("operation not found")
)

// TransportKind classifies a failure that happened before a response arrived.
type TransportKind string

const (
	TransportTimeout TransportKind = "timeout" // Local deadline exceeded
	TransportReset   TransportKind = "reset"   // Connection refused, reset or closed early
)

// TransportError is a retryable failure to obtain any response.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx answer or an explicit failure body from the gateway.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// DecodeError is a 2xx body whose shape could not be understood.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode gateway response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRetryable reports whether err warrants one more attempt of the same batch.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValidation reports whether err rejects an operation before any request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoValidRecipients) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrUnknownCountry) ||
		errors.Is(err, ErrInvalidMode)
}
