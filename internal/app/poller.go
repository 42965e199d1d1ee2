package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/observability/metrics"
	"golang-wa-broadcast/internal/ports"
)

const defaultPollInterval = 10 * time.Second

// StatusPoller tracks gateway connectivity. It is the only writer of the
// state; everything else reads it through State.
type StatusPoller struct {
	checker  ports.StatusChecker
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.DispatchMetrics
	state    atomic.Int32
}

var _ ConnectivityGate = (*StatusPoller)(nil)

// NewStatusPoller creates a poller in the Unknown state.
func NewStatusPoller(checker ports.StatusChecker, interval time.Duration, log *slog.Logger, m *metrics.DispatchMetrics) *StatusPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &StatusPoller{checker: checker, interval: interval, log: log, metrics: m}
}

// State returns the last known connectivity.
func (p *StatusPoller) State() domain.ConnectivityState {
	return domain.ConnectivityState(p.state.Load())
}

// Poll queries the gateway once and returns the resulting state. A reply
// that does not report success leaves the state untouched; a transport or
// remote failure means the gateway is unreachable.
func (p *StatusPoller) Poll(ctx context.Context) domain.ConnectivityState {
	st, err := p.checker.Status(ctx)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return p.State()
		}
		p.log.Debug("gateway status check failed", "err", err)
		p.set(domain.ConnectivityDisconnected)
	case !st.Success:
	case st.Connected:
		p.set(domain.ConnectivityConnected)
	default:
		p.set(domain.ConnectivityDisconnected)
	}
	return p.State()
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *StatusPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

func (p *StatusPoller) set(next domain.ConnectivityState) {
	prev := domain.ConnectivityState(p.state.Swap(int32(next)))
	p.metrics.SetConnectivity(next)
	if prev != next {
		p.log.Info("gateway connectivity changed", "from", prev, "to", next)
	}
}
