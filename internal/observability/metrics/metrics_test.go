package metrics

import (
	"testing"

	"golang-wa-broadcast/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDispatchMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.ObserveBatch(domain.ModeVerify, "ok", 1.5)
	m.ObserveBatch(domain.ModeVerify, "failed", 30)
	m.ObserveRetry(domain.ModeVerify, domain.TransportTimeout)
	m.ObserveOutcomes(domain.ModeSend, []domain.DispatchOutcome{
		{Status: domain.OutcomeSent}, {Status: domain.OutcomeSent}, {Status: domain.OutcomeFailed},
	})
	m.ObserveOperation(domain.ModeSend, "completed")
	m.SetConnectivity(domain.ConnectivityDisconnected)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchesTotal.WithLabelValues("verify", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("verify", "timeout")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("send", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("send", "completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectivity))
}

func TestDispatchMetricsNilSafe(t *testing.T) {
	var m *DispatchMetrics
	m.ObserveBatch(domain.ModeSend, "ok", 0.1)
	m.ObserveRetry(domain.ModeSend, domain.TransportReset)
	m.ObserveOutcomes(domain.ModeSend, []domain.DispatchOutcome{{Status: domain.OutcomeSent}})
	m.ObserveOperation(domain.ModeSend, "abandoned")
	m.SetConnectivity(domain.ConnectivityConnected)
}
