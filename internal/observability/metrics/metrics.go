package metrics

import (
	"golang-wa-broadcast/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics exposes counters/histograms for batch dispatch flows.
// All observers are no-ops on a nil receiver.
type DispatchMetrics struct {
	batchesTotal    *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	outcomesTotal   *prometheus.CounterVec
	operationsTotal *prometheus.CounterVec
	batchLatency    *prometheus.HistogramVec
	connectivity    prometheus.Gauge
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wa_broadcast",
			Subsystem: "dispatch",
			Name:      "batches_total",
			Help:      "Batches sent to the gateway by final result",
		}, []string{"mode", "result"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wa_broadcast",
			Subsystem: "dispatch",
			Name:      "retries_total",
			Help:      "Batch retries by transport failure kind",
		}, []string{"mode", "kind"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wa_broadcast",
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Per-recipient outcomes folded into reports",
		}, []string{"mode", "status"}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wa_broadcast",
			Subsystem: "dispatch",
			Name:      "operations_total",
			Help:      "Operations by how they ended",
		}, []string{"mode", "result"}),
		batchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wa_broadcast",
			Subsystem: "dispatch",
			Name:      "batch_duration_seconds",
			Help:      "Wall time per batch including retry backoff",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		connectivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wa_broadcast",
			Subsystem: "gateway",
			Name:      "connectivity_state",
			Help:      "Last polled gateway state (0 unknown, 1 connected, 2 disconnected)",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.batchesTotal, m.retriesTotal, m.outcomesTotal, m.operationsTotal, m.batchLatency, m.connectivity)
	return m
}

func (m *DispatchMetrics) ObserveBatch(mode domain.Mode, result string, seconds float64) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(string(mode), result).Inc()
	m.batchLatency.WithLabelValues(string(mode)).Observe(seconds)
}

func (m *DispatchMetrics) ObserveRetry(mode domain.Mode, kind domain.TransportKind) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(string(mode), string(kind)).Inc()
}

func (m *DispatchMetrics) ObserveOutcomes(mode domain.Mode, outcomes []domain.DispatchOutcome) {
	if m == nil {
		return
	}
	for _, o := range outcomes {
		m.outcomesTotal.WithLabelValues(string(mode), string(o.Status)).Inc()
	}
}

func (m *DispatchMetrics) ObserveOperation(mode domain.Mode, result string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(string(mode), result).Inc()
}

func (m *DispatchMetrics) SetConnectivity(state domain.ConnectivityState) {
	if m == nil {
		return
	}
	m.connectivity.Set(float64(state))
}
