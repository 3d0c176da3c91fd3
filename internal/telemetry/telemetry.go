// Package telemetry implements the Prometheus exporter collaborator
// named in SPEC_FULL.md §6.5: a pull-based counter/histogram/gauge set
// the driver updates on every Finalize step. Grounded on
// Generativebots-ocx-backend-go-svc's internal/escrow.Metrics —
// promauto-registered CounterVec/HistogramVec/GaugeVec fields plus one
// Record* method per event this package's callers care about.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every exported gauge/counter/histogram for one process.
type Metrics struct {
	InvocationsTotal    *prometheus.CounterVec
	InvocationLatency   *prometheus.HistogramVec
	QuotaUtilization    prometheus.Gauge
	SessionFramesTotal  *prometheus.CounterVec
	LockchainLength     prometheus.Gauge
}

// NewMetrics registers every metric against the default registry and
// returns the handle drivers call into.
func NewMetrics() *Metrics {
	return &Metrics{
		InvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autonomic_invocations_total",
				Help: "Total invocations handled by the Autonomic Driver, labeled by verb path and exit status.",
			},
			[]string{"verb_path", "status"},
		),
		InvocationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autonomic_invocation_latency_seconds",
				Help:    "Invocation latency from Admit to Respond, labeled by resource band.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource_band"},
		),
		QuotaUtilization: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "autonomic_quota_utilization_percent",
				Help: "Current quota bucket utilization across all axes, averaged.",
			},
		),
		SessionFramesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autonomic_session_frames_total",
				Help: "Total frames yielded across all sessions, labeled by stream.",
			},
			[]string{"stream"},
		),
		LockchainLength: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "autonomic_lockchain_length",
				Help: "Current number of entries in the process-wide Lockchain.",
			},
		),
	}
}

// RecordInvocation records one completed invocation's exit status and
// latency, called from the driver's Finalize step.
func (m *Metrics) RecordInvocation(verbPath, status, resourceBand string, latencySeconds float64) {
	m.InvocationsTotal.WithLabelValues(verbPath, status).Inc()
	m.InvocationLatency.WithLabelValues(resourceBand).Observe(latencySeconds)
}

// RecordFrame records one session frame emission.
func (m *Metrics) RecordFrame(stream string) {
	m.SessionFramesTotal.WithLabelValues(stream).Inc()
}

// SetQuotaUtilization publishes the current bucket-wide utilization
// percentage.
func (m *Metrics) SetQuotaUtilization(percent float64) {
	m.QuotaUtilization.Set(percent)
}

// SetLockchainLength publishes the current chain length.
func (m *Metrics) SetLockchainLength(n int) {
	m.LockchainLength.Set(float64(n))
}

// Handler returns the standard /metrics HTTP handler for the default
// Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
