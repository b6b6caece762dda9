// Package metrics records what the dispatcher does with its connections and exposes
// it over HTTP next to a health check and the running version.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transfer outcomes used as the "outcome" label.
const (
	OutcomeComplete    = "complete"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// Metrics holds the collectors of one server. Every server has its own registry so
// that several can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	connectionsTotal prometheus.Counter
	activeWorkers    prometheus.Gauge
	bytesSent        prometheus.Counter
	transfersTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trickle_connections_total",
			Help: "Total number of accepted connections",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trickle_active_workers",
			Help: "Number of connection workers not yet reaped",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trickle_payload_bytes_sent_total",
			Help: "Total number of payload bytes sent",
		}),
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trickle_transfers_total",
				Help: "Total number of finished transfers",
			},
			[]string{"outcome"},
		),
		transferDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trickle_transfer_duration_seconds",
				Help:    "Duration of transfers in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"outcome"},
		),
	}
	m.Registry.MustRegister(
		m.connectionsTotal,
		m.activeWorkers,
		m.bytesSent,
		m.transfersTotal,
		m.transferDuration,
	)
	return m
}

// Accepted records a new connection and its worker.
func (m *Metrics) Accepted() {
	m.connectionsTotal.Inc()
	m.activeWorkers.Inc()
}

// Reaped records a worker that has terminated.
func (m *Metrics) Reaped(outcome string, bytes int64, d time.Duration) {
	m.activeWorkers.Dec()
	m.bytesSent.Add(float64(bytes))
	m.transfersTotal.WithLabelValues(outcome).Inc()
	m.transferDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
