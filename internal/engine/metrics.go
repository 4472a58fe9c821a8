package engine

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "mcp"
	metricsSubsystem = "engine"
)

// metrics is nil when no registerer was configured; every method is nil-safe.
type metrics struct {
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	inflight        prometheus.Gauge
	notifications   *prometheus.CounterVec
	outboundPending prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "Inbound requests by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent serving inbound requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	inflight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_in_flight",
			Help:      "Inbound requests currently being served.",
		},
	)
	notifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "notifications_total",
			Help:      "Inbound notifications by method.",
		},
		[]string{"method"},
	)
	outboundPending := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "outbound_pending",
			Help:      "Outbound requests awaiting a response.",
		},
	)

	return &metrics{
		requests:        register(reg, requests),
		duration:        register(reg, duration),
		inflight:        register(reg, inflight),
		notifications:   register(reg, notifications),
		outboundPending: register(reg, outboundPending),
	}
}

// register adds c to reg, reusing the collector already registered under the
// same descriptor when several engines share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) requestStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *metrics) requestDone(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.requests.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *metrics) notification(method string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(method).Inc()
}

func (m *metrics) pending(n int) {
	if m == nil {
		return
	}
	m.outboundPending.Set(float64(n))
}
