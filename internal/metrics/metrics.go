package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "consultorio"

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	BookingsTotal      *prometheus.CounterVec
	CancellationsTotal *prometheus.CounterVec

	SlotsGeneratedTotal prometheus.Counter
	SlotsExpiredTotal   prometheus.Counter

	ReconciledTotal *prometheus.CounterVec
	FallbackPending prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewCollector registers every metric on reg. Tests pass a fresh
// prometheus.NewRegistry() so collectors never collide.
func NewCollector(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"method", "route"}),

		BookingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome (stored, queued, occupied, invalid, error).",
		}, []string{"outcome"}),

		CancellationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome (cancelled, not_found, error).",
		}, []string{"outcome"}),

		SlotsGeneratedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "slots_generated_total",
			Help:      "Slots inserted by calendar generation.",
		}),

		SlotsExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "slots_expired_total",
			Help:      "Slots deleted because their date passed.",
		}),

		ReconciledTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "pending_bookings_total",
			Help:      "Pending offline bookings processed by result (transferred, reconfirmed, conflict).",
		}, []string{"result"}),

		FallbackPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fallback",
			Name:      "pending_bookings",
			Help:      "Bookings waiting in the offline queue. Alert if non-zero for long.",
		}),

		gatherer: reg,
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
