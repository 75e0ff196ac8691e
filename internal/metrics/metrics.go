// Package metrics exports engine dispatch outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "atomgraph"

// Collector implements engine.Metrics with Prometheus vectors labelled by
// event type.
type Collector struct {
	dispatches *prometheus.CounterVec
	errors     *prometheus.CounterVec
	changed    *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Committed dispatches by event type.",
			},
			[]string{"type"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_errors_total",
				Help:      "Failed dispatches by event type.",
			},
			[]string{"type"},
		),
		changed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "changed_nodes",
				Help:      "Number of changed node ids per committed dispatch.",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
			},
			[]string{"type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time to walk the tree and commit one dispatch.",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"type"},
		),
	}

	for _, col := range []prometheus.Collector{c.dispatches, c.errors, c.changed, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveDispatch records one committed dispatch.
func (c *Collector) ObserveDispatch(eventType string, changed int, d time.Duration) {
	c.dispatches.WithLabelValues(eventType).Inc()
	c.changed.WithLabelValues(eventType).Observe(float64(changed))
	c.duration.WithLabelValues(eventType).Observe(d.Seconds())
}

// ObserveError records one failed dispatch.
func (c *Collector) ObserveError(eventType string) {
	c.errors.WithLabelValues(eventType).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
