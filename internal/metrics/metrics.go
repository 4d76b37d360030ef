// Package metrics exposes Prometheus collectors for store operations.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	subscribers *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkbird",
			Name:      "store_operations_total",
			Help:      "Store operations by store, operation and outcome.",
		}, []string{"store", "op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "linkbird",
			Name:      "store_operation_seconds",
			Help:      "Store operation latency including backend round trips.",
			Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"store", "op"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "linkbird",
			Name:      "event_subscribers",
			Help:      "Open event stream subscriptions by topic.",
		}, []string{"topic"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.latency,
		m.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOp records one finished operation.
func (m *Metrics) ObserveOp(store, op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(store, op, outcome).Inc()
	m.latency.WithLabelValues(store, op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) SubscriberAdded(topic string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(topic).Inc()
}

func (m *Metrics) SubscriberRemoved(topic string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(topic).Dec()
}

// WatchListeners exports the subscription count of a store as
// linkbird_store_listeners{store="..."}, sampled at scrape time.
func (m *Metrics) WatchListeners(store string, count func() int) error {
	if m == nil {
		return nil
	}
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "linkbird",
		Name:        "store_listeners",
		Help:        "Active state subscriptions per store.",
		ConstLabels: prometheus.Labels{"store": store},
	}, func() float64 { return float64(count()) })
	if err := m.registry.Register(gauge); err != nil {
		return fmt.Errorf("register listener gauge %s: %w", store, err)
	}
	return nil
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
