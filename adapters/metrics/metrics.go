// Package metrics provides Prometheus metrics collection for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ritan"

// Collector holds all Prometheus metrics for the gateway.
// All recording methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Admission metrics
	AdmissionDenials *prometheus.CounterVec

	// Engine metrics
	EngineCalls     *prometheus.CounterVec
	EngineDuration  *prometheus.HistogramVec
	CreditsConsumed *prometheus.CounterVec

	// Ledger metrics
	LedgerWriteFailures prometheus.Counter
	LedgerDropped       prometheus.Counter
	LedgerRecords       prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector on its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c := NewWithRegistry(reg)
	c.registry = reg
	return c
}

// NewWithRegistry creates a collector registering into reg.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	c := &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"reason"},
		),
		AdmissionDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_denials_total",
				Help:      "Requests denied because the tier ceiling was reached",
			},
			[]string{"tier"},
		),
		EngineCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_calls_total",
				Help:      "Engine invocations by outcome",
			},
			[]string{"engine", "outcome"},
		),
		EngineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_duration_seconds",
				Help:      "Engine invocation duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"engine"},
		),
		CreditsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_consumed_total",
				Help:      "Credits attributed to engine calls",
			},
			[]string{"engine"},
		),
		LedgerWriteFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_write_failures_total",
				Help:      "Usage record batches that failed to persist",
			},
		),
		LedgerDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_dropped_records_total",
				Help:      "Usage records dropped because the buffer was full",
			},
		),
		LedgerRecords: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_records_total",
				Help:      "Usage records persisted",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
	if r, ok := reg.(*prometheus.Registry); ok {
		c.registry = r
	}
	return c
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// AuthFailed counts an authentication failure.
func (c *Collector) AuthFailed(reason string) {
	if c == nil {
		return
	}
	c.AuthFailures.WithLabelValues(reason).Inc()
}

// AdmissionDenied counts a quota denial.
func (c *Collector) AdmissionDenied(tier string) {
	if c == nil {
		return
	}
	c.AdmissionDenials.WithLabelValues(tier).Inc()
}

// EngineCalled records an engine invocation.
func (c *Collector) EngineCalled(engine, outcome string, credits int, d time.Duration) {
	if c == nil {
		return
	}
	c.EngineCalls.WithLabelValues(engine, outcome).Inc()
	c.EngineDuration.WithLabelValues(engine).Observe(d.Seconds())
	if credits > 0 {
		c.CreditsConsumed.WithLabelValues(engine).Add(float64(credits))
	}
}

// LedgerFailed counts a failed batch write.
func (c *Collector) LedgerFailed() {
	if c == nil {
		return
	}
	c.LedgerWriteFailures.Inc()
}

// LedgerDrop counts a dropped record.
func (c *Collector) LedgerDrop() {
	if c == nil {
		return
	}
	c.LedgerDropped.Inc()
}

// LedgerWritten counts persisted records.
func (c *Collector) LedgerWritten(n int) {
	if c == nil {
		return
	}
	c.LedgerRecords.Add(float64(n))
}

// ConfigReloaded records a reload attempt.
func (c *Collector) ConfigReloaded(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
}
