// Package metrics exposes Prometheus metrics for the hospitalization service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	LedgerTransactions  *prometheus.CounterVec
	DoseSlots           *prometheus.CounterVec
	Administrations     *prometheus.CounterVec
	StorageBackend      *prometheus.GaugeVec
	StorageBreakerState *prometheus.GaugeVec
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		LedgerTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "budget_transactions_total",
			Help: "Budget transactions applied by type",
		}, []string{"type"}),
		DoseSlots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dose_slots_classified_total",
			Help: "Dose slots classified by status",
		}, []string{"status"}),
		Administrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "administrations_recorded_total",
			Help: "Medication administrations recorded by outcome and punctuality",
		}, []string{"status", "timing"}),
		StorageBackend: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storage_backend_info",
			Help: "Resolved storage backend (1 for the active one)",
		}, []string{"backend"}),
		StorageBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storage_probe_breaker_state",
			Help: "Storage probe circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.LedgerTransactions,
		m.DoseSlots,
		m.Administrations,
		m.StorageBackend,
		m.StorageBreakerState,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// TransactionApplied implements budget.Observer.
func (m *Metrics) TransactionApplied(txType string) {
	m.LedgerTransactions.WithLabelValues(txType).Inc()
}

// SlotClassified implements schedule.Observer.
func (m *Metrics) SlotClassified(status string) {
	m.DoseSlots.WithLabelValues(status).Inc()
}

// AdministrationRecorded implements medication.Observer.
func (m *Metrics) AdministrationRecorded(status, timing string) {
	if timing == "" {
		timing = "unscheduled"
	}
	m.Administrations.WithLabelValues(status, timing).Inc()
}

// SetBackend marks the resolved storage backend.
func (m *Metrics) SetBackend(backend string) {
	m.StorageBackend.Reset()
	m.StorageBackend.WithLabelValues(backend).Set(1)
}

// BreakerStateChanged is shaped for storage.WithStateObserver.
func (m *Metrics) BreakerStateChanged(name string, _, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateOpen:
		v = 1
	case gobreaker.StateHalfOpen:
		v = 2
	}
	m.StorageBreakerState.WithLabelValues(name).Set(v)
}
