// Package metrics provides Prometheus metrics for autoblog.
//
// All recording methods are safe to call on a nil *Metrics, so components
// built without metrics need no guards.
package metrics

import (
	"net/http"
	"time"

	"autoblog/pkg/host"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ host.Metrics = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for autoblog
type Metrics struct {
	registry *prometheus.Registry

	// Framework metrics
	HookDispatches     *prometheus.CounterVec
	IntegrationToggles *prometheus.CounterVec

	// Pseudo-cron metrics
	CronRuns *prometheus.CounterVec

	// Outbound API metrics
	APICalls           *prometheus.CounterVec
	APIDuration        *prometheus.HistogramVec
	CircuitBreakerOpen *prometheus.GaugeVec

	// Content metrics
	PostsGenerated *prometheus.CounterVec
}

// New creates the metrics and registers them on a fresh registry together
// with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates the metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		HookDispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autoblog_hook_dispatches_total",
			Help: "Total number of action dispatches by hook name",
		}, []string{"hook"}),
		IntegrationToggles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autoblog_integration_toggles_total",
			Help: "Total number of integration enable and disable requests",
		}, []string{"integration", "action", "result"}),

		CronRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autoblog_cron_runs_total",
			Help: "Total number of pseudo-cron events run",
		}, []string{"hook"}),

		APICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autoblog_api_calls_total",
			Help: "Total number of outbound API calls by host and result",
		}, []string{"host", "result"}),
		APIDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoblog_api_call_duration_seconds",
			Help:    "Duration of outbound API calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"host"}),
		CircuitBreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autoblog_circuit_breaker_open",
			Help: "Whether the circuit breaker for a host is open (1) or not (0)",
		}, []string{"host"}),

		PostsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autoblog_posts_generated_total",
			Help: "Total number of post generation attempts by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) HookDispatched(hook string) {
	if m == nil {
		return
	}
	m.HookDispatches.WithLabelValues(hook).Inc()
}

func (m *Metrics) IntegrationToggled(id, action string, ok bool) {
	if m == nil {
		return
	}
	m.IntegrationToggles.WithLabelValues(id, action, result(ok)).Inc()
}

func (m *Metrics) CronRan(hook string) {
	if m == nil {
		return
	}
	m.CronRuns.WithLabelValues(hook).Inc()
}

func (m *Metrics) APICalled(host string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.APICalls.WithLabelValues(host, result(ok)).Inc()
	m.APIDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) BreakerState(host string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitBreakerOpen.WithLabelValues(host).Set(v)
}

func (m *Metrics) PostGenerated(ok bool) {
	if m == nil {
		return
	}
	m.PostsGenerated.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
