package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	dispatcherMetricsOnce sync.Once
	dispatcherRegistry    *DispatcherMetrics
)

// ModuleMetrics returns the lazily-initialised metrics registry used to
// record JSON-RPC request activity on the governance service.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nxgov",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nxgov",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nxgov",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC request handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC request. status should be the
// HTTP status ultimately written to the response.
func (m *moduleMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// DispatcherMetrics captures dispatcher and lifecycle activity: proposal
// finalization outcomes and per-message execution step latency.
type DispatcherMetrics struct {
	finalizations *prometheus.CounterVec
	stepLatency   *prometheus.HistogramVec
	callErrors    *prometheus.CounterVec
}

// Dispatcher returns the lazily-initialised dispatcher metrics registry.
func Dispatcher() *DispatcherMetrics {
	dispatcherMetricsOnce.Do(func() {
		dispatcherRegistry = &DispatcherMetrics{
			finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nxgov",
				Subsystem: "dispatcher",
				Name:      "finalizations_total",
				Help:      "Count of proposal finalizations segmented by resulting state.",
			}, []string{"state"}),
			stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nxgov",
				Subsystem: "dispatcher",
				Name:      "step_duration_seconds",
				Help:      "Latency distribution for a single execution step, by sub-state.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"sub_state"}),
			callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nxgov",
				Subsystem: "dispatcher",
				Name:      "call_errors_total",
				Help:      "Count of invoker call failures segmented by suspension point.",
			}, []string{"point"}),
		}
		prometheus.MustRegister(
			dispatcherRegistry.finalizations,
			dispatcherRegistry.stepLatency,
			dispatcherRegistry.callErrors,
		)
	})
	return dispatcherRegistry
}

// RecordFinalization increments the finalization counter for the supplied
// terminal or non-terminal proposal state name.
func (m *DispatcherMetrics) RecordFinalization(state string) {
	if m == nil {
		return
	}
	if state == "" {
		state = "unknown"
	}
	m.finalizations.WithLabelValues(state).Inc()
}

// ObserveStep records the wall-clock duration spent in one execution
// sub-state (PreValidating, Executing, PostValidating).
func (m *DispatcherMetrics) ObserveStep(subState string, duration time.Duration) {
	if m == nil {
		return
	}
	if subState == "" {
		subState = "unknown"
	}
	m.stepLatency.WithLabelValues(subState).Observe(duration.Seconds())
}

// RecordCallError increments the call-error counter for the named
// suspension point ("pre_validate", "execute", "post_validate").
func (m *DispatcherMetrics) RecordCallError(point string) {
	if m == nil {
		return
	}
	if point == "" {
		point = "unknown"
	}
	m.callErrors.WithLabelValues(point).Inc()
}
