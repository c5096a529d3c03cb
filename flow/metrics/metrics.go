// Package metrics provides Prometheus-compatible instrumentation for flow
// execution, grounded on the teacher's PrometheusMetrics (graph/metrics.go).
// The teacher's concurrency-oriented gauges (inflight_nodes, queue_depth)
// and merge/backpressure counters have no analogue in a single-threaded
// flow (spec.md §5); this keeps the node-latency histogram and adds
// counters/gauges for the bookkeeping SPEC_FULL.md actually produces:
// errors, skips, suspensions, and max-iterations exits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one engine. All metrics are
// namespaced "flowengine_".
type Metrics struct {
	stepLatency      *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	skippedTotal     *prometheus.CounterVec
	suspensionsTotal *prometheus.CounterVec
	maxIterationsHit *prometheus.CounterVec
	activeExecutions prometheus.Gauge
}

// New creates and registers flow execution metrics with registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid duplicate-registration panics
// across test cases.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowengine",
			Name:      "step_latency_ms",
			Help:      "Component execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"flow_type", "component", "status"}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "component_errors_total",
			Help:      "Component errors, by component and resolved error policy.",
		}, []string{"component", "policy"}),

		skippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "components_skipped_total",
			Help:      "Components skipped due to a false condition or on_error=skip.",
		}, []string{"component", "reason"}),

		suspensionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "suspensions_total",
			Help:      "Flow suspensions, by the node that requested them.",
		}, []string{"node_id"}),

		maxIterationsHit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "max_iterations_hit_total",
			Help:      "Cyclic graph executions that reached max_iterations.",
		}, []string{"policy"}),

		activeExecutions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowengine",
			Name:      "active_executions",
			Help:      "Number of flow executions currently in progress.",
		}),
	}
}

func (m *Metrics) ObserveStep(flowType, component, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepLatency.WithLabelValues(flowType, component, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) RecordError(component, policy string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(component, policy).Inc()
}

func (m *Metrics) RecordSkipped(component, reason string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(component, reason).Inc()
}

func (m *Metrics) RecordSuspension(nodeID string) {
	if m == nil {
		return
	}
	m.suspensionsTotal.WithLabelValues(nodeID).Inc()
}

func (m *Metrics) RecordMaxIterationsHit(policy string) {
	if m == nil {
		return
	}
	m.maxIterationsHit.WithLabelValues(policy).Inc()
}

func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.activeExecutions.Inc()
}

func (m *Metrics) ExecutionFinished() {
	if m == nil {
		return
	}
	m.activeExecutions.Dec()
}
