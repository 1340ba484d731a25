package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for opsdeck.
type Metrics struct {
	config MetricsConfig

	// Workflow metrics
	workflowsStarted   *prometheus.CounterVec
	workflowsCompleted *prometheus.CounterVec
	workflowDuration   *prometheus.HistogramVec
	activeWorkflows    prometheus.Gauge

	// Operation metrics
	operationsCreated   *prometheus.CounterVec
	operationsCompleted *prometheus.CounterVec

	// Polling metrics
	pollTicks     *prometheus.CounterVec
	activePollers prometheus.Gauge

	// Transport metrics
	transportRequests        *prometheus.CounterVec
	transportRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Action bus metrics
	actionsPublished *prometheus.CounterVec
	actionsDropped   prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		workflowsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_started_total",
				Help:      "Total number of provisioning workflows started",
			},
			[]string{"workflow"},
		),
		workflowsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_completed_total",
				Help:      "Total number of provisioning workflows completed",
			},
			[]string{"workflow", "outcome"},
		),
		workflowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_duration_seconds",
				Help:      "Duration of provisioning workflows in seconds",
				Buckets:   buckets,
			},
			[]string{"workflow", "outcome"},
		),
		activeWorkflows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workflows",
				Help:      "Current number of running workflows",
			},
		),

		operationsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_created_total",
				Help:      "Total number of backend operations created",
			},
			[]string{"type", "resource_type"},
		),
		operationsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_completed_total",
				Help:      "Total number of operations observed reaching a terminal status",
			},
			[]string{"type", "status"},
		),

		pollTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_ticks_total",
				Help:      "Total number of poller fetches",
			},
			[]string{"poller", "result"},
		),
		activePollers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_pollers",
				Help:      "Current number of registered pollers",
			},
		),

		transportRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "status"},
		),
		transportRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transport_request_duration_seconds",
				Help:      "Duration of API requests in seconds",
				Buckets:   buckets,
			},
			[]string{"method", "status"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		actionsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_published_total",
				Help:      "Total number of actions published on the bus",
			},
			[]string{"type"},
		),
		actionsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_dropped_total",
				Help:      "Total number of actions dropped because the bus buffer was full",
			},
		),
	}

	registry.MustRegister(
		m.workflowsStarted,
		m.workflowsCompleted,
		m.workflowDuration,
		m.activeWorkflows,
		m.operationsCreated,
		m.operationsCompleted,
		m.pollTicks,
		m.activePollers,
		m.transportRequests,
		m.transportRequestDuration,
		m.errorsByClass,
		m.errorsByCode,
		m.actionsPublished,
		m.actionsDropped,
	)

	return m, nil
}

// NewNopMetrics returns a metrics instance that records nothing.
func NewNopMetrics() *Metrics {
	return &Metrics{}
}

// Workflow Metrics

// RecordWorkflowStarted increments the counter for started workflows.
func (m *Metrics) RecordWorkflowStarted(workflow string) {
	if m == nil || m.workflowsStarted == nil {
		return
	}
	m.workflowsStarted.WithLabelValues(workflow).Inc()
	m.activeWorkflows.Inc()
}

// RecordWorkflowCompleted records a completed workflow with its outcome and duration.
func (m *Metrics) RecordWorkflowCompleted(workflow, outcome string, duration time.Duration) {
	if m == nil || m.workflowsCompleted == nil {
		return
	}
	m.workflowsCompleted.WithLabelValues(workflow, outcome).Inc()
	m.workflowDuration.WithLabelValues(workflow, outcome).Observe(duration.Seconds())
	m.activeWorkflows.Dec()
}

// Operation Metrics

// RecordOperationCreated records a backend operation created by a workflow.
func (m *Metrics) RecordOperationCreated(opType, resourceType string) {
	if m == nil || m.operationsCreated == nil {
		return
	}
	m.operationsCreated.WithLabelValues(opType, resourceType).Inc()
}

// RecordOperationCompleted records an operation observed in a terminal status.
func (m *Metrics) RecordOperationCompleted(opType, status string) {
	if m == nil || m.operationsCompleted == nil {
		return
	}
	m.operationsCompleted.WithLabelValues(opType, status).Inc()
}

// Polling Metrics

// RecordPollTick records one poller fetch.
func (m *Metrics) RecordPollTick(poller string, err error) {
	if m == nil || m.pollTicks == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pollTicks.WithLabelValues(poller, result).Inc()
}

// SetActivePollers sets the current number of registered pollers.
func (m *Metrics) SetActivePollers(count int) {
	if m == nil || m.activePollers == nil {
		return
	}
	m.activePollers.Set(float64(count))
}

// Transport Metrics

// RecordTransportRequest records an API request. A status of 0 means the
// request never produced a response.
func (m *Metrics) RecordTransportRequest(method string, status int, duration time.Duration) {
	if m == nil || m.transportRequests == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.transportRequests.WithLabelValues(method, label).Inc()
	m.transportRequestDuration.WithLabelValues(method, label).Observe(duration.Seconds())
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m == nil || m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Action Metrics

// RecordActionPublished records an action accepted by the bus.
func (m *Metrics) RecordActionPublished(actionType string) {
	if m == nil || m.actionsPublished == nil {
		return
	}
	m.actionsPublished.WithLabelValues(actionType).Inc()
}

// RecordActionDropped records an action the bus could not buffer.
func (m *Metrics) RecordActionDropped() {
	if m == nil || m.actionsDropped == nil {
		return
	}
	m.actionsDropped.Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Registry exposes the private registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
