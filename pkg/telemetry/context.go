package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// NewNopTelemetry returns telemetry that discards logs, spans and metrics.
func NewNopTelemetry() *Telemetry {
	return &Telemetry{
		Logger:  NewNopLogger(),
		Tracer:  NewNopTracer(),
		Metrics: NewNopMetrics(),
		Config:  DefaultConfig(),
	}
}

// WithContext adds the telemetry logger to ctx.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return t.Logger.WithContext(ctx)
}

// Shutdown flushes pending spans and closes the log output.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	err := t.Tracer.Shutdown(ctx)
	if cerr := t.Logger.Close(); err == nil {
		err = cerr
	}
	return err
}

// WorkflowRun is the telemetry state of one workflow execution.
type WorkflowRun struct {
	Ctx    context.Context
	Logger *Logger

	name    string
	runID   string
	span    trace.Span
	timer   *Timer
	metrics *Metrics
}

// StartWorkflow opens a span, a workflow logger and the started metric for
// one workflow execution. It works with a nil Telemetry.
func (t *Telemetry) StartWorkflow(ctx context.Context, name, runID string) *WorkflowRun {
	if t == nil {
		t = NewNopTelemetry()
	}

	spanCtx, span := t.Tracer.StartWorkflowSpan(ctx, name, runID)
	logger := t.Logger.WithWorkflow(name, runID)
	t.Metrics.RecordWorkflowStarted(name)

	return &WorkflowRun{
		Ctx:     logger.WithContext(spanCtx),
		Logger:  logger,
		name:    name,
		runID:   runID,
		span:    span,
		timer:   NewTimer(),
		metrics: t.Metrics,
	}
}

// End closes the workflow span and records the outcome. message is the
// user-facing failure message, empty on success.
func (w *WorkflowRun) End(outcome, message string) {
	if message != "" {
		w.span.SetStatus(codes.Error, message)
		w.Logger.WithField("outcome", outcome).Warn(message)
	} else {
		RecordSuccess(w.span)
		w.Logger.WithField("outcome", outcome).Debug("workflow completed")
	}
	w.span.End()
	w.metrics.RecordWorkflowCompleted(w.name, outcome, w.timer.Duration())
}
