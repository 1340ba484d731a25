package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// Span attribute keys.
var (
	AttrWorkflowName  = attribute.Key("workflow.name")
	AttrWorkflowRunID = attribute.Key("workflow.run_id")
	AttrOperationType = attribute.Key("operation.type")
	AttrResourceID    = attribute.Key("resource.id")
	AttrResourceType  = attribute.Key("resource.type")
	AttrPollerKey     = attribute.Key("poller.key")
	AttrErrorClass    = attribute.Key("error.class")
	AttrErrorCode     = attribute.Key("error.code")
)

// Tracer owns the tracer provider of one opsdeck process.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer creates a tracer. A disabled configuration yields a tracer
// that never samples.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		return newTracer(sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample())), serviceName), nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			attribute.String("environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return newTracer(provider, serviceName), nil
}

// NewNopTracer returns a tracer whose spans are never sampled or exported.
func NewNopTracer() *Tracer {
	return newTracer(sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample())), "opsdeck")
}

func newTracer(provider *sdktrace.TracerProvider, name string) *Tracer {
	return &Tracer{provider: provider, tracer: provider.Tracer(name)}
}

// newExporter returns the exporter named by cfg.Exporter. "none" samples
// spans without exporting them and yields a nil exporter.
func newExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
}

// Provider returns the tracer provider used to instrument the HTTP
// transport.
func (t *Tracer) Provider() trace.TracerProvider {
	if t == nil || t.provider == nil {
		return otel.GetTracerProvider()
	}
	return t.provider
}

// StartSpan starts a span carrying attrs. A nil tracer returns the span
// already in ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartWorkflowSpan starts the root span of a workflow run.
func (t *Tracer) StartWorkflowSpan(ctx context.Context, workflow, runID string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "workflow."+workflow,
		AttrWorkflowName.String(workflow),
		AttrWorkflowRunID.String(runID),
	)
}

// StartOperationSpan starts a span around the creation of an operation.
func (t *Tracer) StartOperationSpan(ctx context.Context, opType engine.OperationType, ref engine.ResourceRef) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "operation.create",
		AttrOperationType.String(string(opType)),
		AttrResourceType.String(string(ref.Type)),
		AttrResourceID.String(ref.ID),
	)
}

// StartPollSpan starts a span around one poller fetch.
func (t *Tracer) StartPollSpan(ctx context.Context, poller string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "poll.fetch", AttrPollerKey.String(poller))
}

// RecordError marks span as failed, with the class and code of a
// *engine.RequestError.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if reqErr, ok := engine.AsRequestError(err); ok {
		span.SetAttributes(
			AttrErrorClass.String(string(reqErr.Class)),
			AttrErrorCode.String(reqErr.Code),
		)
	}
}

// RecordSuccess marks span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
