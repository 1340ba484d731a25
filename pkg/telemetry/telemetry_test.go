package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "otlp without endpoint", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, wantErr: true},
		{name: "sampling out of range", mutate: func(c *Config) { c.Tracing.SamplingRate = 1.5 }, wantErr: true},
		{name: "metrics without address", mutate: func(c *Config) { c.Metrics.ListenAddress = "" }, wantErr: true},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogger_ResourceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "debug").
		NewComponentLogger("workflows").
		WithResource(engine.ResourceTypeDatabase, "12").
		WithOperationID("88")

	logger.Info("operation created")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}

	want := map[string]string{
		"component":     "workflows",
		"resource_type": "database",
		"resource_id":   "12",
		"operation_id":  "88",
		"message":       "operation created",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("expected %s=%q, got %v", k, v, entry[k])
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "warn")

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", buf.String())
	}

	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn to be written, got %q", buf.String())
	}
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a logger from an empty context")
	}

	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "info")
	ctx := logger.WithContext(context.Background())
	FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("expected context logger to be used, got %q", buf.String())
	}
}

func TestMetrics_NilAndDisabledAreSafe(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.RecordWorkflowStarted("x")
	nilMetrics.RecordPollTick("x", errors.New("boom"))
	nilMetrics.SetActivePollers(3)

	disabled, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	disabled.RecordWorkflowCompleted("x", "failed", time.Second)
	disabled.RecordTransportRequest("GET", 0, time.Millisecond)

	rec := httptest.NewRecorder()
	disabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for disabled metrics, got %d", rec.Code)
	}
}

func TestRouter_ServesMetricsAndHealth(t *testing.T) {
	cfg := DefaultConfig().Metrics
	metrics, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	metrics.RecordWorkflowStarted("provision_database")
	metrics.RecordOperationCreated("provision", "database")
	metrics.SetActivePollers(2)

	var unhealthy atomic.Bool
	server := httptest.NewServer(NewRouter(metrics, cfg, map[string]HealthCheck{
		"journal": func(context.Context) error {
			if unhealthy.Load() {
				return errors.New("database is locked")
			}
			return nil
		},
	}))
	defer server.Close()

	body := get(t, server.URL+"/metrics", http.StatusOK)
	for _, want := range []string{
		`opsdeck_workflows_started_total{workflow="provision_database"} 1`,
		`opsdeck_operations_created_total{resource_type="database",type="provision"} 1`,
		`opsdeck_active_pollers 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}

	get(t, server.URL+"/healthz", http.StatusOK)

	unhealthy.Store(true)
	body = get(t, server.URL+"/healthz", http.StatusServiceUnavailable)
	if !strings.Contains(body, "database is locked") {
		t.Errorf("expected failing check message, got %q", body)
	}
}

func get(t *testing.T, url string, wantStatus int) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected %d, got %d: %s", url, wantStatus, resp.StatusCode, data)
	}
	return string(data)
}

func TestWorkflowRun_RecordsOutcome(t *testing.T) {
	metrics, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	var buf bytes.Buffer
	tel := &Telemetry{
		Logger:  NewWriterLogger(&buf, "debug"),
		Tracer:  NewNopTracer(),
		Metrics: metrics,
		Config:  DefaultConfig(),
	}

	run := tel.StartWorkflow(context.Background(), "deprovision", "run-7")
	if FromContext(run.Ctx) != run.Logger {
		t.Error("expected workflow logger in run context")
	}
	run.End("failed", "Operation failed")

	if !strings.Contains(buf.String(), `"workflow_run_id":"run-7"`) {
		t.Errorf("expected run id in log output, got %q", buf.String())
	}

	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "opsdeck_workflows_completed_total" {
			found = true
			labels := mf.GetMetric()[0].GetLabel()
			for _, l := range labels {
				if l.GetName() == "outcome" && l.GetValue() != "failed" {
					t.Errorf("expected failed outcome, got %s", l.GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected workflows_completed metric to be recorded")
	}
}

func TestStartWorkflow_NilTelemetry(t *testing.T) {
	var tel *Telemetry
	run := tel.StartWorkflow(context.Background(), "provision_database", "run-1")
	run.End("succeeded", "")
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsdeck.log")
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.NewComponentLogger("poller").Debug("tick")
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"poller"`) || !strings.Contains(string(data), "tick") {
		t.Errorf("unexpected log file content: %q", data)
	}
}

func TestNewLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "loud", Output: "stderr"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if got := logger.Zerolog().GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", got)
	}
}

func TestNewExporter(t *testing.T) {
	if exp, err := newExporter(TracingConfig{Exporter: "none"}); err != nil || exp != nil {
		t.Fatalf("expected no exporter for none, got %v, %v", exp, err)
	}
	if exp, err := newExporter(TracingConfig{Exporter: "stdout"}); err != nil || exp == nil {
		t.Fatalf("expected stdout exporter, got %v, %v", exp, err)
	}
	if _, err := newExporter(TracingConfig{Exporter: "zipkin"}); err == nil {
		t.Fatal("expected unsupported exporter error")
	}
}

func TestRecordError_ClassifiedAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := newTracer(provider, "test")

	_, span := tracer.StartOperationSpan(context.Background(), engine.OperationProvision,
		engine.ResourceRef{Type: engine.ResourceTypeDatabase, ID: "12"})
	RecordError(span, engine.NewHTTPError(http.StatusNotFound, "", "Database not found"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := make(map[string]string)
	for _, kv := range spans[0].Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	if got["resource.id"] != "12" || got["operation.type"] != "provision" {
		t.Errorf("unexpected operation attributes: %v", got)
	}
	if got["error.class"] != "permanent" || got["error.code"] != engine.ErrCodeNotFound {
		t.Errorf("unexpected error attributes: %v", got)
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status().Code)
	}
}

func TestNilTracerReturnsContextSpan(t *testing.T) {
	var tracer *Tracer
	ctx, span := tracer.StartPollSpan(context.Background(), "database/12")
	if span.SpanContext().IsValid() {
		t.Error("expected a no-op span from a nil tracer")
	}
	if ctx == nil {
		t.Error("expected the input context back")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("nil tracer shutdown: %v", err)
	}
}
