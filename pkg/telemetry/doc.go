// Package telemetry provides observability instrumentation for opsdeck.
//
// It combines structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind one Telemetry value.
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("workflows")
//	logger = logger.WithResource(engine.ResourceTypeDatabase, "12").WithOperationID("88")
//	logger.Info("operation created")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Workflows
//
// Every provisioning workflow runs inside a WorkflowRun, which owns the
// workflow span, a logger carrying the workflow name and run ID, and the
// started/completed metrics:
//
//	run := tel.StartWorkflow(ctx, "provision_database", runID)
//	defer run.End(outcome, errMessage)
//
// # Metrics
//
// Metrics live on a private registry and are served by NewServer together
// with /healthz:
//
//   - opsdeck_workflows_started_total{workflow}
//   - opsdeck_workflows_completed_total{workflow,outcome}
//   - opsdeck_workflow_duration_seconds{workflow,outcome}
//   - opsdeck_operations_created_total{type,resource_type}
//   - opsdeck_operations_completed_total{type,status}
//   - opsdeck_poll_ticks_total{poller,result}
//   - opsdeck_active_pollers
//   - opsdeck_transport_request_duration_seconds{method,status}
//   - opsdeck_errors_by_class_total{class}
//   - opsdeck_actions_published_total{type}
//
// All Record methods are safe on a nil or disabled *Metrics.
//
// # Exporters
//
//   - "stdout": print spans to stdout (development)
//   - "otlp": export via OTLP/gRPC
//   - "none": generate spans without exporting
package telemetry
