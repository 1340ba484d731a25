package workflows

import (
	"context"
	"fmt"
	"net/http"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/policy"
)

// LogDrainParams describes a log drain to provision.
type LogDrainParams struct {
	Handle        string `json:"handle" yaml:"handle" validate:"required"`
	EnvironmentID string `json:"environment_id" yaml:"environment_id" validate:"required"`
	DrainType     string `json:"drain_type" yaml:"drain_type" validate:"required,oneof=syslog_tls_tcp https_post elasticsearch_database datadog logdna papertrail sumologic"`

	DrainHost  string `json:"drain_host,omitempty" yaml:"drain_host,omitempty"`
	DrainPort  string `json:"drain_port,omitempty" yaml:"drain_port,omitempty"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	DatabaseID string `json:"database_id,omitempty" yaml:"database_id,omitempty"`

	DrainApps              bool `json:"drain_apps" yaml:"drain_apps"`
	DrainDatabases         bool `json:"drain_databases" yaml:"drain_databases"`
	DrainEphemeralSessions bool `json:"drain_ephemeral_sessions" yaml:"drain_ephemeral_sessions"`
	DrainProxies           bool `json:"drain_proxies" yaml:"drain_proxies"`
}

// destination checks the fields each drain type needs.
func (p LogDrainParams) destination() error {
	switch p.DrainType {
	case "syslog_tls_tcp", "papertrail":
		if p.DrainHost == "" || p.DrainPort == "" {
			return engine.NewValidationError("drain_host and drain_port are required for " + p.DrainType)
		}
	case "elasticsearch_database":
		if p.DatabaseID == "" {
			return engine.NewValidationError("database_id is required for " + p.DrainType)
		}
	default:
		if p.URL == "" {
			return engine.NewValidationError("url is required for " + p.DrainType)
		}
	}
	return nil
}

// MetricDrainParams describes a metric drain to provision.
type MetricDrainParams struct {
	Handle        string `json:"handle" yaml:"handle" validate:"required"`
	EnvironmentID string `json:"environment_id" yaml:"environment_id" validate:"required"`
	DrainType     string `json:"drain_type" yaml:"drain_type" validate:"required,oneof=influxdb_database influxdb datadog"`

	DatabaseID string `json:"database_id,omitempty" yaml:"database_id,omitempty"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

func (p MetricDrainParams) destination() error {
	switch p.DrainType {
	case "influxdb_database":
		if p.DatabaseID == "" {
			return engine.NewValidationError("database_id is required for " + p.DrainType)
		}
	case "influxdb":
		if p.URL == "" || p.Database == "" {
			return engine.NewValidationError("url and database are required for " + p.DrainType)
		}
	case "datadog":
		if p.APIKey == "" {
			return engine.NewValidationError("api_key is required for " + p.DrainType)
		}
	}
	return nil
}

// ProvisionLogDrain creates a log drain and its provision operation. An
// existing drain with the same handle in the environment is reused.
func (o *Orchestrator) ProvisionLogDrain(ctx context.Context, params LogDrainParams) *Result {
	ctx, r := o.begin(ctx, WorkflowProvisionLogDrain)
	res := r.result

	if err := validateParams(params); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	if err := params.destination(); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}

	var existing string
	for _, drain := range o.store.LogDrains.SelectAsList() {
		if drain.Handle == params.Handle && drain.EnvironmentID == params.EnvironmentID {
			existing = drain.ID
			break
		}
	}

	if err := r.admit(ctx, drainInput(engine.ResourceTypeLogDrain, existing, params.Handle, params.EnvironmentID, params)); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}

	res.apply(o.provisionChain(ctx, r, chain{
		kind:      engine.ResourceTypeLogDrain,
		label:     "Log drain " + params.Handle,
		existing:  existing,
		create:    func(ctx context.Context) (string, error) { return o.createLogDrain(ctx, params) },
		provision: engine.CreateOperationParams{Type: engine.OperationProvision},
	}))

	return r.finish(ctx, fmt.Sprintf("Log drain %s is provisioning", params.Handle))
}

func (o *Orchestrator) createLogDrain(ctx context.Context, params LogDrainParams) (string, error) {
	body := map[string]any{
		"handle":                   params.Handle,
		"drain_type":               params.DrainType,
		"drain_apps":               params.DrainApps,
		"drain_databases":          params.DrainDatabases,
		"drain_ephemeral_sessions": params.DrainEphemeralSessions,
		"drain_proxies":            params.DrainProxies,
	}
	if params.DrainHost != "" {
		body["drain_host"] = params.DrainHost
	}
	if params.DrainPort != "" {
		body["drain_port"] = params.DrainPort
	}
	if params.URL != "" {
		body["url"] = params.URL
	}
	if params.DatabaseID != "" {
		body["database_id"] = params.DatabaseID
	}

	var resp normalize.LogDrainResponse
	err := o.transport.Do(ctx, engine.Request{
		Method: http.MethodPost,
		Path:   "/accounts/:envId/log_drains",
		Params: map[string]string{"envId": params.EnvironmentID},
		Body:   body,
	}, &resp)
	if err != nil {
		return "", err
	}

	drain := normalize.LogDrain(resp)
	if drain.EnvironmentID == "" {
		drain.EnvironmentID = params.EnvironmentID
	}
	if drain.Handle == "" {
		drain.Handle = params.Handle
	}
	o.store.LogDrains.Add(drain)

	return drain.ID, nil
}

// ProvisionMetricDrain creates a metric drain and its provision operation.
// An existing drain with the same handle in the environment is reused.
func (o *Orchestrator) ProvisionMetricDrain(ctx context.Context, params MetricDrainParams) *Result {
	ctx, r := o.begin(ctx, WorkflowProvisionMetricDrain)
	res := r.result

	if err := validateParams(params); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	if err := params.destination(); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}

	var existing string
	for _, drain := range o.store.MetricDrains.SelectAsList() {
		if drain.Handle == params.Handle && drain.EnvironmentID == params.EnvironmentID {
			existing = drain.ID
			break
		}
	}

	if err := r.admit(ctx, drainInput(engine.ResourceTypeMetricDrain, existing, params.Handle, params.EnvironmentID, params)); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}

	res.apply(o.provisionChain(ctx, r, chain{
		kind:      engine.ResourceTypeMetricDrain,
		label:     "Metric drain " + params.Handle,
		existing:  existing,
		create:    func(ctx context.Context) (string, error) { return o.createMetricDrain(ctx, params) },
		provision: engine.CreateOperationParams{Type: engine.OperationProvision},
	}))

	return r.finish(ctx, fmt.Sprintf("Metric drain %s is provisioning", params.Handle))
}

func (o *Orchestrator) createMetricDrain(ctx context.Context, params MetricDrainParams) (string, error) {
	body := map[string]any{
		"handle":     params.Handle,
		"drain_type": params.DrainType,
	}
	switch params.DrainType {
	case "influxdb_database":
		body["database_id"] = params.DatabaseID
	case "influxdb":
		body["drain_configuration"] = map[string]any{
			"address":  params.URL,
			"database": params.Database,
			"username": params.Username,
			"password": params.Password,
		}
	case "datadog":
		conf := map[string]any{"api_key": params.APIKey}
		if params.URL != "" {
			conf["series_url"] = params.URL
		}
		body["drain_configuration"] = conf
	}

	var resp normalize.MetricDrainResponse
	err := o.transport.Do(ctx, engine.Request{
		Method: http.MethodPost,
		Path:   "/accounts/:envId/metric_drains",
		Params: map[string]string{"envId": params.EnvironmentID},
		Body:   body,
	}, &resp)
	if err != nil {
		return "", err
	}

	drain := normalize.MetricDrain(resp)
	if drain.EnvironmentID == "" {
		drain.EnvironmentID = params.EnvironmentID
	}
	if drain.Handle == "" {
		drain.Handle = params.Handle
	}
	o.store.MetricDrains.Add(drain)

	return drain.ID, nil
}

func drainInput(kind engine.ResourceType, id, handle, envID string, params any) policy.Input {
	return policy.Input{
		Resource: &policy.ResourceInput{
			Type:          kind,
			ID:            id,
			Handle:        handle,
			EnvironmentID: envID,
		},
		Operation: &engine.CreateOperationParams{Type: engine.OperationProvision},
		Params:    params,
	}
}
