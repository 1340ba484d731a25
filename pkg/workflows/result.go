package workflows

import (
	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/stores"
)

// Workflow names, used for logs, metrics, spans and audit entries.
const (
	WorkflowProvisionDatabase    = "provision_database"
	WorkflowProvisionDatabases   = "provision_databases"
	WorkflowProvisionLogDrain    = "provision_log_drain"
	WorkflowProvisionMetricDrain = "provision_metric_drain"
	WorkflowCreateEndpoint       = "create_endpoint"
	WorkflowRunOperation         = "run_operation"
	WorkflowDeprovision          = "deprovision"
)

// Result is the in-memory outcome of one workflow run. It is never written
// to the resource store.
type Result struct {
	Workflow string `json:"workflow"`
	RunID    string `json:"run_id,omitempty"`

	// Identifiers of what the run created or reused. They are set even when
	// a later step failed.
	AppID         string `json:"app_id,omitempty"`
	DatabaseID    string `json:"database_id,omitempty"`
	EndpointID    string `json:"endpoint_id,omitempty"`
	CertificateID string `json:"certificate_id,omitempty"`
	LogDrainID    string `json:"log_drain_id,omitempty"`
	MetricDrainID string `json:"metric_drain_id,omitempty"`
	OperationID   string `json:"operation_id,omitempty"`

	// Operation is the last known state of the operation the run created.
	Operation engine.Operation `json:"operation"`

	// Error is the user-facing message of the failing step, empty on success.
	Error string `json:"error,omitempty"`

	// Notice is set when the run succeeded without doing anything, for
	// example because the resource was already provisioned.
	Notice string `json:"notice,omitempty"`

	// Items holds the per-item results of a batch, in request order.
	Items []*Result `json:"items,omitempty"`

	// Actions are the actions emitted during the run, in emission order.
	Actions []engine.Action `json:"actions,omitempty"`
}

// Failed reports whether the run ended with an error.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Outcome classifies the result for metrics and the audit journal.
func (r *Result) Outcome() stores.WorkflowOutcome {
	switch {
	case r.Error != "":
		return stores.WorkflowOutcomeFailed
	case r.Notice != "" && r.OperationID == "":
		return stores.WorkflowOutcomeNoop
	default:
		return stores.WorkflowOutcomeSucceeded
	}
}

// ResourceIDs returns the non-empty identifiers keyed by resource kind.
func (r *Result) ResourceIDs() map[engine.ResourceType]string {
	ids := make(map[engine.ResourceType]string)
	add := func(kind engine.ResourceType, id string) {
		if id != "" {
			ids[kind] = id
		}
	}
	add(engine.ResourceTypeApp, r.AppID)
	add(engine.ResourceTypeDatabase, r.DatabaseID)
	add(engine.ResourceTypeEndpoint, r.EndpointID)
	add(engine.ResourceTypeCertificate, r.CertificateID)
	add(engine.ResourceTypeLogDrain, r.LogDrainID)
	add(engine.ResourceTypeMetricDrain, r.MetricDrainID)
	add(engine.ResourceTypeOperation, r.OperationID)
	return ids
}

func (r *Result) fail(err error) {
	r.Error = engine.Message(err)
}

// setResourceID records id in the field matching ref's kind.
func (r *Result) setResourceID(ref engine.ResourceRef) {
	switch ref.Type {
	case engine.ResourceTypeApp:
		r.AppID = ref.ID
	case engine.ResourceTypeDatabase:
		r.DatabaseID = ref.ID
	case engine.ResourceTypeEndpoint:
		r.EndpointID = ref.ID
	case engine.ResourceTypeCertificate:
		r.CertificateID = ref.ID
	case engine.ResourceTypeLogDrain:
		r.LogDrainID = ref.ID
	case engine.ResourceTypeMetricDrain:
		r.MetricDrainID = ref.ID
	}
}

// apply records the outcome of a provision chain.
func (r *Result) apply(ref engine.ResourceRef, op engine.Operation, notice string, err error) {
	r.setResourceID(ref)
	r.Operation = op
	switch {
	case err != nil:
		r.fail(err)
	case notice != "":
		r.Notice = notice
	default:
		r.OperationID = op.ID
	}
}
