package engine

import (
	"encoding/json"
	"fmt"
)

// OperationStatus represents the backend-reported status of an operation.
type OperationStatus string

const (
	// OperationStatusQueued indicates the operation is waiting for a worker.
	OperationStatusQueued OperationStatus = "queued"

	// OperationStatusRunning indicates the operation is executing.
	OperationStatusRunning OperationStatus = "running"

	// OperationStatusSucceeded indicates the operation completed successfully.
	OperationStatusSucceeded OperationStatus = "succeeded"

	// OperationStatusFailed indicates the operation failed.
	OperationStatusFailed OperationStatus = "failed"

	// OperationStatusUnknown indicates the status could not be determined.
	OperationStatusUnknown OperationStatus = "unknown"
)

// IsTerminal returns true if the operation status represents a final state.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusSucceeded || s == OperationStatusFailed
}

// IsActive returns true if the operation is queued or running.
func (s OperationStatus) IsActive() bool {
	return s == OperationStatusQueued || s == OperationStatusRunning
}

// Validate checks if the operation status is valid.
func (s OperationStatus) Validate() error {
	switch s {
	case OperationStatusQueued, OperationStatusRunning, OperationStatusSucceeded,
		OperationStatusFailed, OperationStatusUnknown:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s OperationStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *OperationStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = OperationStatus(str)
	return s.Validate()
}

// OperationType represents the kind of work an operation performs.
type OperationType string

const (
	// OperationProvision creates the backing infrastructure for a resource.
	OperationProvision OperationType = "provision"

	// OperationDeprovision destroys a resource.
	OperationDeprovision OperationType = "deprovision"

	// OperationRestart restarts the containers of a resource.
	OperationRestart OperationType = "restart"

	// OperationRestartRecreate restarts a resource on fresh containers.
	OperationRestartRecreate OperationType = "restart_recreate"

	// OperationScale changes container count, container size or disk size.
	OperationScale OperationType = "scale"

	// OperationBackup takes a database backup.
	OperationBackup OperationType = "backup"

	// OperationConfigure replaces the environment variables of an app.
	OperationConfigure OperationType = "configure"

	// OperationDeploy deploys a git ref or docker image.
	OperationDeploy OperationType = "deploy"

	// OperationReload reloads a database or endpoint without restart.
	OperationReload OperationType = "reload"

	// OperationRenew renews a managed certificate.
	OperationRenew OperationType = "renew"

	// OperationPurge purges a backup or drain.
	OperationPurge OperationType = "purge"

	// OperationPoll refreshes the backend view of a resource.
	OperationPoll OperationType = "poll"
)

// IsDestructive returns true if the operation removes data or infrastructure.
func (o OperationType) IsDestructive() bool {
	return o == OperationDeprovision || o == OperationPurge
}

// Validate checks if the operation type is valid.
func (o OperationType) Validate() error {
	switch o {
	case OperationProvision, OperationDeprovision, OperationRestart,
		OperationRestartRecreate, OperationScale, OperationBackup,
		OperationConfigure, OperationDeploy, OperationReload,
		OperationRenew, OperationPurge, OperationPoll:
		return nil
	default:
		return fmt.Errorf("invalid operation type: %s", o)
	}
}

// ProvisionStatus is the lifecycle status of a provisioned resource.
type ProvisionStatus string

const (
	// ProvisionStatusPending indicates the resource exists but nothing has run yet.
	ProvisionStatusPending ProvisionStatus = "pending"

	// ProvisionStatusProvisioning indicates a provision operation is in flight.
	ProvisionStatusProvisioning ProvisionStatus = "provisioning"

	// ProvisionStatusProvisioned indicates the resource is ready.
	ProvisionStatusProvisioned ProvisionStatus = "provisioned"

	// ProvisionStatusDeprovisioning indicates a deprovision operation is in flight.
	ProvisionStatusDeprovisioning ProvisionStatus = "deprovisioning"

	// ProvisionStatusProvisionFailed indicates the last provision failed.
	ProvisionStatusProvisionFailed ProvisionStatus = "provision_failed"

	// ProvisionStatusDeprovisionFailed indicates the last deprovision failed.
	ProvisionStatusDeprovisionFailed ProvisionStatus = "deprovision_failed"

	// ProvisionStatusUnknown indicates the status was not reported.
	ProvisionStatusUnknown ProvisionStatus = "unknown"
)

// IsTransitional returns true if the status represents a transitional state.
func (s ProvisionStatus) IsTransitional() bool {
	return s == ProvisionStatusPending || s == ProvisionStatusProvisioning ||
		s == ProvisionStatusDeprovisioning
}

// IsFailed returns true if the last lifecycle operation failed.
func (s ProvisionStatus) IsFailed() bool {
	return s == ProvisionStatusProvisionFailed || s == ProvisionStatusDeprovisionFailed
}

// Validate checks if the provision status is valid.
func (s ProvisionStatus) Validate() error {
	switch s {
	case ProvisionStatusPending, ProvisionStatusProvisioning, ProvisionStatusProvisioned,
		ProvisionStatusDeprovisioning, ProvisionStatusProvisionFailed,
		ProvisionStatusDeprovisionFailed, ProvisionStatusUnknown:
		return nil
	default:
		return fmt.Errorf("invalid provision status: %s", s)
	}
}

// ResourceType names a kind of platform resource.
type ResourceType string

const (
	ResourceTypeStack            ResourceType = "stack"
	ResourceTypeEnvironment      ResourceType = "account"
	ResourceTypeApp              ResourceType = "app"
	ResourceTypeAppConfiguration ResourceType = "configuration"
	ResourceTypeService          ResourceType = "service"
	ResourceTypeDatabase         ResourceType = "database"
	ResourceTypeEndpoint         ResourceType = "vhost"
	ResourceTypeCertificate      ResourceType = "certificate"
	ResourceTypeLogDrain         ResourceType = "log_drain"
	ResourceTypeMetricDrain      ResourceType = "metric_drain"
	ResourceTypeOperation        ResourceType = "operation"
)

// CollectionPath returns the REST collection path segment for the resource type,
// for example "databases" for ResourceTypeDatabase.
func (t ResourceType) CollectionPath() string {
	switch t {
	case ResourceTypeEnvironment:
		return "accounts"
	case ResourceTypeAppConfiguration:
		return "configurations"
	case ResourceTypeEndpoint:
		return "vhosts"
	default:
		return string(t) + "s"
	}
}

// Validate checks if the resource type is valid.
func (t ResourceType) Validate() error {
	switch t {
	case ResourceTypeStack, ResourceTypeEnvironment, ResourceTypeApp,
		ResourceTypeAppConfiguration, ResourceTypeService, ResourceTypeDatabase,
		ResourceTypeEndpoint, ResourceTypeCertificate, ResourceTypeLogDrain,
		ResourceTypeMetricDrain, ResourceTypeOperation:
		return nil
	default:
		return fmt.Errorf("invalid resource type: %s", t)
	}
}

// ActionType identifies an action emitted by a workflow.
type ActionType string

const (
	// ActionBannerSuccess asks the console to show a success banner.
	ActionBannerSuccess ActionType = "banner_success"

	// ActionBannerError asks the console to show an error banner.
	ActionBannerError ActionType = "banner_error"

	// ActionBannerNotice asks the console to show an informational banner.
	ActionBannerNotice ActionType = "banner_notice"

	// ActionResourceCreated reports a resource created by a workflow.
	ActionResourceCreated ActionType = "resource_created"

	// ActionOperationCreated reports an operation created by a workflow.
	ActionOperationCreated ActionType = "operation_created"

	// ActionOperationCompleted reports an operation that reached a terminal status.
	ActionOperationCompleted ActionType = "operation_completed"
)

// Severity returns the severity level of the action type.
func (a ActionType) Severity() string {
	switch a {
	case ActionBannerError:
		return "error"
	case ActionBannerNotice:
		return "warning"
	default:
		return "info"
	}
}
