package policy

import (
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// Severity is the severity of a policy violation.
type Severity string

const (
	// SeverityWarning is reported but does not block.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the workflow.
	SeverityError Severity = "error"

	// SeverityCritical blocks the workflow.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity stops a workflow.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Validate checks the severity.
func (s Severity) Validate() error {
	switch s {
	case SeverityWarning, SeverityError, SeverityCritical:
		return nil
	default:
		return engine.NewValidationError("invalid policy severity: " + string(s))
	}
}

// Policy is a Rego module with its metadata.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description is a human-readable summary.
	Description string `json:"description,omitempty"`

	// Rego is the module source.
	Rego string `json:"rego"`

	// Severity applies to violations that do not carry their own.
	Severity Severity `json:"severity"`

	// Enabled policies are evaluated.
	Enabled bool `json:"enabled"`

	// Builtin is set for the policies compiled into opsdeck.
	Builtin bool `json:"builtin"`

	// Source is the file the policy was loaded from.
	Source string `json:"source,omitempty"`
}

// Input is the document policies evaluate.
type Input struct {
	// Workflow is the workflow name, e.g. "provision_database".
	Workflow string `json:"workflow"`

	// Resource is the resource the workflow targets.
	Resource *ResourceInput `json:"resource,omitempty"`

	// Operation is the operation the workflow is about to create.
	Operation *engine.CreateOperationParams `json:"operation,omitempty"`

	// Params carries the workflow parameters as given by the caller.
	Params any `json:"params,omitempty"`
}

// ResourceInput identifies the target resource. ID is empty for resources
// that do not exist yet.
type ResourceInput struct {
	Type          engine.ResourceType `json:"type"`
	ID            string              `json:"id,omitempty"`
	Handle        string              `json:"handle,omitempty"`
	EnvironmentID string              `json:"environment_id,omitempty"`
}

// Violation is one element of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	// Violations lists every violation, blocking or not.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that could not be evaluated.
	Warnings []string `json:"warnings,omitempty"`

	// Evaluated is the number of policies evaluated.
	Evaluated int `json:"evaluated"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Denials returns the blocking violations.
func (r *Result) Denials() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocks() {
			out = append(out, v)
		}
	}
	return out
}

// Message joins the messages of the blocking violations.
func (r *Result) Message() string {
	denials := r.Denials()
	messages := make([]string, 0, len(denials))
	for _, v := range denials {
		messages = append(messages, v.Message)
	}
	return strings.Join(messages, "; ")
}
