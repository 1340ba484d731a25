package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Request describes a single backend call.
type Request struct {
	// Method is the HTTP method, e.g. "GET" or "POST".
	Method string `json:"method"`

	// Path is the resource path and may contain :name placeholders,
	// e.g. "/accounts/:envId/databases".
	Path string `json:"path"`

	// Params supplies the values for placeholders in Path.
	Params map[string]string `json:"params,omitempty"`

	// Query holds optional query string parameters.
	Query url.Values `json:"query,omitempty"`

	// Body is encoded as the JSON request body when non-nil.
	Body any `json:"body,omitempty"`
}

// ExpandPath substitutes every :name segment of Path with the escaped value
// from Params. A placeholder without a non-empty value is an error.
func (r Request) ExpandPath() (string, error) {
	segments := strings.Split(r.Path, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		name := seg[1:]
		value, ok := r.Params[name]
		if !ok || value == "" {
			return "", NewValidationError(fmt.Sprintf("missing path parameter %q", name)).
				WithOperation(r.Method + " " + r.Path)
		}
		segments[i] = url.PathEscape(value)
	}
	return strings.Join(segments, "/"), nil
}

// Transport performs typed request/response calls against the backend.
type Transport interface {
	// Do sends req and decodes the response body into out when out is non-nil.
	// Failures are returned as *RequestError.
	Do(ctx context.Context, req Request, out any) error
}

// CancelFunc stops a scheduled task. It is safe to call more than once.
type CancelFunc func()

// Scheduler runs a function repeatedly at a fixed interval.
type Scheduler interface {
	// Schedule runs fn immediately and then every interval until cancelled.
	Schedule(fn func(ctx context.Context), interval time.Duration) CancelFunc
}

// Action is a typed notification emitted by a workflow, such as a banner
// or a resource-created event.
type Action struct {
	// ID is a unique identifier for the action.
	ID string `json:"id"`

	// Type is the kind of action.
	Type ActionType `json:"type"`

	// Workflow is the workflow that emitted the action.
	Workflow string `json:"workflow,omitempty"`

	// Message is the human-readable message carried by banners.
	Message string `json:"message,omitempty"`

	// ResourceType and ResourceID identify the resource the action concerns.
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Timestamp is when the action was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Data contains action-specific payload.
	Data map[string]interface{} `json:"data,omitempty"`
}

// ActionBus delivers actions to interested listeners. Emit never blocks the
// caller on delivery and never fails.
type ActionBus interface {
	Emit(action Action)
}

// ActionFilter represents criteria for filtering actions.
type ActionFilter struct {
	// Types filters actions by type.
	Types []ActionType `json:"types,omitempty"`

	// ResourceID filters actions by resource ID.
	ResourceID string `json:"resource_id,omitempty"`

	// Workflow filters actions by the workflow that emitted them.
	Workflow string `json:"workflow,omitempty"`
}

// Matches reports whether the action passes the filter.
func (f ActionFilter) Matches(a Action) bool {
	if f.ResourceID != "" && a.ResourceID != f.ResourceID {
		return false
	}
	if f.Workflow != "" && a.Workflow != f.Workflow {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == a.Type {
			return true
		}
	}
	return false
}

// OperationReader reads operations from a local store.
type OperationReader interface {
	// SelectOperationsByResource returns the operations recorded for a resource.
	SelectOperationsByResource(resourceType ResourceType, resourceID string) []Operation
}
