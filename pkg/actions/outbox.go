package actions

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// Outbox records the actions emitted by one workflow run and forwards each
// to an optional bus. It implements engine.ActionBus and is safe for
// concurrent use by the items of a batch.
type Outbox struct {
	workflow string
	bus      engine.ActionBus
	now      func() time.Time

	mu      sync.Mutex
	actions []engine.Action
}

// NewOutbox creates an outbox for the named workflow. bus may be nil.
func NewOutbox(workflow string, bus engine.ActionBus) *Outbox {
	return &Outbox{
		workflow: workflow,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Emit stamps the action and records it, then forwards it to the bus.
func (o *Outbox) Emit(action engine.Action) {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.Workflow == "" {
		action.Workflow = o.workflow
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = o.now()
	}

	o.mu.Lock()
	o.actions = append(o.actions, action)
	o.mu.Unlock()

	if o.bus != nil {
		o.bus.Emit(action)
	}
}

// Success emits a success banner.
func (o *Outbox) Success(message string) {
	o.Emit(engine.Action{Type: engine.ActionBannerSuccess, Message: message})
}

// Error emits an error banner.
func (o *Outbox) Error(message string) {
	o.Emit(engine.Action{Type: engine.ActionBannerError, Message: message})
}

// Notice emits an informational banner.
func (o *Outbox) Notice(message string) {
	o.Emit(engine.Action{Type: engine.ActionBannerNotice, Message: message})
}

// ResourceCreated reports a resource created by the workflow.
func (o *Outbox) ResourceCreated(ref engine.ResourceRef) {
	o.Emit(engine.Action{
		Type:         engine.ActionResourceCreated,
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
	})
}

// OperationCreated reports an operation created by the workflow.
func (o *Outbox) OperationCreated(op engine.Operation) {
	o.Emit(engine.Action{
		Type:         engine.ActionOperationCreated,
		ResourceType: op.ResourceType,
		ResourceID:   op.ResourceID,
		Data: map[string]interface{}{
			"operation_id": op.ID,
			"type":         string(op.Type),
		},
	})
}

// OperationCompleted reports an operation that reached a terminal status.
func (o *Outbox) OperationCompleted(op engine.Operation) {
	o.Emit(engine.Action{
		Type:         engine.ActionOperationCompleted,
		ResourceType: op.ResourceType,
		ResourceID:   op.ResourceID,
		Data: map[string]interface{}{
			"operation_id": op.ID,
			"type":         string(op.Type),
			"status":       string(op.Status),
		},
	})
}

// Actions returns a copy of the recorded actions in emission order.
func (o *Outbox) Actions() []engine.Action {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]engine.Action, len(o.actions))
	copy(out, o.actions)
	return out
}

// Workflow returns the workflow name stamped on emitted actions.
func (o *Outbox) Workflow() string {
	return o.workflow
}
