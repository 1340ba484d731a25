package workflows

import (
	"context"
	"fmt"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/poller"
)

// Deprovision creates a deprovision operation for a resource and blocks
// until that operation is terminal or ctx ends.
//
// A resource that is neither in the store nor on the backend is reported as
// already deprovisioned and no operation is created. On success the record
// is removed from the store.
func (o *Orchestrator) Deprovision(ctx context.Context, ref engine.ResourceRef) *Result {
	ctx, r := o.begin(ctx, WorkflowDeprovision)
	res := r.result

	if err := validateRef(ref); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	switch ref.Type {
	case engine.ResourceTypeApp, engine.ResourceTypeDatabase, engine.ResourceTypeEndpoint,
		engine.ResourceTypeLogDrain, engine.ResourceTypeMetricDrain:
	default:
		res.fail(engine.NewValidationError(fmt.Sprintf("%s resources cannot be deprovisioned", displayName(ref.Type))))
		return r.finish(ctx, "")
	}
	res.setResourceID(ref)

	// Step 1: confirm the resource still exists
	if !o.store.Exists(ref.Type, ref.ID) {
		if err := o.loadResource(ctx, ref); err != nil {
			if engine.IsNotFound(err) {
				err = engine.NewValidationError(fmt.Sprintf("%s %s is already deprovisioned", displayName(ref.Type), ref.ID)).
					WithResource(ref.ID)
			}
			res.fail(err)
			return r.finish(ctx, "")
		}
	}

	deprovision := engine.CreateOperationParams{Type: engine.OperationDeprovision}
	if err := r.admit(ctx, o.operationInput(ref, deprovision, nil)); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}

	// Step 2: create the deprovision operation
	op, err := o.createOperation(ctx, r, ref, deprovision)
	if err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	res.Operation = op
	res.OperationID = op.ID

	// Step 3: wait for a terminal status
	final, err := poller.WaitForOperation(ctx, o.transport, o.store, op.ID, o.config.WaitInterval)
	if err != nil {
		res.Error = fmt.Sprintf("Stopped waiting for operation %s: %v", op.ID, err)
		return r.finish(ctx, "")
	}
	res.Operation = final
	r.outbox.OperationCompleted(final)

	if final.Status == engine.OperationStatusFailed {
		res.Error = fmt.Sprintf("Deprovision operation %s failed", final.ID)
		return r.finish(ctx, "")
	}

	if err := o.store.Remove(ref.Type, ref.ID); err != nil {
		r.tel.Logger.WithError(err).Warn("Failed to remove deprovisioned resource from store")
	}
	return r.finish(ctx, fmt.Sprintf("%s %s has been deprovisioned", displayName(ref.Type), ref.ID))
}

// loadResource fetches one resource into the store.
func (o *Orchestrator) loadResource(ctx context.Context, ref engine.ResourceRef) error {
	switch ref.Type {
	case engine.ResourceTypeApp:
		return fetchInto(ctx, o.transport, ref, o.store.Apps, normalize.App)
	case engine.ResourceTypeDatabase:
		return fetchInto(ctx, o.transport, ref, o.store.Databases, normalize.Database)
	case engine.ResourceTypeEndpoint:
		return fetchInto(ctx, o.transport, ref, o.store.Endpoints, normalize.Endpoint)
	case engine.ResourceTypeLogDrain:
		return fetchInto(ctx, o.transport, ref, o.store.LogDrains, normalize.LogDrain)
	case engine.ResourceTypeMetricDrain:
		return fetchInto(ctx, o.transport, ref, o.store.MetricDrains, normalize.MetricDrain)
	default:
		return engine.NewValidationError(fmt.Sprintf("cannot load %s resources", displayName(ref.Type)))
	}
}
