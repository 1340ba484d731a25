package workflows

import (
	"context"
	"fmt"
	"net/http"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/poller"
	"github.com/opsdeck/opsdeck/pkg/policy"
	"github.com/opsdeck/opsdeck/pkg/stores"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

// OperationParams describes a generic operation against an existing resource.
type OperationParams struct {
	Resource  engine.ResourceRef           `json:"resource"`
	Operation engine.CreateOperationParams `json:"operation"`

	// Wait blocks until the operation reaches a terminal status.
	Wait bool `json:"wait"`
}

// RunOperation creates an operation such as scale, restart or backup
// against an existing resource.
func (o *Orchestrator) RunOperation(ctx context.Context, params OperationParams) *Result {
	ctx, r := o.begin(ctx, WorkflowRunOperation)
	res := r.result

	ref := params.Resource
	if err := validateRef(ref); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	if err := params.Operation.Type.Validate(); err != nil {
		res.fail(engine.NewValidationError(err.Error()))
		return r.finish(ctx, "")
	}
	res.setResourceID(ref)

	if err := r.admit(ctx, o.operationInput(ref, params.Operation, params)); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}

	op, err := o.createOperation(ctx, r, ref, params.Operation)
	if err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	res.Operation = op
	res.OperationID = op.ID

	if !params.Wait {
		o.watch(op)
		return r.finish(ctx, fmt.Sprintf("%s operation %s queued", op.Type, op.ID))
	}

	final, err := poller.WaitForOperation(ctx, o.transport, o.store, op.ID, o.config.WaitInterval)
	if err != nil {
		res.Error = fmt.Sprintf("Stopped waiting for operation %s: %v", op.ID, err)
		return r.finish(ctx, "")
	}
	res.Operation = final
	r.outbox.OperationCompleted(final)
	if final.Status == engine.OperationStatusFailed {
		res.Error = fmt.Sprintf("%s operation %s failed", final.Type, final.ID)
		return r.finish(ctx, "")
	}
	return r.finish(ctx, fmt.Sprintf("%s operation %s succeeded", final.Type, final.ID))
}

// createOperation posts an operation against ref, stores the created record
// and reports it on the outbox.
func (o *Orchestrator) createOperation(ctx context.Context, r *run, ref engine.ResourceRef, params engine.CreateOperationParams) (engine.Operation, error) {
	ctx, span := o.telemetry.Tracer.StartOperationSpan(ctx, params.Type, ref)
	defer span.End()

	var resp normalize.OperationResponse
	err := o.transport.Do(ctx, engine.Request{
		Method: http.MethodPost,
		Path:   "/" + ref.Type.CollectionPath() + "/:id/operations",
		Params: map[string]string{"id": ref.ID},
		Body:   engine.BuildOperationBody(params),
	}, &resp)
	if err != nil {
		telemetry.RecordError(span, err)
		return engine.Operation{}, err
	}

	op := normalize.Operation(resp)
	if op.ResourceID == "" {
		op.ResourceID = ref.ID
	}
	if op.ResourceType == "" {
		op.ResourceType = ref.Type
	}
	if op.Type == "" {
		op.Type = params.Type
	}
	if resp.Status == "" {
		op.Status = engine.OperationStatusQueued
	}

	o.store.Operations.Add(op)
	r.outbox.OperationCreated(op)
	o.telemetry.Metrics.RecordOperationCreated(string(op.Type), string(ref.Type))
	telemetry.RecordSuccess(span)

	r.tel.Logger.WithOperationID(op.ID).
		WithResource(ref.Type, ref.ID).
		WithField("type", string(op.Type)).
		Info("Operation created")

	return op, nil
}

// watch hands a non-terminal operation to the polling supervisor.
func (o *Orchestrator) watch(op engine.Operation) {
	if o.supervisor == nil || op.ID == "" || op.Status.IsTerminal() {
		return
	}
	o.supervisor.PollOperation(poller.Key(engine.ResourceTypeOperation, op.ID), op.ID, o.config.OperationPollInterval)
}

// chain is the create-then-provision sequence shared by the
// single-resource workflows.
type chain struct {
	kind  engine.ResourceType
	label string

	// existing is the ID of a matching record already in the store, or "".
	existing string

	// create creates the resource and returns its ID.
	create func(ctx context.Context) (string, error)

	provision engine.CreateOperationParams
}

// provisionChain creates the resource unless it already exists, then
// creates its provision operation unless one is already recorded. The
// returned ref carries the resource ID even when the operation step failed.
// A non-empty notice means nothing had to be done.
func (o *Orchestrator) provisionChain(ctx context.Context, r *run, c chain) (engine.ResourceRef, engine.Operation, string, error) {
	ref := engine.ResourceRef{Type: c.kind}

	// Step 1: reuse or create the resource
	if c.existing != "" {
		ref.ID = c.existing
		if _, err := poller.FetchResourceOperations(ctx, o.transport, o.store, ref); err != nil {
			r.tel.Logger.WithError(err).
				WithResource(ref.Type, ref.ID).
				Debug("Failed to refresh operations of existing resource")
		}
	} else {
		id, err := c.create(ctx)
		if err != nil {
			return ref, engine.Operation{}, "", err
		}
		if id == "" {
			return ref, engine.Operation{}, "", engine.NewPermanentError(
				fmt.Sprintf("%s was created without an ID", c.label), nil).WithCode(engine.ErrCodeDecode)
		}
		ref.ID = id
		r.outbox.ResourceCreated(ref)
		r.tel.Logger.WithResource(ref.Type, ref.ID).Info("Resource created")
	}

	// Step 2: a recorded provision operation means the work is already done
	for _, existing := range o.store.SelectOperationsByResource(ref.Type, ref.ID) {
		if existing.Type == engine.OperationProvision {
			return ref, existing, fmt.Sprintf("%s has already been provisioned", c.label), nil
		}
	}

	// Step 3: create the provision operation
	op, err := o.createOperation(ctx, r, ref, c.provision)
	if err != nil {
		return ref, engine.Operation{}, "", err
	}
	o.watch(op)

	return ref, op, "", nil
}

// fetchInto GETs one resource, normalizes it and upserts it into table.
func fetchInto[W any, R stores.Record](ctx context.Context, transport engine.Transport, ref engine.ResourceRef, table *stores.Table[R], fn func(W) R) error {
	var wire W
	err := transport.Do(ctx, engine.Request{
		Method: http.MethodGet,
		Path:   "/" + ref.Type.CollectionPath() + "/:id",
		Params: map[string]string{"id": ref.ID},
	}, &wire)
	if err != nil {
		return err
	}
	table.Add(fn(wire))
	return nil
}

func validateRef(ref engine.ResourceRef) error {
	if err := ref.Type.Validate(); err != nil {
		return engine.NewValidationError(err.Error())
	}
	if ref.ID == "" {
		return engine.NewValidationError(fmt.Sprintf("%s id is required", displayName(ref.Type)))
	}
	return nil
}

// displayName is the user-facing name of a resource kind.
func displayName(kind engine.ResourceType) string {
	switch kind {
	case engine.ResourceTypeApp:
		return "App"
	case engine.ResourceTypeDatabase:
		return "Database"
	case engine.ResourceTypeEndpoint:
		return "Endpoint"
	case engine.ResourceTypeCertificate:
		return "Certificate"
	case engine.ResourceTypeLogDrain:
		return "Log drain"
	case engine.ResourceTypeMetricDrain:
		return "Metric drain"
	case engine.ResourceTypeEnvironment:
		return "Environment"
	case engine.ResourceTypeService:
		return "Service"
	default:
		return string(kind)
	}
}

// operationInput describes an operation against an existing resource to the
// admission policies, with the handle and environment taken from the store.
func (o *Orchestrator) operationInput(ref engine.ResourceRef, op engine.CreateOperationParams, params any) policy.Input {
	resource := &policy.ResourceInput{Type: ref.Type, ID: ref.ID}
	switch ref.Type {
	case engine.ResourceTypeApp:
		app := o.store.Apps.SelectByID(ref.ID)
		resource.Handle, resource.EnvironmentID = app.Handle, app.EnvironmentID
	case engine.ResourceTypeDatabase:
		db := o.store.Databases.SelectByID(ref.ID)
		resource.Handle, resource.EnvironmentID = db.Handle, db.EnvironmentID
	case engine.ResourceTypeLogDrain:
		drain := o.store.LogDrains.SelectByID(ref.ID)
		resource.Handle, resource.EnvironmentID = drain.Handle, drain.EnvironmentID
	case engine.ResourceTypeMetricDrain:
		drain := o.store.MetricDrains.SelectByID(ref.ID)
		resource.Handle, resource.EnvironmentID = drain.Handle, drain.EnvironmentID
	}
	return policy.Input{Resource: resource, Operation: &op, Params: params}
}
