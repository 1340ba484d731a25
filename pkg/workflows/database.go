package workflows

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/policy"
)

// DatabaseParams describes a database to provision.
type DatabaseParams struct {
	Handle          string `json:"handle" yaml:"handle" validate:"required"`
	EnvironmentID   string `json:"environment_id" yaml:"environment_id" validate:"required"`
	Type            string `json:"type" yaml:"type" validate:"required"`
	DatabaseImageID string `json:"database_image_id,omitempty" yaml:"database_image_id,omitempty"`
	ContainerSize   int    `json:"container_size,omitempty" yaml:"container_size,omitempty" validate:"gte=0"`
	DiskSize        int    `json:"disk_size,omitempty" yaml:"disk_size,omitempty" validate:"gte=0"`
	InstanceProfile string `json:"instance_profile,omitempty" yaml:"instance_profile,omitempty"`
}

// ProvisionDatabase creates a database and its provision operation.
//
// A database with the same handle in the same environment is reused instead
// of created. When a provision operation is already recorded for it, the run
// succeeds with a notice and creates nothing.
func (o *Orchestrator) ProvisionDatabase(ctx context.Context, params DatabaseParams) *Result {
	ctx, r := o.begin(ctx, WorkflowProvisionDatabase)
	o.provisionDatabase(ctx, r, params, r.result)
	return r.finish(ctx, fmt.Sprintf("Database %s is provisioning", params.Handle))
}

// ProvisionDatabases provisions every item concurrently and waits for all of
// them. The run fails when any item fails, with every item error joined.
// Databases created before an operation failure are left in place. Items
// that were already provisioned are reported as notices.
func (o *Orchestrator) ProvisionDatabases(ctx context.Context, items []DatabaseParams) *Result {
	ctx, r := o.begin(ctx, WorkflowProvisionDatabases)
	res := r.result

	if len(items) == 0 {
		res.fail(engine.NewValidationError("at least one database is required"))
		return r.finish(ctx, "")
	}

	res.Items = make([]*Result, len(items))
	for i := range items {
		res.Items[i] = &Result{Workflow: WorkflowProvisionDatabase, RunID: res.RunID}
	}

	var g errgroup.Group
	g.SetLimit(o.config.MaxParallel)
	for i, params := range items {
		item := res.Items[i]
		g.Go(func() error {
			o.provisionDatabase(ctx, r, params, item)
			return nil
		})
	}
	_ = g.Wait()

	var messages, notices []string
	provisioning := 0
	for _, item := range res.Items {
		switch {
		case item.Error != "":
			messages = append(messages, item.Error)
		case item.Notice != "":
			notices = append(notices, item.Notice)
		default:
			provisioning++
		}
	}
	if len(messages) > 0 {
		res.Error = strings.Join(messages, ", ")
		return r.finish(ctx, "")
	}

	// A batch with nothing left to do ends as a single notice; otherwise
	// each skipped item gets its own notice ahead of the success banner.
	if provisioning == 0 {
		res.Notice = strings.Join(notices, ", ")
		return r.finish(ctx, "")
	}
	for _, notice := range notices {
		r.outbox.Notice(notice)
	}
	return r.finish(ctx, fmt.Sprintf("%d databases are provisioning", provisioning))
}

func (o *Orchestrator) provisionDatabase(ctx context.Context, r *run, params DatabaseParams, res *Result) {
	if err := validateParams(params); err != nil {
		res.fail(err)
		return
	}

	provision := engine.CreateOperationParams{
		Type:            engine.OperationProvision,
		ContainerSize:   params.ContainerSize,
		DiskSize:        params.DiskSize,
		InstanceProfile: params.InstanceProfile,
	}
	existing := o.store.SelectDatabaseByHandle(params.Handle, params.EnvironmentID)

	err := r.admit(ctx, policy.Input{
		Resource: &policy.ResourceInput{
			Type:          engine.ResourceTypeDatabase,
			ID:            existing.ID,
			Handle:        params.Handle,
			EnvironmentID: params.EnvironmentID,
		},
		Operation: &provision,
		Params:    params,
	})
	if err != nil {
		res.fail(err)
		return
	}

	res.apply(o.provisionChain(ctx, r, chain{
		kind:     engine.ResourceTypeDatabase,
		label:    "Database " + params.Handle,
		existing: existing.ID,
		create: func(ctx context.Context) (string, error) {
			return o.createDatabase(ctx, params)
		},
		provision: provision,
	}))
}

func (o *Orchestrator) createDatabase(ctx context.Context, params DatabaseParams) (string, error) {
	body := map[string]any{
		"handle": params.Handle,
		"type":   params.Type,
	}
	if params.DatabaseImageID != "" {
		body["database_image_id"] = params.DatabaseImageID
	}
	if params.ContainerSize > 0 {
		body["initial_container_size"] = params.ContainerSize
	}
	if params.DiskSize > 0 {
		body["initial_disk_size"] = params.DiskSize
	}

	var resp normalize.DatabaseResponse
	err := o.transport.Do(ctx, engine.Request{
		Method: http.MethodPost,
		Path:   "/accounts/:envId/databases",
		Params: map[string]string{"envId": params.EnvironmentID},
		Body:   body,
	}, &resp)
	if err != nil {
		return "", err
	}

	db := normalize.Database(resp)
	if db.EnvironmentID == "" {
		db.EnvironmentID = params.EnvironmentID
	}
	if db.Handle == "" {
		db.Handle = params.Handle
	}
	o.store.Databases.Add(db)

	return db.ID, nil
}
