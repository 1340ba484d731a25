package poller

import (
	"context"
	"net/http"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/stores"
)

// FetchOperation refreshes one operation from the backend and upserts it
// into the store. Resource and environment IDs missing from the response
// are kept from the stored record.
func FetchOperation(ctx context.Context, transport engine.Transport, store *stores.ResourceStore, opID string) (engine.Operation, error) {
	var resp normalize.OperationResponse
	err := transport.Do(ctx, engine.Request{
		Method: http.MethodGet,
		Path:   "/operations/:id",
		Params: map[string]string{"id": opID},
	}, &resp)
	if err != nil {
		return engine.Operation{}, err
	}

	op := normalize.Operation(resp)
	if prev := store.Operations.SelectByID(op.ID); prev.ID != "" {
		if op.ResourceID == "" {
			op.ResourceID = prev.ResourceID
		}
		if op.ResourceType == "" {
			op.ResourceType = prev.ResourceType
		}
		if op.EnvironmentID == "" {
			op.EnvironmentID = prev.EnvironmentID
		}
	}
	store.Operations.Add(op)
	return op, nil
}

// FetchResourceOperations refreshes every operation of one resource,
// following "next" links, and upserts them into the store.
func FetchResourceOperations(ctx context.Context, transport engine.Transport, store *stores.ResourceStore, ref engine.ResourceRef) ([]engine.Operation, error) {
	req := engine.Request{
		Method: http.MethodGet,
		Path:   "/" + ref.Type.CollectionPath() + "/:id/operations",
		Params: map[string]string{"id": ref.ID},
	}

	var ops []engine.Operation
	err := fetchPages(ctx, transport, req, func(page normalize.Page) {
		for _, op := range normalize.Operations(page) {
			if op.ResourceID == "" {
				op.ResourceID = ref.ID
			}
			if op.ResourceType == "" {
				op.ResourceType = ref.Type
			}
			ops = append(ops, op)
		}
	})
	if err != nil {
		return nil, err
	}

	store.Operations.Add(ops...)
	return ops, nil
}
