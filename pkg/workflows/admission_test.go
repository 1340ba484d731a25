package workflows

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/policy"
	"github.com/opsdeck/opsdeck/pkg/stores"
)

func newPolicyEngine(t *testing.T) *policy.Engine {
	t.Helper()
	eng, err := policy.NewEngine(zerolog.Nop())
	require.NoError(t, err)
	return eng
}

func TestAdmission_DeniedHandleSendsNoRequest(t *testing.T) {
	transport := newFakeTransport().
		on(http.MethodPost, pathDatabases, created("12"))
	orch := newTestOrchestrator(transport, stores.NewResourceStore(), WithAdmission(newPolicyEngine(t)))

	params := pg()
	params.Handle = "Orders DB"
	res := orch.ProvisionDatabase(context.Background(), params)

	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "Handle 'Orders DB'")
	assert.Equal(t, 0, transport.total())
	assert.Equal(t, engine.ActionBannerError, res.Actions[len(res.Actions)-1].Type)
}

func TestAdmission_ScaleLimitDeniesOperation(t *testing.T) {
	transport := newFakeTransport().
		on(http.MethodPost, "/apps/:id/operations", operationCreated("91"))
	orch := newTestOrchestrator(transport, stores.NewResourceStore(), WithAdmission(newPolicyEngine(t)))

	count := 40
	res := orch.RunOperation(context.Background(), OperationParams{
		Resource:  engine.ResourceRef{Type: engine.ResourceTypeApp, ID: "5"},
		Operation: engine.CreateOperationParams{Type: engine.OperationScale, ContainerCount: &count},
	})

	require.True(t, res.Failed())
	assert.Equal(t, "container_count 40 exceeds the limit of 32", res.Error)
	assert.Equal(t, 0, transport.total())
}

func TestAdmission_WarningProceedsWithNotice(t *testing.T) {
	transport := newFakeTransport().
		on(http.MethodPost, pathDatabaseOperations, operationCreated("50")).
		on(http.MethodGet, pathOperation, statusSequence("deprovision", "succeeded"))
	store := stores.NewResourceStore()
	store.Databases.Add(engine.Database{ID: "12", Handle: "pg", EnvironmentID: "3"})
	orch := newTestOrchestrator(transport, store, WithAdmission(newPolicyEngine(t)))

	res := orch.Deprovision(context.Background(), engine.ResourceRef{Type: engine.ResourceTypeDatabase, ID: "12"})

	require.False(t, res.Failed(), res.Error)
	notices := actionsOfType(res.Actions, engine.ActionBannerNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, "Deprovisioning database pg destroys its data", notices[0].Message)
	assert.Equal(t, engine.ActionBannerSuccess, res.Actions[len(res.Actions)-1].Type)
}

type failingAdmission struct{}

func (failingAdmission) Evaluate(context.Context, policy.Input) (*policy.Result, error) {
	return nil, errors.New("policy store unavailable")
}

func TestAdmission_EvaluationFailureDoesNotBlock(t *testing.T) {
	transport := newFakeTransport().
		on(http.MethodPost, pathDatabases, created("12")).
		on(http.MethodPost, pathDatabaseOperations, operationCreated("88"))
	orch := newTestOrchestrator(transport, stores.NewResourceStore(), WithAdmission(failingAdmission{}))

	res := orch.ProvisionDatabase(context.Background(), pg())

	assert.False(t, res.Failed(), res.Error)
	assert.Equal(t, "88", res.OperationID)
}

type recordingAdmission struct {
	inputs []policy.Input
}

func (r *recordingAdmission) Evaluate(_ context.Context, input policy.Input) (*policy.Result, error) {
	r.inputs = append(r.inputs, input)
	return &policy.Result{Allowed: true}, nil
}

func TestAdmission_InputDescribesTarget(t *testing.T) {
	transport := endpointTransport()
	admission := &recordingAdmission{}
	orch := newTestOrchestrator(transport, stores.NewResourceStore(), WithAdmission(admission))

	res := orch.CreateEndpoint(context.Background(), customEndpoint())
	require.False(t, res.Failed(), res.Error)

	require.Len(t, admission.inputs, 1)
	input := admission.inputs[0]
	assert.Equal(t, WorkflowCreateEndpoint, input.Workflow)
	assert.Equal(t, engine.ResourceTypeEndpoint, input.Resource.Type)
	assert.Equal(t, engine.OperationProvision, input.Operation.Type)

	params, ok := input.Params.(EndpointParams)
	require.True(t, ok)
	assert.Equal(t, "[redacted]", params.PrivKey)
}
