package engine

import (
	"testing"
	"time"
)

var aggregateBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time {
	return aggregateBase.Add(time.Hour)
}

func opAt(id string, status OperationStatus, minutes int) Operation {
	return Operation{
		ID:        id,
		Type:      OperationProvision,
		Status:    status,
		UpdatedAt: aggregateBase.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestAggregateStatus_Empty(t *testing.T) {
	status, at := AggregateStatus(nil, fixedNow)

	if status != OperationStatusUnknown {
		t.Errorf("Expected unknown, got %s", status)
	}
	if !at.Equal(fixedNow()) {
		t.Errorf("Expected now() timestamp, got %v", at)
	}
}

func TestAggregateStatus_AllSucceeded(t *testing.T) {
	ops := []Operation{
		opAt("op1", OperationStatusSucceeded, 5),
		opAt("op2", OperationStatusSucceeded, 9),
		opAt("op3", OperationStatusSucceeded, 1),
	}

	status, at := AggregateStatus(ops, fixedNow)

	if status != OperationStatusSucceeded {
		t.Errorf("Expected succeeded, got %s", status)
	}
	if !at.Equal(aggregateBase.Add(9 * time.Minute)) {
		t.Errorf("Expected most recent UpdatedAt, got %v", at)
	}
}

func TestAggregateStatus_OldestNonSucceededWins(t *testing.T) {
	// The failure is older than the queued operation, so it is met first.
	ops := []Operation{
		opAt("queued", OperationStatusQueued, 20),
		opAt("failed", OperationStatusFailed, 10),
		opAt("done", OperationStatusSucceeded, 5),
	}

	status, at := AggregateStatus(ops, fixedNow)

	if status != OperationStatusFailed {
		t.Errorf("Expected failed, got %s", status)
	}
	if !at.Equal(aggregateBase.Add(10 * time.Minute)) {
		t.Errorf("Expected failed op UpdatedAt, got %v", at)
	}
}

func TestAggregateStatus_RunningBeforeFailure(t *testing.T) {
	ops := []Operation{
		opAt("failed", OperationStatusFailed, 30),
		opAt("running", OperationStatusRunning, 2),
	}

	status, at := AggregateStatus(ops, fixedNow)

	if status != OperationStatusRunning {
		t.Errorf("Expected running, got %s", status)
	}
	if !at.Equal(aggregateBase.Add(2 * time.Minute)) {
		t.Errorf("Expected running op UpdatedAt, got %v", at)
	}
}

func TestAggregateStatus_UnknownStatusesYieldUnknown(t *testing.T) {
	ops := []Operation{
		opAt("done", OperationStatusSucceeded, 1),
		opAt("odd", OperationStatusUnknown, 2),
	}

	status, at := AggregateStatus(ops, fixedNow)

	if status != OperationStatusUnknown {
		t.Errorf("Expected unknown, got %s", status)
	}
	if !at.Equal(fixedNow()) {
		t.Errorf("Expected now() timestamp, got %v", at)
	}
}

func TestAggregateStatus_StableForEqualTimestamps(t *testing.T) {
	ops := []Operation{
		opAt("first", OperationStatusRunning, 3),
		opAt("second", OperationStatusQueued, 3),
	}

	status, _ := AggregateStatus(ops, fixedNow)
	if status != OperationStatusRunning {
		t.Errorf("Expected input order to break ties, got %s", status)
	}
}

func TestAggregateStatus_DoesNotReorderInput(t *testing.T) {
	ops := []Operation{
		opAt("late", OperationStatusSucceeded, 9),
		opAt("early", OperationStatusSucceeded, 1),
	}

	AggregateStatus(ops, fixedNow)

	if ops[0].ID != "late" || ops[1].ID != "early" {
		t.Errorf("Input slice was reordered: %s, %s", ops[0].ID, ops[1].ID)
	}
}

type staticOperationReader map[string][]Operation

func (r staticOperationReader) SelectOperationsByResource(resourceType ResourceType, resourceID string) []Operation {
	return r[string(resourceType)+"/"+resourceID]
}

func TestResolveWorkflowStatus(t *testing.T) {
	reader := staticOperationReader{
		"database/db1": {opAt("op1", OperationStatusSucceeded, 1)},
		"vhost/ep1":    {opAt("op2", OperationStatusRunning, 4)},
	}

	status, _ := ResolveWorkflowStatus(reader, fixedNow,
		ResourceRef{Type: ResourceTypeDatabase, ID: "db1"},
		ResourceRef{Type: ResourceTypeEndpoint, ID: "ep1"},
		ResourceRef{Type: ResourceTypeApp, ID: ""},
	)
	if status != OperationStatusRunning {
		t.Errorf("Expected running, got %s", status)
	}

	status, _ = ResolveWorkflowStatus(reader, fixedNow, ResourceRef{Type: ResourceTypeDatabase, ID: "db1"})
	if status != OperationStatusSucceeded {
		t.Errorf("Expected succeeded, got %s", status)
	}
}
