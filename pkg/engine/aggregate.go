package engine

import (
	"sort"
	"time"
)

// AggregateStatus folds the statuses of several operations into one.
//
// Operations are visited oldest first by UpdatedAt (ties keep input order).
// The first queued, running or failed operation decides the result and its
// UpdatedAt is returned. A non-empty set where every operation succeeded
// yields succeeded with the newest UpdatedAt. Anything else, including an
// empty set, yields unknown stamped with now().
func AggregateStatus(ops []Operation, now func() time.Time) (OperationStatus, time.Time) {
	if now == nil {
		now = time.Now
	}

	sorted := make([]Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.Before(sorted[j].UpdatedAt)
	})

	allSucceeded := len(sorted) > 0
	for _, op := range sorted {
		switch op.Status {
		case OperationStatusQueued, OperationStatusRunning, OperationStatusFailed:
			return op.Status, op.UpdatedAt
		case OperationStatusSucceeded:
		default:
			allSucceeded = false
		}
	}

	if allSucceeded {
		return OperationStatusSucceeded, sorted[len(sorted)-1].UpdatedAt
	}
	return OperationStatusUnknown, now()
}

// ResolveWorkflowStatus aggregates the operations currently recorded for refs.
// It reads the store on every call.
func ResolveWorkflowStatus(store OperationReader, now func() time.Time, refs ...ResourceRef) (OperationStatus, time.Time) {
	var ops []Operation
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		ops = append(ops, store.SelectOperationsByResource(ref.Type, ref.ID)...)
	}
	return AggregateStatus(ops, now)
}
