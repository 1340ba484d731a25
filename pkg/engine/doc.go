// Package engine provides the core types and interfaces for the opsdeck
// deployment operation orchestrator.
//
// # Overview
//
// opsdeck drives a cloud application platform whose mutations are realized
// asynchronously by backend operations. A request to create a database, scale
// an app or attach an endpoint produces an Operation that moves through
// queued and running to succeeded or failed. The engine package holds the
// vocabulary shared by every other package:
//
//   - Records: Stack, Environment, App, AppConfiguration, Service, Database,
//     Endpoint, Certificate, LogDrain, MetricDrain and Operation
//   - Status vocabularies: OperationStatus, ProvisionStatus, OperationType
//   - Operation bodies: BuildOperationBody renders the request body for an
//     operation type
//   - Aggregation: AggregateStatus folds many operations into one workflow status
//   - Collaborators: Transport, Scheduler and ActionBus
//
// # Zero Values
//
// Lookups never return nil. The zero value of a record means "not found"
// and the Has<Kind> predicates tell a real record from the default:
//
//	db := store.Databases.SelectByID(id)
//	if !engine.HasDatabase(db) {
//	    // not loaded yet
//	}
//
// # Error Classification
//
// Backend and validation failures are reported as *RequestError, classified
// as transient, throttled, conflict or permanent. Use the helpers to inspect
// them:
//
//	if engine.IsNotFound(err) {
//	    // resource is gone
//	}
//	msg := engine.Message(err) // user-facing text
//
// # Status Aggregation
//
// AggregateStatus sorts operations by UpdatedAt, oldest first, and returns
// the first queued, running or failed operation it meets. Only a non-empty
// set where every operation succeeded aggregates to succeeded.
package engine
