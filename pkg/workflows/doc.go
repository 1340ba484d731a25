// Package workflows implements the provisioning workflows of opsdeck.
//
// A workflow is a short sequence of backend calls: create a resource, then
// create an operation against it. Steps that depend on an earlier result run
// in order; the items of a batch run concurrently and are all awaited.
//
// Workflows never return Go errors. Every call returns a *Result whose Error
// field carries the user-facing message of the first failing step, together
// with every identifier created before that step, so callers can always link
// to what exists on the backend. Actions emitted during the run (banners,
// resource-created and operation-created events) are recorded on the result
// and forwarded to the configured action bus.
//
// Only Deprovision waits for its operation to finish. The other workflows
// hand the created operation to the polling supervisor when one is
// configured and return immediately.
package workflows
