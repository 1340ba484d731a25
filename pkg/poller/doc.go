// Package poller refreshes backend operations on a fixed interval.
//
// Start runs one cancellable loop: an immediate fetch, then a fixed delay
// between fetches with no backoff or jitter. Cancelling a loop stops future
// ticks but never aborts a fetch in flight, so its store write still lands.
//
// Supervisor keeps loops under keys such as "database/12" or "account/3".
// Registering a key again replaces the previous loop. PollOperation stops by
// itself once the operation reaches a terminal status, and WaitForOperation
// blocks a workflow until that happens.
package poller
