// Package stores provides the resource store for opsdeck: typed in-memory
// tables with memoized selectors, backed optionally by a SQLite journal
// (WAL mode, embedded migrations) that keeps records, workflow audit
// entries and emitted actions across restarts.
package stores
