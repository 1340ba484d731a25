// Package normalize maps HAL+JSON backend payloads onto the flat records of
// package engine.
//
// Relations arrive as _links; a record keeps only the ID of each related
// resource, taken from the last path segment of the link href. Every mapping
// is total: unset strings stay "", unset flags are false, unset numbers are
// 0, unparsable timestamps are the zero time and unset or unrecognized
// statuses are "unknown".
package normalize
