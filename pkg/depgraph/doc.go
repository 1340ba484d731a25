// Package depgraph detects references to other resources in an app's
// configuration and joins them against the resource store.
//
// Detection is a heuristic over string conventions, not declared foreign
// keys. A value whose host looks like "<id>.<provider-domain>:" references a
// database; any other value containing "https://" may reference an app
// endpoint. A value is classified by at most one rule.
//
// Resolution is partial by nature: a node whose resource is not in the
// snapshot is dropped, since the referenced resource may live outside the
// loaded scope.
package depgraph
