// Package policy evaluates Rego admission policies before a workflow sends
// its first request.
//
// Every policy is a Rego module whose package defines a "deny" set. Each
// element is either a message string or an object:
//
//	deny contains violation if {
//		input.operation.type == "scale"
//		input.operation.container_count > 8
//		violation := {
//			"message": "scale above 8 containers needs approval",
//			"severity": "error",
//		}
//	}
//
// The input document is an Input: the workflow name, the target resource and
// the operation about to be created. Violations with severity error or
// critical block the workflow; warnings are reported and the workflow
// proceeds.
//
// Built-in policies cover handle naming, scale limits and destructive
// operations. Additional policies are loaded from .rego files, one policy
// per file, named after the file. A leading comment block may carry
// metadata:
//
//	# description: Keep production databases
//	# severity: error
//
// Loader.Watch reloads policy directories when files change.
package policy
