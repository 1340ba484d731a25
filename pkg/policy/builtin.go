package policy

// BuiltinPolicies returns the policies compiled into opsdeck.
func BuiltinPolicies() []Policy {
	return []Policy{
		handleNamingPolicy(),
		scaleLimitsPolicy(),
		destructiveOperationsPolicy(),
	}
}

// handleNamingPolicy enforces the handle format the platform accepts.
func handleNamingPolicy() Policy {
	return Policy{
		Name:        "handle-naming",
		Description: "Handles are lowercase letters, digits, '.', '_' and '-', start with a letter or digit, and are at most 64 characters",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package opsdeck.policies.naming

deny contains violation if {
	handle := input.resource.handle
	handle != ""
	not regex.match("^[a-z0-9][a-z0-9._-]*$", handle)
	violation := {
		"message": sprintf("Handle '%s' must start with a lowercase letter or digit and contain only lowercase letters, digits, '.', '_' and '-'", [handle]),
	}
}

deny contains violation if {
	handle := input.resource.handle
	count(handle) > 64
	violation := {
		"message": sprintf("Handle '%s' must not exceed 64 characters", [handle]),
	}
}`,
	}
}

// scaleLimitsPolicy rejects operations sized beyond what one request may ask for.
func scaleLimitsPolicy() Policy {
	return Policy{
		Name:        "scale-limits",
		Description: "At most 32 containers and 16384 GB of disk per operation",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package opsdeck.policies.scale

max_containers := 32

max_disk_size := 16384

deny contains violation if {
	n := input.operation.container_count
	n > max_containers
	violation := {
		"message": sprintf("container_count %d exceeds the limit of %d", [n, max_containers]),
	}
}

deny contains violation if {
	n := input.operation.container_count
	n < 0
	violation := {
		"message": sprintf("container_count %d must not be negative", [n]),
	}
}

deny contains violation if {
	size := input.operation.disk_size
	size > max_disk_size
	violation := {
		"message": sprintf("disk_size %d GB exceeds the limit of %d GB", [size, max_disk_size]),
	}
}`,
	}
}

// destructiveOperationsPolicy warns before operations that destroy data.
func destructiveOperationsPolicy() Policy {
	return Policy{
		Name:        "destructive-operations",
		Description: "Warns before deprovisioning a database or purging a resource",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Rego: `package opsdeck.policies.destructive

deny contains violation if {
	input.operation.type == "deprovision"
	input.resource.type == "database"
	violation := {
		"message": sprintf("Deprovisioning database %s destroys its data", [label(input.resource)]),
	}
}

deny contains violation if {
	input.operation.type == "purge"
	violation := {
		"message": sprintf("Purging %s %s cannot be undone", [input.resource.type, label(input.resource)]),
	}
}

label(resource) := resource.handle if {
	resource.handle != ""
} else := resource.id`,
	}
}
