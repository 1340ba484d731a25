package engine

// CreateOperationParams holds the typed inputs for a new operation.
// Fields irrelevant to Type are ignored by BuildOperationBody.
type CreateOperationParams struct {
	Type            OperationType     `json:"type" yaml:"type"`
	ContainerCount  *int              `json:"container_count,omitempty" yaml:"container_count,omitempty"`
	ContainerSize   int               `json:"container_size,omitempty" yaml:"container_size,omitempty"`
	DiskSize        int               `json:"disk_size,omitempty" yaml:"disk_size,omitempty"`
	InstanceProfile string            `json:"instance_profile,omitempty" yaml:"instance_profile,omitempty"`
	Env             map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	GitRef          string            `json:"git_ref,omitempty" yaml:"git_ref,omitempty"`
	DockerRef       string            `json:"docker_ref,omitempty" yaml:"docker_ref,omitempty"`
}

// BuildOperationBody renders the request body for an operation.
//
// An unknown type yields an empty body; callers validate the type with
// OperationType.Validate before building.
func BuildOperationBody(p CreateOperationParams) map[string]any {
	body := map[string]any{}

	switch p.Type {
	case OperationProvision:
		body["type"] = string(p.Type)
		if p.ContainerSize > 0 {
			body["container_size"] = p.ContainerSize
		}
		if p.DiskSize > 0 {
			body["disk_size"] = p.DiskSize
		}
		if p.InstanceProfile != "" {
			body["instance_profile"] = p.InstanceProfile
		}

	case OperationScale:
		body["type"] = string(p.Type)
		body["disk_size"] = p.DiskSize
		body["container_size"] = p.ContainerSize
		body["instance_profile"] = p.InstanceProfile
		if p.ContainerCount != nil {
			body["container_count"] = *p.ContainerCount
		}

	case OperationConfigure:
		env := p.Env
		if env == nil {
			env = map[string]string{}
		}
		body["type"] = string(p.Type)
		body["env"] = env

	case OperationDeploy:
		body["type"] = string(p.Type)
		body["git_ref"] = p.GitRef
		if p.DockerRef != "" {
			body["docker_ref"] = p.DockerRef
		}

	case OperationDeprovision, OperationRestart, OperationRestartRecreate,
		OperationBackup, OperationReload, OperationRenew, OperationPurge, OperationPoll:
		body["type"] = string(p.Type)
	}

	return body
}
