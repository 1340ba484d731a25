package engine

import (
	"time"
)

// Stack is a set of infrastructure shared by one or more environments.
type Stack struct {
	// ID is the unique identifier for this stack.
	ID string `json:"id"`

	// Name is the human-readable stack name.
	Name string `json:"name"`

	// Region is the cloud region the stack runs in.
	Region string `json:"region"`

	// OrganizationID is the owning organization, empty for shared stacks.
	OrganizationID string `json:"organization_id"`
}

// Environment groups apps and databases deployed on a stack.
type Environment struct {
	// ID is the unique identifier for this environment.
	ID string `json:"id"`

	// Handle is the human-readable environment name.
	Handle string `json:"handle"`

	// StackID is the stack this environment is deployed on.
	StackID string `json:"stack_id"`

	// OrganizationID is the organization owning the environment.
	OrganizationID string `json:"organization_id"`

	// Activated reports whether the environment accepts deployments.
	Activated bool `json:"activated"`
}

// App is a deployed application.
type App struct {
	ID                     string          `json:"id"`
	Handle                 string          `json:"handle"`
	EnvironmentID          string          `json:"environment_id"`
	GitRepo                string          `json:"git_repo"`
	Status                 ProvisionStatus `json:"status"`
	CurrentConfigurationID string          `json:"current_configuration_id"`
	CurrentImageID         string          `json:"current_image_id"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// AppConfiguration is the environment variable set of an app release.
type AppConfiguration struct {
	ID    string            `json:"id"`
	AppID string            `json:"app_id"`
	Env   map[string]string `json:"env"`
}

// Service is a process type of an app or the single service of a database.
type Service struct {
	ID                     string `json:"id"`
	Handle                 string `json:"handle"`
	AppID                  string `json:"app_id"`
	DatabaseID             string `json:"database_id"`
	EnvironmentID          string `json:"environment_id"`
	ProcessType            string `json:"process_type"`
	Command                string `json:"command"`
	ContainerCount         int    `json:"container_count"`
	ContainerMemoryLimitMB int    `json:"container_memory_limit_mb"`
	InstanceClass          string `json:"instance_class"`
}

// Database is a managed database resource.
type Database struct {
	ID               string          `json:"id"`
	Handle           string          `json:"handle"`
	EnvironmentID    string          `json:"environment_id"`
	Type             string          `json:"type"`
	Status           ProvisionStatus `json:"status"`
	ConnectionURL    string          `json:"connection_url"`
	DiskID           string          `json:"disk_id"`
	DiskSize         int             `json:"disk_size"`
	ContainerSize    int             `json:"container_size"`
	ServiceID        string          `json:"service_id"`
	DatabaseImageID  string          `json:"database_image_id"`
	InitializeFromID string          `json:"initialize_from_id"`
	EnableBackups    bool            `json:"enable_backups"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// EndpointType selects how an endpoint obtains its TLS certificate.
type EndpointType string

const (
	// EndpointTypeDefault uses the platform's default domain and certificate.
	EndpointTypeDefault EndpointType = "default"

	// EndpointTypeManaged provisions a certificate automatically via ACME.
	EndpointTypeManaged EndpointType = "managed"

	// EndpointTypeCustom uses a user-supplied certificate.
	EndpointTypeCustom EndpointType = "custom"
)

// RequiresCertificate reports whether the endpoint type needs a user certificate.
func (t EndpointType) RequiresCertificate() bool {
	return t == EndpointTypeCustom
}

// Endpoint exposes a service over the network.
type Endpoint struct {
	ID            string          `json:"id"`
	ServiceID     string          `json:"service_id"`
	CertificateID string          `json:"certificate_id"`
	Type          EndpointType    `json:"type"`
	ExternalHost  string          `json:"external_host"`
	VirtualDomain string          `json:"virtual_domain"`
	UserDomain    string          `json:"user_domain"`
	Internal      bool            `json:"internal"`
	Acme          bool            `json:"acme"`
	ContainerPort string          `json:"container_port"`
	IPAllowlist   []string        `json:"ip_allowlist"`
	Platform      string          `json:"platform"`
	Status        ProvisionStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// URL returns the public https URL the endpoint answers on, or "" when it
// has no host yet.
func (e Endpoint) URL() string {
	for _, host := range []string{e.UserDomain, e.VirtualDomain, e.ExternalHost} {
		if host != "" {
			return "https://" + host
		}
	}
	return ""
}

// Certificate is a TLS certificate stored in an environment.
type Certificate struct {
	ID                string    `json:"id"`
	EnvironmentID     string    `json:"environment_id"`
	CommonName        string    `json:"common_name"`
	NotBefore         time.Time `json:"not_before"`
	NotAfter          time.Time `json:"not_after"`
	SHA256Fingerprint string    `json:"sha256_fingerprint"`
	Acme              bool      `json:"acme"`
	CreatedAt         time.Time `json:"created_at"`
}

// LogDrain ships container logs to an external destination.
type LogDrain struct {
	ID            string          `json:"id"`
	Handle        string          `json:"handle"`
	EnvironmentID string          `json:"environment_id"`
	DrainType     string          `json:"drain_type"`
	DrainHost     string          `json:"drain_host"`
	DrainPort     string          `json:"drain_port"`
	URL           string          `json:"url"`
	Status        ProvisionStatus `json:"status"`
}

// MetricDrain ships container metrics to an external destination.
type MetricDrain struct {
	ID            string          `json:"id"`
	Handle        string          `json:"handle"`
	EnvironmentID string          `json:"environment_id"`
	DrainType     string          `json:"drain_type"`
	URL           string          `json:"url"`
	Database      string          `json:"database"`
	Status        ProvisionStatus `json:"status"`
}

// Operation is a unit of backend work against exactly one resource.
// Operations are only ever refreshed from the backend, never mutated locally.
type Operation struct {
	// ID is the unique identifier for this operation.
	ID string `json:"id"`

	// Type is the kind of work performed.
	Type OperationType `json:"type"`

	// Status is the last status reported by the backend.
	Status OperationStatus `json:"status"`

	// ResourceType is the kind of resource the operation acts on.
	ResourceType ResourceType `json:"resource_type"`

	// ResourceID is the ID of the resource the operation acts on.
	ResourceID string `json:"resource_id"`

	// EnvironmentID is the environment owning the resource.
	EnvironmentID string `json:"environment_id"`

	// UserName and UserEmail identify the actor who requested the operation.
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Note is an optional free-form annotation.
	Note string `json:"note"`

	// GitRef is the git reference deployed, for deploy operations.
	GitRef string `json:"git_ref"`

	ContainerCount  int    `json:"container_count"`
	ContainerSize   int    `json:"container_size"`
	DiskSize        int    `json:"disk_size"`
	InstanceProfile string `json:"instance_profile"`
}

// ResourceRef points at a single resource by kind and ID.
type ResourceRef struct {
	Type ResourceType `json:"type"`
	ID   string       `json:"id"`
}

// Ref returns the reference to the resource this operation acts on.
func (o Operation) Ref() ResourceRef {
	return ResourceRef{Type: o.ResourceType, ID: o.ResourceID}
}

// HasStack reports whether s is a loaded record rather than the empty default.
func HasStack(s Stack) bool { return s.ID != "" }

// HasEnvironment reports whether e is a loaded record rather than the empty default.
func HasEnvironment(e Environment) bool { return e.ID != "" }

// HasApp reports whether a is a loaded record rather than the empty default.
func HasApp(a App) bool { return a.ID != "" }

// HasAppConfiguration reports whether c is a loaded record rather than the empty default.
func HasAppConfiguration(c AppConfiguration) bool { return c.ID != "" }

// HasService reports whether s is a loaded record rather than the empty default.
func HasService(s Service) bool { return s.ID != "" }

// HasDatabase reports whether d is a loaded record rather than the empty default.
func HasDatabase(d Database) bool { return d.ID != "" }

// HasEndpoint reports whether e is a loaded record rather than the empty default.
func HasEndpoint(e Endpoint) bool { return e.ID != "" }

// HasCertificate reports whether c is a loaded record rather than the empty default.
func HasCertificate(c Certificate) bool { return c.ID != "" }

// HasLogDrain reports whether d is a loaded record rather than the empty default.
func HasLogDrain(d LogDrain) bool { return d.ID != "" }

// HasMetricDrain reports whether d is a loaded record rather than the empty default.
func HasMetricDrain(d MetricDrain) bool { return d.ID != "" }

// HasOperation reports whether o is a loaded record rather than the empty default.
func HasOperation(o Operation) bool { return o.ID != "" }

// RecordID implementations let the store key every kind by its identifier.

func (s Stack) RecordID() string            { return s.ID }
func (e Environment) RecordID() string      { return e.ID }
func (a App) RecordID() string              { return a.ID }
func (c AppConfiguration) RecordID() string { return c.ID }
func (s Service) RecordID() string          { return s.ID }
func (d Database) RecordID() string         { return d.ID }
func (e Endpoint) RecordID() string         { return e.ID }
func (c Certificate) RecordID() string      { return c.ID }
func (d LogDrain) RecordID() string         { return d.ID }
func (d MetricDrain) RecordID() string      { return d.ID }
func (o Operation) RecordID() string        { return o.ID }
