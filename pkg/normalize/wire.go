package normalize

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString accepts a JSON string, number or null. The backend sends IDs and
// ports as numbers in some payloads and strings in others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Link is a HAL link object.
type Link struct {
	Href string `json:"href"`
}

// Links is the _links section of a HAL resource.
type Links map[string]*Link

// Get returns the named link, or nil.
func (l Links) Get(name string) *Link {
	if l == nil {
		return nil
	}
	return l[name]
}

// StackResponse is the wire form of a stack.
type StackResponse struct {
	ID             FlexString `json:"id"`
	Name           string     `json:"name"`
	Region         string     `json:"region"`
	OrganizationID FlexString `json:"organization_id"`
	Links          Links      `json:"_links"`
}

// EnvironmentResponse is the wire form of an environment ("account").
type EnvironmentResponse struct {
	ID        FlexString `json:"id"`
	Handle    string     `json:"handle"`
	Activated *bool      `json:"activated"`
	Links     Links      `json:"_links"`
}

// AppResponse is the wire form of an app.
type AppResponse struct {
	ID        FlexString `json:"id"`
	Handle    string     `json:"handle"`
	GitRepo   string     `json:"git_repo"`
	Status    string     `json:"status"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
	Links     Links      `json:"_links"`
}

// AppConfigurationResponse is the wire form of an app configuration.
type AppConfigurationResponse struct {
	ID    FlexString     `json:"id"`
	Env   map[string]any `json:"env"`
	Links Links          `json:"_links"`
}

// ServiceResponse is the wire form of a service.
type ServiceResponse struct {
	ID                     FlexString `json:"id"`
	Handle                 string     `json:"handle"`
	ProcessType            string     `json:"process_type"`
	Command                string     `json:"command"`
	ContainerCount         int        `json:"container_count"`
	ContainerMemoryLimitMB int        `json:"container_memory_limit_mb"`
	InstanceClass          string     `json:"instance_class"`
	Links                  Links      `json:"_links"`
}

// DiskResponse is the embedded disk of a database.
type DiskResponse struct {
	ID   FlexString `json:"id"`
	Size int        `json:"size"`
}

// DatabaseResponse is the wire form of a database.
type DatabaseResponse struct {
	ID            FlexString `json:"id"`
	Handle        string     `json:"handle"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	ConnectionURL string     `json:"connection_url"`
	ContainerSize int        `json:"container_size"`
	EnableBackups *bool      `json:"enable_backups"`
	CreatedAt     string     `json:"created_at"`
	UpdatedAt     string     `json:"updated_at"`
	Links         Links      `json:"_links"`
	Embedded      struct {
		Disk *DiskResponse `json:"disk"`
	} `json:"_embedded"`
}

// EndpointResponse is the wire form of an endpoint ("vhost").
type EndpointResponse struct {
	ID            FlexString `json:"id"`
	Default       bool       `json:"default"`
	Acme          bool       `json:"acme"`
	ExternalHost  string     `json:"external_host"`
	VirtualDomain string     `json:"virtual_domain"`
	UserDomain    string     `json:"user_domain"`
	Internal      bool       `json:"internal"`
	ContainerPort FlexString `json:"container_port"`
	IPWhitelist   []string   `json:"ip_whitelist"`
	Platform      string     `json:"platform"`
	Status        string     `json:"status"`
	CreatedAt     string     `json:"created_at"`
	Links         Links      `json:"_links"`
}

// CertificateResponse is the wire form of a certificate.
type CertificateResponse struct {
	ID                FlexString `json:"id"`
	CommonName        string     `json:"common_name"`
	NotBefore         string     `json:"not_before"`
	NotAfter          string     `json:"not_after"`
	SHA256Fingerprint string     `json:"sha256_fingerprint"`
	Acme              bool       `json:"acme"`
	CreatedAt         string     `json:"created_at"`
	Links             Links      `json:"_links"`
}

// LogDrainResponse is the wire form of a log drain.
type LogDrainResponse struct {
	ID        FlexString `json:"id"`
	Handle    string     `json:"handle"`
	DrainType string     `json:"drain_type"`
	DrainHost string     `json:"drain_host"`
	DrainPort FlexString `json:"drain_port"`
	URL       string     `json:"url"`
	Status    string     `json:"status"`
	Links     Links      `json:"_links"`
}

// MetricDrainResponse is the wire form of a metric drain.
type MetricDrainResponse struct {
	ID        FlexString `json:"id"`
	Handle    string     `json:"handle"`
	DrainType string     `json:"drain_type"`
	URL       string     `json:"url"`
	Database  string     `json:"database"`
	Status    string     `json:"status"`
	Links     Links      `json:"_links"`
}

// OperationResponse is the wire form of an operation.
type OperationResponse struct {
	ID              FlexString `json:"id"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	ResourceType    string     `json:"resource_type"`
	UserName        string     `json:"user_name"`
	UserEmail       string     `json:"user_email"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
	Note            string     `json:"note"`
	GitRef          string     `json:"git_ref"`
	ContainerCount  int        `json:"container_count"`
	ContainerSize   int        `json:"container_size"`
	DiskSize        int        `json:"disk_size"`
	InstanceProfile string     `json:"instance_profile"`
	Links           Links      `json:"_links"`
}

// Page is a HAL collection response. Elements stay raw until a typed
// helper decodes them so that one malformed element cannot spoil the page.
type Page struct {
	Embedded    map[string][]json.RawMessage `json:"_embedded"`
	Links       Links                        `json:"_links"`
	TotalCount  int                          `json:"total_count"`
	PerPage     int                          `json:"per_page"`
	CurrentPage int                          `json:"current_page"`
}

// NextHref returns the href of the next page, or "".
func (p Page) NextHref() string {
	if next := p.Links.Get("next"); next != nil {
		return strings.TrimSpace(next.Href)
	}
	return ""
}
