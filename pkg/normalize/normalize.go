package normalize

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// ExtractIDFromLink returns the trailing path segment of a HAL link href.
// A nil link, an empty href, an href that does not parse or one ending in
// "/" yields "".
func ExtractIDFromLink(link *Link) string {
	if link == nil || link.Href == "" {
		return ""
	}
	u, err := url.Parse(link.Href)
	if err != nil {
		return ""
	}
	return u.Path[strings.LastIndex(u.Path, "/")+1:]
}

// resourceTypeFromLink reads the collection segment before the ID,
// "/databases/12" gives ResourceTypeDatabase.
func resourceTypeFromLink(link *Link) engine.ResourceType {
	if ExtractIDFromLink(link) == "" {
		return ""
	}
	u, err := url.Parse(link.Href)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	return resourceTypeFromCollection(segments[len(segments)-2])
}

func resourceTypeFromCollection(collection string) engine.ResourceType {
	for _, t := range []engine.ResourceType{
		engine.ResourceTypeStack, engine.ResourceTypeEnvironment, engine.ResourceTypeApp,
		engine.ResourceTypeAppConfiguration, engine.ResourceTypeService, engine.ResourceTypeDatabase,
		engine.ResourceTypeEndpoint, engine.ResourceTypeCertificate, engine.ResourceTypeLogDrain,
		engine.ResourceTypeMetricDrain, engine.ResourceTypeOperation,
	} {
		if t.CollectionPath() == collection {
			return t
		}
	}
	return ""
}

// parseTime accepts RFC 3339 timestamps; anything else is the zero time.
func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func provisionStatus(value string) engine.ProvisionStatus {
	s := engine.ProvisionStatus(value)
	if s.Validate() != nil {
		return engine.ProvisionStatusUnknown
	}
	return s
}

func operationStatus(value string) engine.OperationStatus {
	s := engine.OperationStatus(value)
	if s.Validate() != nil {
		return engine.OperationStatusUnknown
	}
	return s
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

// Stack maps a stack payload.
func Stack(r StackResponse) engine.Stack {
	orgID := string(r.OrganizationID)
	if orgID == "" {
		orgID = ExtractIDFromLink(r.Links.Get("organization"))
	}
	return engine.Stack{
		ID:             string(r.ID),
		Name:           r.Name,
		Region:         r.Region,
		OrganizationID: orgID,
	}
}

// Environment maps an account payload. Activated defaults to false.
func Environment(r EnvironmentResponse) engine.Environment {
	return engine.Environment{
		ID:             string(r.ID),
		Handle:         r.Handle,
		StackID:        ExtractIDFromLink(r.Links.Get("stack")),
		OrganizationID: ExtractIDFromLink(r.Links.Get("organization")),
		Activated:      boolValue(r.Activated),
	}
}

// App maps an app payload.
func App(r AppResponse) engine.App {
	return engine.App{
		ID:                     string(r.ID),
		Handle:                 r.Handle,
		EnvironmentID:          ExtractIDFromLink(r.Links.Get("account")),
		GitRepo:                r.GitRepo,
		Status:                 provisionStatus(r.Status),
		CurrentConfigurationID: ExtractIDFromLink(r.Links.Get("current_configuration")),
		CurrentImageID:         ExtractIDFromLink(r.Links.Get("current_image")),
		CreatedAt:              parseTime(r.CreatedAt),
		UpdatedAt:              parseTime(r.UpdatedAt),
	}
}

// AppConfiguration maps a configuration payload. Non-string values are
// rendered with fmt; null values become "".
func AppConfiguration(r AppConfigurationResponse) engine.AppConfiguration {
	env := make(map[string]string, len(r.Env))
	for k, v := range r.Env {
		switch val := v.(type) {
		case nil:
			env[k] = ""
		case string:
			env[k] = val
		default:
			env[k] = fmt.Sprint(val)
		}
	}
	return engine.AppConfiguration{
		ID:    string(r.ID),
		AppID: ExtractIDFromLink(r.Links.Get("resource")),
		Env:   env,
	}
}

// Service maps a service payload.
func Service(r ServiceResponse) engine.Service {
	return engine.Service{
		ID:                     string(r.ID),
		Handle:                 r.Handle,
		AppID:                  ExtractIDFromLink(r.Links.Get("app")),
		DatabaseID:             ExtractIDFromLink(r.Links.Get("database")),
		EnvironmentID:          ExtractIDFromLink(r.Links.Get("account")),
		ProcessType:            r.ProcessType,
		Command:                r.Command,
		ContainerCount:         r.ContainerCount,
		ContainerMemoryLimitMB: r.ContainerMemoryLimitMB,
		InstanceClass:          r.InstanceClass,
	}
}

// Database maps a database payload. Disk size comes from the embedded disk
// when present.
func Database(r DatabaseResponse) engine.Database {
	db := engine.Database{
		ID:               string(r.ID),
		Handle:           r.Handle,
		EnvironmentID:    ExtractIDFromLink(r.Links.Get("account")),
		Type:             r.Type,
		Status:           provisionStatus(r.Status),
		ConnectionURL:    r.ConnectionURL,
		DiskID:           ExtractIDFromLink(r.Links.Get("disk")),
		ContainerSize:    r.ContainerSize,
		ServiceID:        ExtractIDFromLink(r.Links.Get("service")),
		DatabaseImageID:  ExtractIDFromLink(r.Links.Get("database_image")),
		InitializeFromID: ExtractIDFromLink(r.Links.Get("initialize_from")),
		EnableBackups:    boolValue(r.EnableBackups),
		CreatedAt:        parseTime(r.CreatedAt),
		UpdatedAt:        parseTime(r.UpdatedAt),
	}
	if disk := r.Embedded.Disk; disk != nil {
		db.DiskSize = disk.Size
		if db.DiskID == "" {
			db.DiskID = string(disk.ID)
		}
	}
	return db
}

// Endpoint maps a vhost payload. Default vhosts are "default", ACME vhosts
// are "managed" and everything else is "custom".
func Endpoint(r EndpointResponse) engine.Endpoint {
	endpointType := engine.EndpointTypeCustom
	switch {
	case r.Default:
		endpointType = engine.EndpointTypeDefault
	case r.Acme:
		endpointType = engine.EndpointTypeManaged
	}

	allowlist := r.IPWhitelist
	if allowlist == nil {
		allowlist = []string{}
	}

	return engine.Endpoint{
		ID:            string(r.ID),
		ServiceID:     ExtractIDFromLink(r.Links.Get("service")),
		CertificateID: ExtractIDFromLink(r.Links.Get("certificate")),
		Type:          endpointType,
		ExternalHost:  r.ExternalHost,
		VirtualDomain: r.VirtualDomain,
		UserDomain:    r.UserDomain,
		Internal:      r.Internal,
		Acme:          r.Acme,
		ContainerPort: string(r.ContainerPort),
		IPAllowlist:   allowlist,
		Platform:      r.Platform,
		Status:        provisionStatus(r.Status),
		CreatedAt:     parseTime(r.CreatedAt),
	}
}

// Certificate maps a certificate payload.
func Certificate(r CertificateResponse) engine.Certificate {
	return engine.Certificate{
		ID:                string(r.ID),
		EnvironmentID:     ExtractIDFromLink(r.Links.Get("account")),
		CommonName:        r.CommonName,
		NotBefore:         parseTime(r.NotBefore),
		NotAfter:          parseTime(r.NotAfter),
		SHA256Fingerprint: r.SHA256Fingerprint,
		Acme:              r.Acme,
		CreatedAt:         parseTime(r.CreatedAt),
	}
}

// LogDrain maps a log drain payload.
func LogDrain(r LogDrainResponse) engine.LogDrain {
	return engine.LogDrain{
		ID:            string(r.ID),
		Handle:        r.Handle,
		EnvironmentID: ExtractIDFromLink(r.Links.Get("account")),
		DrainType:     r.DrainType,
		DrainHost:     r.DrainHost,
		DrainPort:     string(r.DrainPort),
		URL:           r.URL,
		Status:        provisionStatus(r.Status),
	}
}

// MetricDrain maps a metric drain payload.
func MetricDrain(r MetricDrainResponse) engine.MetricDrain {
	return engine.MetricDrain{
		ID:            string(r.ID),
		Handle:        r.Handle,
		EnvironmentID: ExtractIDFromLink(r.Links.Get("account")),
		DrainType:     r.DrainType,
		URL:           r.URL,
		Database:      r.Database,
		Status:        provisionStatus(r.Status),
	}
}

// Operation maps an operation payload. The resource is read from the
// "resource" link; an explicit resource_type field takes precedence over
// the type implied by the link path.
func Operation(r OperationResponse) engine.Operation {
	resourceLink := r.Links.Get("resource")

	resourceType := engine.ResourceType(r.ResourceType)
	if resourceType.Validate() != nil {
		if fromLink := resourceTypeFromLink(resourceLink); fromLink != "" {
			resourceType = fromLink
		} else {
			resourceType = resourceTypeFromName(r.ResourceType)
		}
	}

	return engine.Operation{
		ID:              string(r.ID),
		Type:            engine.OperationType(r.Type),
		Status:          operationStatus(r.Status),
		ResourceType:    resourceType,
		ResourceID:      ExtractIDFromLink(resourceLink),
		EnvironmentID:   ExtractIDFromLink(r.Links.Get("account")),
		UserName:        r.UserName,
		UserEmail:       r.UserEmail,
		CreatedAt:       parseTime(r.CreatedAt),
		UpdatedAt:       parseTime(r.UpdatedAt),
		Note:            r.Note,
		GitRef:          r.GitRef,
		ContainerCount:  r.ContainerCount,
		ContainerSize:   r.ContainerSize,
		DiskSize:        r.DiskSize,
		InstanceProfile: r.InstanceProfile,
	}
}

// resourceTypeFromName maps the backend's class names ("Database", "Vhost")
// onto resource types.
func resourceTypeFromName(name string) engine.ResourceType {
	switch strings.ToLower(name) {
	case "database":
		return engine.ResourceTypeDatabase
	case "app":
		return engine.ResourceTypeApp
	case "vhost":
		return engine.ResourceTypeEndpoint
	case "service":
		return engine.ResourceTypeService
	case "certificate":
		return engine.ResourceTypeCertificate
	case "logdrain", "log_drain":
		return engine.ResourceTypeLogDrain
	case "metricdrain", "metric_drain":
		return engine.ResourceTypeMetricDrain
	case "account":
		return engine.ResourceTypeEnvironment
	default:
		return ""
	}
}
