package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

func TestExtractIDFromLink(t *testing.T) {
	tests := []struct {
		name string
		link *Link
		want string
	}{
		{"nil link", nil, ""},
		{"empty href", &Link{Href: ""}, ""},
		{"absolute url", &Link{Href: "https://api.example.com/accounts/42"}, "42"},
		{"relative path", &Link{Href: "/databases/7"}, "7"},
		{"trailing slash", &Link{Href: "https://api.example.com/apps/9/"}, ""},
		{"collection href", &Link{Href: "https://api.example.com/databases/"}, ""},
		{"query string", &Link{Href: "https://api.example.com/apps/9?page=2"}, "9"},
		{"unparsable", &Link{Href: "http://[::1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIDFromLink(tt.link))
		})
	}
}

func TestDatabase(t *testing.T) {
	payload := `{
		"id": 12,
		"handle": "pg-main",
		"type": "postgresql",
		"status": "provisioned",
		"connection_url": "postgresql://aptible:pw@db-stack-12.aptible.in:5432/db",
		"created_at": "2024-01-02T03:04:05.000Z",
		"updated_at": "not a time",
		"_links": {
			"account": {"href": "https://api.example.com/accounts/3"},
			"service": {"href": "https://api.example.com/services/44"},
			"initialize_from": null
		},
		"_embedded": {"disk": {"id": 8, "size": 10}}
	}`

	var wire DatabaseResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &wire))

	db := Database(wire)

	assert.Equal(t, "12", db.ID)
	assert.Equal(t, "pg-main", db.Handle)
	assert.Equal(t, "3", db.EnvironmentID)
	assert.Equal(t, "44", db.ServiceID)
	assert.Equal(t, "", db.InitializeFromID)
	assert.Equal(t, engine.ProvisionStatusProvisioned, db.Status)
	assert.Equal(t, 10, db.DiskSize)
	assert.Equal(t, "8", db.DiskID)
	assert.False(t, db.EnableBackups)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), db.CreatedAt)
	assert.True(t, db.UpdatedAt.IsZero())
}

func TestDatabase_Defaults(t *testing.T) {
	db := Database(DatabaseResponse{ID: "1"})

	assert.Equal(t, engine.ProvisionStatusUnknown, db.Status)
	assert.Equal(t, "", db.EnvironmentID)
	assert.Equal(t, 0, db.DiskSize)
	assert.True(t, db.CreatedAt.IsZero())
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		wire     EndpointResponse
		wantType engine.EndpointType
	}{
		{"default", EndpointResponse{ID: "1", Default: true}, engine.EndpointTypeDefault},
		{"managed", EndpointResponse{ID: "2", Acme: true}, engine.EndpointTypeManaged},
		{"custom", EndpointResponse{ID: "3"}, engine.EndpointTypeCustom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := Endpoint(tt.wire)
			assert.Equal(t, tt.wantType, ep.Type)
			assert.Equal(t, "", ep.ContainerPort)
			assert.NotNil(t, ep.IPAllowlist)
		})
	}
}

func TestEndpoint_Links(t *testing.T) {
	payload := `{
		"id": "5",
		"container_port": 8080,
		"virtual_domain": "app.on-aptible.com",
		"_links": {
			"service": {"href": "/services/77"},
			"certificate": {"href": "/certificates/91"}
		}
	}`

	var wire EndpointResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &wire))

	ep := Endpoint(wire)
	assert.Equal(t, "77", ep.ServiceID)
	assert.Equal(t, "91", ep.CertificateID)
	assert.Equal(t, "8080", ep.ContainerPort)
	assert.Equal(t, "https://app.on-aptible.com", ep.URL())
}

func TestOperation(t *testing.T) {
	payload := `{
		"id": 900,
		"type": "provision",
		"status": "running",
		"user_name": "Ops Person",
		"created_at": "2024-05-01T10:00:00Z",
		"updated_at": "2024-05-01T10:05:00Z",
		"_links": {
			"resource": {"href": "https://api.example.com/databases/12"},
			"account": {"href": "https://api.example.com/accounts/3"}
		}
	}`

	var wire OperationResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &wire))

	op := Operation(wire)
	assert.Equal(t, "900", op.ID)
	assert.Equal(t, engine.OperationProvision, op.Type)
	assert.Equal(t, engine.OperationStatusRunning, op.Status)
	assert.Equal(t, engine.ResourceTypeDatabase, op.ResourceType)
	assert.Equal(t, "12", op.ResourceID)
	assert.Equal(t, "3", op.EnvironmentID)
}

func TestOperation_ResourceTypeFromName(t *testing.T) {
	op := Operation(OperationResponse{ID: "1", ResourceType: "Vhost", Status: "bogus"})

	assert.Equal(t, engine.ResourceTypeEndpoint, op.ResourceType)
	assert.Equal(t, engine.OperationStatusUnknown, op.Status)
}

func TestAppConfiguration(t *testing.T) {
	payload := `{
		"id": 4,
		"env": {"DATABASE_URL": "postgresql://u:p@db-x-10.aptible.in:5432/db", "WORKERS": 4, "EMPTY": null},
		"_links": {"resource": {"href": "/apps/8"}}
	}`

	var wire AppConfigurationResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &wire))

	cfg := AppConfiguration(wire)
	assert.Equal(t, "8", cfg.AppID)
	assert.Equal(t, "4", cfg.Env["WORKERS"])
	assert.Equal(t, "", cfg.Env["EMPTY"])
	assert.Contains(t, cfg.Env["DATABASE_URL"], "aptible.in")
}

func TestEnvironmentAndStack(t *testing.T) {
	active := true
	env := Environment(EnvironmentResponse{
		ID:        "3",
		Handle:    "prod",
		Activated: &active,
		Links:     Links{"stack": {Href: "/stacks/2"}, "organization": {Href: "/organizations/abc"}},
	})
	assert.Equal(t, "2", env.StackID)
	assert.Equal(t, "abc", env.OrganizationID)
	assert.True(t, env.Activated)

	stack := Stack(StackResponse{ID: "2", Name: "shared-us-east-1", Links: Links{"organization": {Href: "/organizations/abc"}}})
	assert.Equal(t, "abc", stack.OrganizationID)
}

func TestOperations_SkipsMalformedElements(t *testing.T) {
	payload := `{
		"_embedded": {
			"operations": [
				{"id": 1, "type": "provision", "status": "succeeded"},
				{"id": {"nested": true}},
				"garbage",
				{"type": "scale"},
				{"id": 2, "type": "scale", "status": "queued"}
			]
		},
		"_links": {"next": {"href": "/databases/1/operations?page=2"}}
	}`

	var page Page
	require.NoError(t, json.Unmarshal([]byte(payload), &page))

	ops := Operations(page)
	require.Len(t, ops, 2)
	assert.Equal(t, "1", ops[0].ID)
	assert.Equal(t, "2", ops[1].ID)
	assert.Equal(t, "/databases/1/operations?page=2", page.NextHref())
}

func TestEmbedded_MissingKey(t *testing.T) {
	assert.Empty(t, Databases(Page{}))
}
