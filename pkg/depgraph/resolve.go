package depgraph

import (
	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/stores"
)

// DatabaseDependency is a database referenced by a configuration value.
type DatabaseDependency struct {
	Database engine.Database `json:"database"`
	Why      Node            `json:"why"`
}

// AppDependency is an app reached through one of its endpoint URLs.
type AppDependency struct {
	App      engine.App      `json:"app"`
	Endpoint engine.Endpoint `json:"endpoint"`
	Why      Node            `json:"why"`
}

// Dependencies holds every resolved reference of one configuration.
type Dependencies struct {
	Databases []DatabaseDependency `json:"databases"`
	Apps      []AppDependency      `json:"apps"`
}

// Len returns the number of resolved references.
func (d Dependencies) Len() int {
	return len(d.Databases) + len(d.Apps)
}

// ResolveDatabaseDeps joins database nodes to databases by exact ID.
func ResolveDatabaseDeps(graph []Node, snapshot stores.Snapshot) []DatabaseDependency {
	byID := make(map[string]engine.Database, len(snapshot.Databases))
	for _, db := range snapshot.Databases {
		byID[db.ID] = db
	}

	deps := make([]DatabaseDependency, 0)
	for _, node := range graph {
		if node.Type != NodeTypeDatabase {
			continue
		}
		db, ok := byID[node.RefID]
		if !ok {
			continue
		}
		deps = append(deps, DatabaseDependency{Database: db, Why: node})
	}
	return deps
}

// ResolveAppDeps joins app nodes to apps. The node value must equal an
// endpoint URL exactly; the endpoint's service then leads to the app.
func ResolveAppDeps(graph []Node, snapshot stores.Snapshot) []AppDependency {
	endpointsByURL := make(map[string]engine.Endpoint, len(snapshot.Endpoints))
	for _, ep := range snapshot.Endpoints {
		if url := ep.URL(); url != "" {
			endpointsByURL[url] = ep
		}
	}
	servicesByID := make(map[string]engine.Service, len(snapshot.Services))
	for _, svc := range snapshot.Services {
		servicesByID[svc.ID] = svc
	}
	appsByID := make(map[string]engine.App, len(snapshot.Apps))
	for _, app := range snapshot.Apps {
		appsByID[app.ID] = app
	}

	deps := make([]AppDependency, 0)
	for _, node := range graph {
		if node.Type != NodeTypeApp {
			continue
		}
		ep, ok := endpointsByURL[node.Value]
		if !ok {
			continue
		}
		svc, ok := servicesByID[ep.ServiceID]
		if !ok || svc.AppID == "" {
			continue
		}
		app, ok := appsByID[svc.AppID]
		if !ok {
			continue
		}
		deps = append(deps, AppDependency{App: app, Endpoint: ep, Why: node})
	}
	return deps
}

// Resolve builds the graph of env and joins it against snapshot.
func Resolve(env map[string]string, snapshot stores.Snapshot, opts ...Option) Dependencies {
	graph := BuildDependencyGraph(env, opts...)
	return Dependencies{
		Databases: ResolveDatabaseDeps(graph, snapshot),
		Apps:      ResolveAppDeps(graph, snapshot),
	}
}

// ResolveApp resolves the dependencies of an app's current configuration as
// held in store. An app or configuration missing from the store yields no
// dependencies.
func ResolveApp(store *stores.ResourceStore, appID string, opts ...Option) Dependencies {
	app := store.Apps.SelectByID(appID)
	if !engine.HasApp(app) {
		return Dependencies{}
	}
	cfg := store.Configurations.SelectByID(app.CurrentConfigurationID)
	if !engine.HasAppConfiguration(cfg) {
		return Dependencies{}
	}
	return Resolve(cfg.Env, store.Snapshot(), opts...)
}
