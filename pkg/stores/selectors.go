package stores

import (
	"sort"
	"strings"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// Snapshot is a point-in-time copy of the tables the dependency resolver
// joins against.
type Snapshot struct {
	Databases []engine.Database
	Endpoints []engine.Endpoint
	Services  []engine.Service
	Apps      []engine.App
}

// SelectDatabasesByEnvID returns the databases of an environment.
func (s *ResourceStore) SelectDatabasesByEnvID(envID string) []engine.Database {
	return s.databasesByEnv.get(s.Databases.Version(), envID, func() []engine.Database {
		return filter(s.Databases.SelectAsList(), func(db engine.Database) bool {
			return db.EnvironmentID == envID
		})
	})
}

// SelectDatabaseByHandle finds a database by handle within one environment.
// It returns the zero Database when there is none.
func (s *ResourceStore) SelectDatabaseByHandle(handle, envID string) engine.Database {
	return s.databaseByHandle.get(s.Databases.Version(), [2]string{handle, envID}, func() engine.Database {
		for _, db := range s.Databases.SelectAsList() {
			if db.Handle == handle && db.EnvironmentID == envID {
				return db
			}
		}
		return engine.Database{}
	})
}

// SelectDatabasesBySearch returns databases whose handle contains term,
// ignoring case. An empty term matches everything.
func (s *ResourceStore) SelectDatabasesBySearch(term string) []engine.Database {
	needle := strings.ToLower(term)
	return s.databasesBySearch.get(s.Databases.Version(), needle, func() []engine.Database {
		return filter(s.Databases.SelectAsList(), func(db engine.Database) bool {
			return strings.Contains(strings.ToLower(db.Handle), needle)
		})
	})
}

// SelectAppsByEnvID returns the apps of an environment.
func (s *ResourceStore) SelectAppsByEnvID(envID string) []engine.App {
	return s.appsByEnv.get(s.Apps.Version(), envID, func() []engine.App {
		return filter(s.Apps.SelectAsList(), func(app engine.App) bool {
			return app.EnvironmentID == envID
		})
	})
}

// SelectAppsBySearch returns apps whose handle contains term, ignoring case.
func (s *ResourceStore) SelectAppsBySearch(term string) []engine.App {
	needle := strings.ToLower(term)
	return s.appsBySearch.get(s.Apps.Version(), needle, func() []engine.App {
		return filter(s.Apps.SelectAsList(), func(app engine.App) bool {
			return strings.Contains(strings.ToLower(app.Handle), needle)
		})
	})
}

// SelectEnvironmentsByStackID returns the environments deployed on a stack.
func (s *ResourceStore) SelectEnvironmentsByStackID(stackID string) []engine.Environment {
	return s.environmentsByStack.get(s.Environments.Version(), stackID, func() []engine.Environment {
		return filter(s.Environments.SelectAsList(), func(env engine.Environment) bool {
			return env.StackID == stackID
		})
	})
}

// SelectOperationsByResource returns the operations of one resource, newest
// first by CreatedAt.
func (s *ResourceStore) SelectOperationsByResource(resourceType engine.ResourceType, resourceID string) []engine.Operation {
	ref := engine.ResourceRef{Type: resourceType, ID: resourceID}
	return s.operationsByRes.get(s.Operations.Version(), ref, func() []engine.Operation {
		return newestFirst(filter(s.Operations.SelectAsList(), func(op engine.Operation) bool {
			return op.ResourceType == resourceType && op.ResourceID == resourceID
		}))
	})
}

// SelectOperationsByEnvID returns the operations of an environment, newest first.
func (s *ResourceStore) SelectOperationsByEnvID(envID string) []engine.Operation {
	return s.operationsByEnv.get(s.Operations.Version(), envID, func() []engine.Operation {
		return newestFirst(filter(s.Operations.SelectAsList(), func(op engine.Operation) bool {
			return op.EnvironmentID == envID
		}))
	})
}

// SelectEndpointsByServiceID returns the endpoints attached to a service.
func (s *ResourceStore) SelectEndpointsByServiceID(serviceID string) []engine.Endpoint {
	return s.endpointsByService.get(s.Endpoints.Version(), serviceID, func() []engine.Endpoint {
		return filter(s.Endpoints.SelectAsList(), func(ep engine.Endpoint) bool {
			return ep.ServiceID == serviceID
		})
	})
}

// SelectServicesByAppID returns the services of an app.
func (s *ResourceStore) SelectServicesByAppID(appID string) []engine.Service {
	return s.servicesByApp.get(s.Services.Version(), appID, func() []engine.Service {
		return filter(s.Services.SelectAsList(), func(svc engine.Service) bool {
			return svc.AppID == appID
		})
	})
}

// Snapshot returns the tables used for dependency resolution. The result is
// shared until one of those tables changes and must not be modified.
func (s *ResourceStore) Snapshot() Snapshot {
	version := [4]uint64{
		s.Databases.Version(),
		s.Endpoints.Version(),
		s.Services.Version(),
		s.Apps.Version(),
	}
	return s.snapshot.get(version, struct{}{}, func() Snapshot {
		return Snapshot{
			Databases: s.Databases.SelectAsList(),
			Endpoints: s.Endpoints.SelectAsList(),
			Services:  s.Services.SelectAsList(),
			Apps:      s.Apps.SelectAsList(),
		}
	})
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func newestFirst(ops []engine.Operation) []engine.Operation {
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].CreatedAt.After(ops[j].CreatedAt)
	})
	return ops
}
