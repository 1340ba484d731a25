package stores

import (
	"fmt"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// ResourceStore holds the locally known platform records, one table per kind.
type ResourceStore struct {
	Stacks         *Table[engine.Stack]
	Environments   *Table[engine.Environment]
	Apps           *Table[engine.App]
	Configurations *Table[engine.AppConfiguration]
	Services       *Table[engine.Service]
	Databases      *Table[engine.Database]
	Endpoints      *Table[engine.Endpoint]
	Certificates   *Table[engine.Certificate]
	LogDrains      *Table[engine.LogDrain]
	MetricDrains   *Table[engine.MetricDrain]
	Operations     *Table[engine.Operation]

	journal Journal

	databasesByEnv      memo[string, []engine.Database]
	databaseByHandle    memo[[2]string, engine.Database]
	databasesBySearch   memo[string, []engine.Database]
	appsByEnv           memo[string, []engine.App]
	appsBySearch        memo[string, []engine.App]
	environmentsByStack memo[string, []engine.Environment]
	operationsByRes     memo[engine.ResourceRef, []engine.Operation]
	operationsByEnv     memo[string, []engine.Operation]
	endpointsByService  memo[string, []engine.Endpoint]
	servicesByApp       memo[string, []engine.Service]
	snapshot            memo[struct{}, Snapshot]
}

// NewResourceStore creates an empty store.
func NewResourceStore() *ResourceStore {
	return &ResourceStore{
		Stacks:         NewTable[engine.Stack](),
		Environments:   NewTable[engine.Environment](),
		Apps:           NewTable[engine.App](),
		Configurations: NewTable[engine.AppConfiguration](),
		Services:       NewTable[engine.Service](),
		Databases:      NewTable[engine.Database](),
		Endpoints:      NewTable[engine.Endpoint](),
		Certificates:   NewTable[engine.Certificate](),
		LogDrains:      NewTable[engine.LogDrain](),
		MetricDrains:   NewTable[engine.MetricDrain](),
		Operations:     NewTable[engine.Operation](),
	}
}

// Upsert writes records of the given kind. records must be a slice of the
// record type matching kind, for example []engine.Database for
// engine.ResourceTypeDatabase.
func (s *ResourceStore) Upsert(kind engine.ResourceType, records any) error {
	switch kind {
	case engine.ResourceTypeStack:
		return upsertInto(s.Stacks, kind, records)
	case engine.ResourceTypeEnvironment:
		return upsertInto(s.Environments, kind, records)
	case engine.ResourceTypeApp:
		return upsertInto(s.Apps, kind, records)
	case engine.ResourceTypeAppConfiguration:
		return upsertInto(s.Configurations, kind, records)
	case engine.ResourceTypeService:
		return upsertInto(s.Services, kind, records)
	case engine.ResourceTypeDatabase:
		return upsertInto(s.Databases, kind, records)
	case engine.ResourceTypeEndpoint:
		return upsertInto(s.Endpoints, kind, records)
	case engine.ResourceTypeCertificate:
		return upsertInto(s.Certificates, kind, records)
	case engine.ResourceTypeLogDrain:
		return upsertInto(s.LogDrains, kind, records)
	case engine.ResourceTypeMetricDrain:
		return upsertInto(s.MetricDrains, kind, records)
	case engine.ResourceTypeOperation:
		return upsertInto(s.Operations, kind, records)
	default:
		return fmt.Errorf("unknown record kind: %s", kind)
	}
}

func upsertInto[T Record](table *Table[T], kind engine.ResourceType, records any) error {
	switch v := records.(type) {
	case []T:
		table.Add(v...)
	case T:
		table.Add(v)
	default:
		return fmt.Errorf("invalid records for kind %s: %T", kind, records)
	}
	return nil
}

// Get returns the record of the given kind and ID, or the zero record of
// that kind when absent. An unknown kind yields nil.
func (s *ResourceStore) Get(kind engine.ResourceType, id string) any {
	switch kind {
	case engine.ResourceTypeStack:
		return s.Stacks.SelectByID(id)
	case engine.ResourceTypeEnvironment:
		return s.Environments.SelectByID(id)
	case engine.ResourceTypeApp:
		return s.Apps.SelectByID(id)
	case engine.ResourceTypeAppConfiguration:
		return s.Configurations.SelectByID(id)
	case engine.ResourceTypeService:
		return s.Services.SelectByID(id)
	case engine.ResourceTypeDatabase:
		return s.Databases.SelectByID(id)
	case engine.ResourceTypeEndpoint:
		return s.Endpoints.SelectByID(id)
	case engine.ResourceTypeCertificate:
		return s.Certificates.SelectByID(id)
	case engine.ResourceTypeLogDrain:
		return s.LogDrains.SelectByID(id)
	case engine.ResourceTypeMetricDrain:
		return s.MetricDrains.SelectByID(id)
	case engine.ResourceTypeOperation:
		return s.Operations.SelectByID(id)
	default:
		return nil
	}
}

// List returns all records of a kind as a typed slice, or nil for an
// unknown kind.
func (s *ResourceStore) List(kind engine.ResourceType) any {
	switch kind {
	case engine.ResourceTypeStack:
		return s.Stacks.SelectAsList()
	case engine.ResourceTypeEnvironment:
		return s.Environments.SelectAsList()
	case engine.ResourceTypeApp:
		return s.Apps.SelectAsList()
	case engine.ResourceTypeAppConfiguration:
		return s.Configurations.SelectAsList()
	case engine.ResourceTypeService:
		return s.Services.SelectAsList()
	case engine.ResourceTypeDatabase:
		return s.Databases.SelectAsList()
	case engine.ResourceTypeEndpoint:
		return s.Endpoints.SelectAsList()
	case engine.ResourceTypeCertificate:
		return s.Certificates.SelectAsList()
	case engine.ResourceTypeLogDrain:
		return s.LogDrains.SelectAsList()
	case engine.ResourceTypeMetricDrain:
		return s.MetricDrains.SelectAsList()
	case engine.ResourceTypeOperation:
		return s.Operations.SelectAsList()
	default:
		return nil
	}
}

// Remove deletes records of the given kind. An unknown kind is an error.
func (s *ResourceStore) Remove(kind engine.ResourceType, ids ...string) error {
	switch kind {
	case engine.ResourceTypeStack:
		s.Stacks.Remove(ids...)
	case engine.ResourceTypeEnvironment:
		s.Environments.Remove(ids...)
	case engine.ResourceTypeApp:
		s.Apps.Remove(ids...)
	case engine.ResourceTypeAppConfiguration:
		s.Configurations.Remove(ids...)
	case engine.ResourceTypeService:
		s.Services.Remove(ids...)
	case engine.ResourceTypeDatabase:
		s.Databases.Remove(ids...)
	case engine.ResourceTypeEndpoint:
		s.Endpoints.Remove(ids...)
	case engine.ResourceTypeCertificate:
		s.Certificates.Remove(ids...)
	case engine.ResourceTypeLogDrain:
		s.LogDrains.Remove(ids...)
	case engine.ResourceTypeMetricDrain:
		s.MetricDrains.Remove(ids...)
	case engine.ResourceTypeOperation:
		s.Operations.Remove(ids...)
	default:
		return fmt.Errorf("unknown record kind: %s", kind)
	}
	return nil
}

// Exists reports whether a record of the given kind and ID is loaded.
func (s *ResourceStore) Exists(kind engine.ResourceType, id string) bool {
	rec, ok := s.Get(kind, id).(Record)
	return ok && rec.RecordID() != ""
}
