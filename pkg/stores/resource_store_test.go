package stores

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

func TestTable_AddUpsertsByID(t *testing.T) {
	table := NewTable[engine.Database]()

	table.Add(engine.Database{ID: "1", Handle: "first"})
	table.Add(engine.Database{ID: "2", Handle: "second"})
	table.Add(engine.Database{ID: "1", Handle: "renamed"})

	if table.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", table.Len())
	}

	if got := table.SelectByID("1").Handle; got != "renamed" {
		t.Errorf("Expected last write to win, got %s", got)
	}

	list := table.SelectAsList()
	if list[0].ID != "1" || list[1].ID != "2" {
		t.Errorf("Expected first-insertion order, got %s, %s", list[0].ID, list[1].ID)
	}
}

func TestTable_SelectByIDMissingReturnsZero(t *testing.T) {
	table := NewTable[engine.App]()

	app := table.SelectByID("nope")
	if engine.HasApp(app) {
		t.Errorf("Expected zero app, got %+v", app)
	}
}

func TestTable_IgnoresEmptyIDs(t *testing.T) {
	table := NewTable[engine.App]()

	table.Add(engine.App{Handle: "orphan"})

	if table.Len() != 0 {
		t.Errorf("Expected empty table, got %d records", table.Len())
	}
	if table.Version() != 0 {
		t.Errorf("Expected version to stay at 0, got %d", table.Version())
	}
}

func TestTable_VersionIncrementsOnWrite(t *testing.T) {
	table := NewTable[engine.Service]()

	before := table.Version()
	table.Add(engine.Service{ID: "s1"})
	if table.Version() == before {
		t.Error("Expected version to change after Add")
	}

	before = table.Version()
	table.Remove("s1")
	if table.Version() == before {
		t.Error("Expected version to change after Remove")
	}

	before = table.Version()
	table.Remove("missing")
	if table.Version() != before {
		t.Error("Expected version to stay when nothing was removed")
	}
}

func TestTable_ConcurrentWriters(t *testing.T) {
	table := NewTable[engine.Operation]()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				table.Add(engine.Operation{ID: fmt.Sprintf("op-%d", i), Note: fmt.Sprintf("w%d", worker)})
				_ = table.SelectAsList()
			}
		}(w)
	}
	wg.Wait()

	if table.Len() != 100 {
		t.Errorf("Expected 100 operations, got %d", table.Len())
	}
}

func TestResourceStore_UpsertGetList(t *testing.T) {
	store := NewResourceStore()

	if err := store.Upsert(engine.ResourceTypeDatabase, []engine.Database{{ID: "1"}, {ID: "2"}}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := store.Upsert(engine.ResourceTypeApp, engine.App{ID: "a1"}); err != nil {
		t.Fatalf("Expected no error for single record, got: %v", err)
	}

	db, ok := store.Get(engine.ResourceTypeDatabase, "2").(engine.Database)
	if !ok || db.ID != "2" {
		t.Errorf("Expected database 2, got %#v", store.Get(engine.ResourceTypeDatabase, "2"))
	}

	missing, ok := store.Get(engine.ResourceTypeDatabase, "9").(engine.Database)
	if !ok || engine.HasDatabase(missing) {
		t.Errorf("Expected zero database for missing id, got %#v", missing)
	}

	dbs, ok := store.List(engine.ResourceTypeDatabase).([]engine.Database)
	if !ok || len(dbs) != 2 {
		t.Errorf("Expected 2 databases, got %#v", store.List(engine.ResourceTypeDatabase))
	}

	if !store.Exists(engine.ResourceTypeApp, "a1") {
		t.Error("Expected app a1 to exist")
	}
}

func TestResourceStore_UpsertRejectsMismatchedKind(t *testing.T) {
	store := NewResourceStore()

	if err := store.Upsert(engine.ResourceTypeDatabase, []engine.App{{ID: "a1"}}); err == nil {
		t.Error("Expected error for mismatched record type")
	}
	if err := store.Upsert(engine.ResourceType("widget"), nil); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestSelectDatabaseByHandle_ScopedToEnvironment(t *testing.T) {
	store := NewResourceStore()
	store.Databases.Add(
		engine.Database{ID: "1", Handle: "pg", EnvironmentID: "env-a"},
		engine.Database{ID: "2", Handle: "pg", EnvironmentID: "env-b"},
	)

	if got := store.SelectDatabaseByHandle("pg", "env-b"); got.ID != "2" {
		t.Errorf("Expected database 2, got %q", got.ID)
	}
	if got := store.SelectDatabaseByHandle("pg", "env-c"); engine.HasDatabase(got) {
		t.Errorf("Expected no database in env-c, got %q", got.ID)
	}
}

func TestSelectors_MemoizedUntilTableChanges(t *testing.T) {
	store := NewResourceStore()
	store.Databases.Add(
		engine.Database{ID: "1", EnvironmentID: "env"},
		engine.Database{ID: "2", EnvironmentID: "other"},
	)

	first := store.SelectDatabasesByEnvID("env")
	second := store.SelectDatabasesByEnvID("env")
	if len(first) != 1 || &first[0] != &second[0] {
		t.Fatal("Expected identical slice for unchanged input")
	}

	// Writes to unrelated tables do not invalidate.
	store.Apps.Add(engine.App{ID: "a"})
	third := store.SelectDatabasesByEnvID("env")
	if &first[0] != &third[0] {
		t.Error("Expected identical slice after unrelated write")
	}

	store.Databases.Add(engine.Database{ID: "3", EnvironmentID: "env"})
	fourth := store.SelectDatabasesByEnvID("env")
	if len(fourth) != 2 {
		t.Errorf("Expected recomputed result with 2 databases, got %d", len(fourth))
	}
}

func TestSelectBySearch(t *testing.T) {
	store := NewResourceStore()
	store.Apps.Add(
		engine.App{ID: "1", Handle: "Billing-API"},
		engine.App{ID: "2", Handle: "web"},
	)
	store.Databases.Add(engine.Database{ID: "d1", Handle: "billing-pg"})

	if got := store.SelectAppsBySearch("billing"); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("Expected Billing-API, got %+v", got)
	}
	if got := store.SelectAppsBySearch(""); len(got) != 2 {
		t.Errorf("Expected empty term to match all apps, got %d", len(got))
	}
	if got := store.SelectDatabasesBySearch("PG"); len(got) != 1 {
		t.Errorf("Expected case-insensitive database match, got %d", len(got))
	}
}

func TestSelectOperations(t *testing.T) {
	store := NewResourceStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Operations.Add(
		engine.Operation{ID: "o1", ResourceType: engine.ResourceTypeDatabase, ResourceID: "1", EnvironmentID: "e", CreatedAt: base},
		engine.Operation{ID: "o2", ResourceType: engine.ResourceTypeDatabase, ResourceID: "1", EnvironmentID: "e", CreatedAt: base.Add(time.Minute)},
		engine.Operation{ID: "o3", ResourceType: engine.ResourceTypeApp, ResourceID: "1", EnvironmentID: "e", CreatedAt: base},
	)

	ops := store.SelectOperationsByResource(engine.ResourceTypeDatabase, "1")
	if len(ops) != 2 {
		t.Fatalf("Expected 2 database operations, got %d", len(ops))
	}
	if ops[0].ID != "o2" {
		t.Errorf("Expected newest operation first, got %s", ops[0].ID)
	}

	if got := store.SelectOperationsByEnvID("e"); len(got) != 3 {
		t.Errorf("Expected 3 environment operations, got %d", len(got))
	}
}

func TestSelectRelations(t *testing.T) {
	store := NewResourceStore()
	store.Environments.Add(engine.Environment{ID: "e1", StackID: "s1"}, engine.Environment{ID: "e2", StackID: "s2"})
	store.Apps.Add(engine.App{ID: "a1", EnvironmentID: "e1"})
	store.Services.Add(engine.Service{ID: "svc1", AppID: "a1"}, engine.Service{ID: "svc2", DatabaseID: "d1"})
	store.Endpoints.Add(engine.Endpoint{ID: "ep1", ServiceID: "svc1"})

	if got := store.SelectEnvironmentsByStackID("s1"); len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("Expected env e1, got %+v", got)
	}
	if got := store.SelectAppsByEnvID("e1"); len(got) != 1 {
		t.Errorf("Expected 1 app, got %d", len(got))
	}
	if got := store.SelectServicesByAppID("a1"); len(got) != 1 || got[0].ID != "svc1" {
		t.Errorf("Expected svc1, got %+v", got)
	}
	if got := store.SelectEndpointsByServiceID("svc1"); len(got) != 1 {
		t.Errorf("Expected 1 endpoint, got %d", len(got))
	}
}

func TestSnapshot_SharedUntilInputsChange(t *testing.T) {
	store := NewResourceStore()
	store.Databases.Add(engine.Database{ID: "1"})

	first := store.Snapshot()
	second := store.Snapshot()
	if &first.Databases[0] != &second.Databases[0] {
		t.Error("Expected identical snapshot for unchanged tables")
	}

	store.Endpoints.Add(engine.Endpoint{ID: "ep"})
	third := store.Snapshot()
	if len(third.Endpoints) != 1 {
		t.Errorf("Expected snapshot to include new endpoint, got %d", len(third.Endpoints))
	}
}
