package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a journal.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:",
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleResourceStore_SelectDatabaseByHandle demonstrates the zero-value
// lookup convention.
func ExampleResourceStore_SelectDatabaseByHandle() {
	store := stores.NewResourceStore()
	store.Databases.Add(engine.Database{ID: "12", Handle: "pg", EnvironmentID: "3"})

	found := store.SelectDatabaseByHandle("pg", "3")
	missing := store.SelectDatabaseByHandle("pg", "4")

	fmt.Println(found.ID, engine.HasDatabase(found))
	fmt.Println(engine.HasDatabase(missing))
	// Output:
	// 12 true
	// false
}

// ExampleResourceStore_AttachJournal demonstrates write-through persistence.
func ExampleResourceStore_AttachJournal() {
	journal, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = journal.Init(ctx)
	_ = journal.Migrate(ctx)
	defer journal.Close()

	store := stores.NewResourceStore()
	if err := store.AttachJournal(ctx, journal, nil); err != nil {
		log.Fatal(err)
	}

	store.Apps.Add(engine.App{ID: "a1", Handle: "web", Status: engine.ProvisionStatusProvisioned})

	rows, _ := journal.ListRecords(ctx, engine.ResourceTypeApp)
	fmt.Printf("Journaled %d app(s)\n", len(rows))
	// Output: Journaled 1 app(s)
}
