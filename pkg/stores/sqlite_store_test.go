package stores

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

// TestStoreMigrations tests that migrations are idempotent
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migration should be a no-op: %v", err)
	}
}

func TestRecordOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	row := &RecordRow{Kind: engine.ResourceTypeDatabase, ID: "12", Payload: `{"id":"12","handle":"pg"}`}
	if err := store.UpsertRecord(ctx, row); err != nil {
		t.Fatalf("failed to upsert record: %v", err)
	}

	row.Payload = `{"id":"12","handle":"pg-renamed"}`
	if err := store.UpsertRecord(ctx, row); err != nil {
		t.Fatalf("failed to upsert record again: %v", err)
	}

	rows, err := store.ListRecords(ctx, engine.ResourceTypeDatabase)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rows))
	}
	if rows[0].Payload != `{"id":"12","handle":"pg-renamed"}` {
		t.Errorf("expected updated payload, got %s", rows[0].Payload)
	}

	other, err := store.ListRecords(ctx, engine.ResourceTypeApp)
	if err != nil {
		t.Fatalf("failed to list app records: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no app records, got %d", len(other))
	}

	if err := store.DeleteRecord(ctx, engine.ResourceTypeDatabase, "12"); err != nil {
		t.Fatalf("failed to delete record: %v", err)
	}
	if err := store.DeleteRecord(ctx, engine.ResourceTypeDatabase, "12"); err == nil {
		t.Error("expected error deleting missing record")
	}
}

func TestWorkflowAuditOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	errMsg := "Handle has already been taken"

	entries := []*WorkflowAudit{
		{
			ID:          "wf-1",
			Workflow:    "provision_database",
			Outcome:     WorkflowOutcomeSucceeded,
			ResourceIDs: `{"database_id":"12"}`,
			Result:      `{}`,
			StartedAt:   now.Add(-2 * time.Minute),
			CompletedAt: now.Add(-time.Minute),
		},
		{
			ID:          "wf-2",
			Workflow:    "create_endpoint",
			Outcome:     WorkflowOutcomeFailed,
			Error:       &errMsg,
			ResourceIDs: `{}`,
			Result:      `{}`,
			StartedAt:   now.Add(-time.Minute),
			CompletedAt: now,
		},
	}

	for _, entry := range entries {
		if err := store.AppendWorkflowAudit(ctx, entry); err != nil {
			t.Fatalf("failed to append workflow audit: %v", err)
		}
	}

	got, err := store.GetWorkflowAudit(ctx, "wf-2")
	if err != nil {
		t.Fatalf("failed to get workflow audit: %v", err)
	}
	if got.Outcome != WorkflowOutcomeFailed {
		t.Errorf("expected failed outcome, got %s", got.Outcome)
	}
	if got.Error == nil || *got.Error != errMsg {
		t.Errorf("expected error message to round-trip, got %v", got.Error)
	}

	all, err := store.ListWorkflowAudits(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list workflow audits: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].ID != "wf-2" {
		t.Errorf("expected newest entry first, got %s", all[0].ID)
	}

	name := "provision_database"
	filtered, err := store.ListWorkflowAudits(ctx, &name, 10, 0)
	if err != nil {
		t.Fatalf("failed to list filtered workflow audits: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "wf-1" {
		t.Errorf("expected only wf-1, got %d entries", len(filtered))
	}

	if _, err := store.GetWorkflowAudit(ctx, "missing"); err == nil {
		t.Error("expected error for missing workflow audit")
	}
}

func TestActionLog(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	actions := []engine.Action{
		{ID: "a1", Type: engine.ActionResourceCreated, ResourceType: engine.ResourceTypeDatabase, ResourceID: "12", Timestamp: now},
		{ID: "a2", Type: engine.ActionBannerSuccess, Message: "Database provisioned", ResourceID: "12", Timestamp: now},
		{ID: "a3", Type: engine.ActionBannerError, Message: "boom", ResourceID: "99", Timestamp: now},
	}
	for _, a := range actions {
		if err := store.AppendAction(ctx, a); err != nil {
			t.Fatalf("failed to append action: %v", err)
		}
	}

	resourceID := "12"
	entries, err := store.ListActions(ctx, &resourceID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list actions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(entries))
	}
	if entries[0].Action.ID != "a2" {
		t.Errorf("expected newest action first, got %s", entries[0].Action.ID)
	}
	if entries[0].Action.Message != "Database provisioned" {
		t.Errorf("expected message to round-trip, got %q", entries[0].Action.Message)
	}

	all, err := store.ListActions(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list all actions: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 actions, got %d", len(all))
	}
}

func TestAttachJournal_HydratesAndWritesThrough(t *testing.T) {
	journal := setupTestStore(t)
	defer journal.Close()

	ctx := context.Background()

	payload, _ := json.Marshal(engine.Database{ID: "7", Handle: "pg", EnvironmentID: "env"})
	if err := journal.UpsertRecord(ctx, &RecordRow{Kind: engine.ResourceTypeDatabase, ID: "7", Payload: string(payload)}); err != nil {
		t.Fatalf("failed to seed journal: %v", err)
	}
	if err := journal.UpsertRecord(ctx, &RecordRow{Kind: engine.ResourceTypeDatabase, ID: "8", Payload: "{not json"}); err != nil {
		t.Fatalf("failed to seed bad row: %v", err)
	}

	store := NewResourceStore()
	if err := store.AttachJournal(ctx, journal, nil); err != nil {
		t.Fatalf("failed to attach journal: %v", err)
	}

	if got := store.SelectDatabaseByHandle("pg", "env"); got.ID != "7" {
		t.Errorf("expected hydrated database 7, got %q", got.ID)
	}
	if store.Databases.Len() != 1 {
		t.Errorf("expected undecodable row to be skipped, got %d records", store.Databases.Len())
	}

	store.Operations.Add(engine.Operation{ID: "op1", Type: engine.OperationProvision, Status: engine.OperationStatusQueued})

	rows, err := journal.ListRecords(ctx, engine.ResourceTypeOperation)
	if err != nil {
		t.Fatalf("failed to list journaled operations: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "op1" {
		t.Fatalf("expected operation to be written through, got %d rows", len(rows))
	}

	var op engine.Operation
	if err := json.Unmarshal([]byte(rows[0].Payload), &op); err != nil {
		t.Fatalf("failed to decode journaled operation: %v", err)
	}
	if op.Status != engine.OperationStatusQueued {
		t.Errorf("expected queued status, got %s", op.Status)
	}
}

func TestAttachJournal_FileBacked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")

	ctx := context.Background()
	open := func() *SQLiteStore {
		s, err := NewSQLiteStore(Config{Path: path})
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if err := s.Init(ctx); err != nil {
			t.Fatalf("failed to init store: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("failed to migrate store: %v", err)
		}
		return s
	}

	first := open()
	store := NewResourceStore()
	if err := store.AttachJournal(ctx, first, nil); err != nil {
		t.Fatalf("failed to attach journal: %v", err)
	}
	store.Apps.Add(engine.App{ID: "a1", Handle: "web"})
	if err := first.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected journal file to exist: %v", err)
	}

	second := open()
	defer second.Close()

	restored := NewResourceStore()
	if err := restored.AttachJournal(ctx, second, nil); err != nil {
		t.Fatalf("failed to reattach journal: %v", err)
	}
	if got := restored.Apps.SelectByID("a1"); got.Handle != "web" {
		t.Errorf("expected app to survive restart, got %+v", got)
	}
}

func TestAttachJournal_RemoveDeletesJournaledRecord(t *testing.T) {
	journal := setupTestStore(t)
	defer journal.Close()

	ctx := context.Background()
	store := NewResourceStore()
	if err := store.AttachJournal(ctx, journal, nil); err != nil {
		t.Fatalf("failed to attach journal: %v", err)
	}

	store.Databases.Add(engine.Database{ID: "12", Handle: "pg"})
	if err := store.Remove(engine.ResourceTypeDatabase, "12"); err != nil {
		t.Fatalf("failed to remove database: %v", err)
	}

	rows, err := journal.ListRecords(ctx, engine.ResourceTypeDatabase)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected removed database to leave the journal, got %d rows", len(rows))
	}
	if store.Exists(engine.ResourceTypeDatabase, "12") {
		t.Error("expected database to be gone from the store")
	}

	if err := store.Remove("widget", "1"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
