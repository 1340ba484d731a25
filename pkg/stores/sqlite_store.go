package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/opsdeck/opsdeck/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Journal interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	cfg  Config
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg:  cfg,
		path: cfg.Path,
	}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// UpsertRecord inserts or replaces the journaled copy of a record
func (s *SQLiteStore) UpsertRecord(ctx context.Context, row *RecordRow) error {
	query := `
		INSERT INTO records (kind, id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`

	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		string(row.Kind),
		row.ID,
		row.Payload,
		row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	return nil
}

// ListRecords returns every journaled record of a kind
func (s *SQLiteStore) ListRecords(ctx context.Context, kind engine.ResourceType) ([]*RecordRow, error) {
	query := `
		SELECT kind, id, payload, updated_at
		FROM records
		WHERE kind = ?
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []*RecordRow{}
	for rows.Next() {
		row := &RecordRow{}
		var k string
		if err := rows.Scan(&k, &row.ID, &row.Payload, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		row.Kind = engine.ResourceType(k)
		records = append(records, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// DeleteRecord removes a journaled record
func (s *SQLiteStore) DeleteRecord(ctx context.Context, kind engine.ResourceType, id string) error {
	query := `DELETE FROM records WHERE kind = ? AND id = ?`

	result, err := s.db.ExecContext(ctx, query, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("record not found: %s/%s", kind, id)
	}

	return nil
}

// AppendWorkflowAudit records a finished workflow
func (s *SQLiteStore) AppendWorkflowAudit(ctx context.Context, entry *WorkflowAudit) error {
	query := `
		INSERT INTO workflow_audit (
			id, workflow, outcome, error, notice, resource_ids, result, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Workflow,
		string(entry.Outcome),
		entry.Error,
		entry.Notice,
		entry.ResourceIDs,
		entry.Result,
		entry.StartedAt,
		entry.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append workflow audit: %w", err)
	}

	return nil
}

// GetWorkflowAudit retrieves a workflow audit entry by ID
func (s *SQLiteStore) GetWorkflowAudit(ctx context.Context, id string) (*WorkflowAudit, error) {
	query := `
		SELECT id, workflow, outcome, error, notice, resource_ids, result, started_at, completed_at
		FROM workflow_audit
		WHERE id = ?
	`

	entry, err := scanWorkflowAudit(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow audit not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow audit: %w", err)
	}

	return entry, nil
}

// ListWorkflowAudits lists workflow audit entries, newest first, with an optional workflow filter
func (s *SQLiteStore) ListWorkflowAudits(ctx context.Context, workflow *string, limit, offset int) ([]*WorkflowAudit, error) {
	query := `
		SELECT id, workflow, outcome, error, notice, resource_ids, result, started_at, completed_at
		FROM workflow_audit
		WHERE (? IS NULL OR workflow = ?)
		ORDER BY completed_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, workflow, workflow, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow audits: %w", err)
	}
	defer rows.Close()

	entries := []*WorkflowAudit{}
	for rows.Next() {
		entry, err := scanWorkflowAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow audit: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow audits: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflowAudit(row rowScanner) (*WorkflowAudit, error) {
	entry := &WorkflowAudit{}
	var outcome string
	err := row.Scan(
		&entry.ID,
		&entry.Workflow,
		&outcome,
		&entry.Error,
		&entry.Notice,
		&entry.ResourceIDs,
		&entry.Result,
		&entry.StartedAt,
		&entry.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Outcome = WorkflowOutcome(outcome)
	return entry, nil
}

// AppendAction appends an emitted action to the action log
func (s *SQLiteStore) AppendAction(ctx context.Context, action engine.Action) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}

	query := `
		INSERT INTO actions (action_id, type, workflow, resource_type, resource_id, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		action.ID,
		string(action.Type),
		action.Workflow,
		string(action.ResourceType),
		action.ResourceID,
		string(payload),
		action.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append action: %w", err)
	}

	return nil
}

// ListActions lists logged actions, newest first, with an optional resource filter
func (s *SQLiteStore) ListActions(ctx context.Context, resourceID *string, limit, offset int) ([]*ActionEntry, error) {
	query := `
		SELECT seq, payload
		FROM actions
		WHERE (? IS NULL OR resource_id = ?)
		ORDER BY seq DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, resourceID, resourceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	entries := []*ActionEntry{}
	for rows.Next() {
		entry := &ActionEntry{}
		var payload string
		if err := rows.Scan(&entry.Seq, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.Action); err != nil {
			return nil, fmt.Errorf("failed to decode action %d: %w", entry.Seq, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
