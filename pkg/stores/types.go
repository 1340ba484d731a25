package stores

import (
	"context"
	"time"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// WorkflowOutcome is the final outcome recorded for a workflow run
type WorkflowOutcome string

const (
	WorkflowOutcomeSucceeded WorkflowOutcome = "succeeded"
	WorkflowOutcomeFailed    WorkflowOutcome = "failed"
	WorkflowOutcomeNoop      WorkflowOutcome = "noop"
)

// RecordRow is the durable form of one record in the journal
type RecordRow struct {
	Kind      engine.ResourceType `json:"kind"`
	ID        string              `json:"id"`
	Payload   string              `json:"payload"` // JSON blob
	UpdatedAt time.Time           `json:"updated_at"`
}

// WorkflowAudit is an append-only entry describing one finished workflow
type WorkflowAudit struct {
	ID          string          `json:"id"`
	Workflow    string          `json:"workflow"` // e.g., "provision_database", "deprovision"
	Outcome     WorkflowOutcome `json:"outcome"`
	Error       *string         `json:"error,omitempty"`
	Notice      *string         `json:"notice,omitempty"`
	ResourceIDs string          `json:"resource_ids"` // JSON object of id kind -> id
	Result      string          `json:"result"`       // JSON blob
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// ActionEntry is an action persisted to the journal
type ActionEntry struct {
	Seq    int64         `json:"seq"`
	Action engine.Action `json:"action"`
}

// Journal defines the durable side of the resource store
type Journal interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Records
	UpsertRecord(ctx context.Context, row *RecordRow) error
	ListRecords(ctx context.Context, kind engine.ResourceType) ([]*RecordRow, error)
	DeleteRecord(ctx context.Context, kind engine.ResourceType, id string) error

	// Workflow audit
	AppendWorkflowAudit(ctx context.Context, entry *WorkflowAudit) error
	GetWorkflowAudit(ctx context.Context, id string) (*WorkflowAudit, error)
	ListWorkflowAudits(ctx context.Context, workflow *string, limit, offset int) ([]*WorkflowAudit, error)

	// Actions
	AppendAction(ctx context.Context, action engine.Action) error
	ListActions(ctx context.Context, resourceID *string, limit, offset int) ([]*ActionEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
