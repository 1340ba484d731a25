package workflows

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/pkg/actions"
	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/poller"
	"github.com/opsdeck/opsdeck/pkg/stores"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

// Config tunes the orchestrator.
type Config struct {
	// MaxParallel bounds the concurrent items of a batch workflow.
	MaxParallel int

	// OperationPollInterval is the interval used when a created operation is
	// handed to the polling supervisor.
	OperationPollInterval time.Duration

	// WaitInterval is the refresh interval of blocking waits (Deprovision
	// and RunOperation with Wait set).
	WaitInterval time.Duration
}

// DefaultConfig returns the default orchestrator settings.
func DefaultConfig() Config {
	return Config{
		MaxParallel:           4,
		OperationPollInterval: 10 * time.Second,
		WaitInterval:          5 * time.Second,
	}
}

// Orchestrator runs provisioning workflows against a transport and a
// resource store.
type Orchestrator struct {
	transport  engine.Transport
	store      *stores.ResourceStore
	config     Config
	bus        engine.ActionBus
	supervisor *poller.Supervisor
	telemetry  *telemetry.Telemetry
	journal    stores.Journal
	admission  Admission
	logger     *telemetry.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithActionBus forwards every emitted action to bus.
func WithActionBus(bus engine.ActionBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithSupervisor hands created operations to the polling supervisor.
func WithSupervisor(s *poller.Supervisor) Option {
	return func(o *Orchestrator) { o.supervisor = s }
}

// WithTelemetry sets the logger, tracer and metrics used for workflow runs.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(o *Orchestrator) { o.telemetry = t }
}

// WithJournal appends an audit entry for every finished run.
func WithJournal(j stores.Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// NewOrchestrator creates an orchestrator. Zero fields of cfg take their
// default values.
func NewOrchestrator(transport engine.Transport, store *stores.ResourceStore, cfg Config, opts ...Option) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaults.MaxParallel
	}
	if cfg.OperationPollInterval <= 0 {
		cfg.OperationPollInterval = defaults.OperationPollInterval
	}
	if cfg.WaitInterval <= 0 {
		cfg.WaitInterval = defaults.WaitInterval
	}

	o := &Orchestrator{
		transport: transport,
		store:     store,
		config:    cfg,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.telemetry == nil {
		o.telemetry = telemetry.NewNopTelemetry()
	}
	o.logger = o.telemetry.Logger.NewComponentLogger("workflows")

	return o
}

// Store returns the resource store the orchestrator writes to.
func (o *Orchestrator) Store() *stores.ResourceStore {
	return o.store
}

// run is the bookkeeping of one workflow execution.
type run struct {
	o       *Orchestrator
	result  *Result
	outbox  *actions.Outbox
	tel     *telemetry.WorkflowRun
	started time.Time
}

func (o *Orchestrator) begin(ctx context.Context, workflow string) (context.Context, *run) {
	runID := uuid.New().String()
	tel := o.telemetry.StartWorkflow(ctx, workflow, runID)
	tel.Logger.Debug("workflow started")

	return tel.Ctx, &run{
		o:       o,
		result:  &Result{Workflow: workflow, RunID: runID},
		outbox:  actions.NewOutbox(workflow, o.bus),
		tel:     tel,
		started: time.Now().UTC(),
	}
}

// finish emits the closing banner, records telemetry and the audit entry,
// and returns the result. success is the banner shown when the run neither
// failed nor produced a notice.
func (r *run) finish(ctx context.Context, success string) *Result {
	res := r.result
	switch {
	case res.Error != "":
		r.outbox.Error(res.Error)
	case res.Notice != "":
		r.outbox.Notice(res.Notice)
	case success != "":
		r.outbox.Success(success)
	}

	res.Actions = r.outbox.Actions()
	r.tel.End(string(res.Outcome()), res.Error)
	r.o.audit(ctx, r)
	return res
}
