package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/opsdeck/opsdeck/pkg/actions"
	"github.com/opsdeck/opsdeck/pkg/config"
	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/poller"
	"github.com/opsdeck/opsdeck/pkg/policy"
	"github.com/opsdeck/opsdeck/pkg/stores"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
	"github.com/opsdeck/opsdeck/pkg/transports/hal"
	"github.com/opsdeck/opsdeck/pkg/workflows"
)

// runtime holds the components one command invocation works with.
type runtime struct {
	cfg          *config.Config
	tel          *telemetry.Telemetry
	client       *hal.Client
	store        *stores.ResourceStore
	journal      *stores.SQLiteStore
	publisher    *actions.Publisher
	nats         *actions.NATSForwarder
	supervisor   *poller.Supervisor
	policy       *policy.Engine
	orchestrator *workflows.Orchestrator
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newRuntime loads the configuration and wires the transport, store,
// journal, action bus, poller and orchestrator. The caller must Close it.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, store: stores.NewResourceStore()}

	// Step 1: telemetry
	rt.tel, err = telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Step 2: transport
	rt.client, err = hal.NewClient(cfg.HAL(),
		hal.WithLogger(rt.tel.Logger),
		hal.WithMetrics(rt.tel.Metrics),
		hal.WithTracerProvider(rt.tel.Tracer.Provider()),
	)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	// Step 3: journal, replayed into the store
	if storeCfg, ok := cfg.Store(); ok {
		journal, err := openJournal(ctx, storeCfg)
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		rt.journal = journal

		if err := rt.store.AttachJournal(ctx, journal, rt.tel.Logger); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("failed to load journal: %w", err)
		}
	}

	// Step 4: action bus
	rt.publisher = actions.NewPublisher(cfg.Publisher(), rt.tel.Logger, rt.tel.Metrics)
	if rt.journal != nil {
		rt.publisher.Subscribe(actions.JournalSubscriber(rt.journal, rt.tel.Logger), engine.ActionFilter{})
	}
	if cfg.Actions.NATSURL != "" {
		fwd, err := actions.NewNATSForwarder(cfg.Actions.NATSURL, rt.tel.Logger)
		if err != nil {
			// Actions still reach the journal; NATS delivery is best effort.
			log.Warn().Err(err).Str("url", cfg.Actions.NATSURL).Msg("NATS forwarding disabled")
		} else {
			rt.nats = fwd
			rt.publisher.Subscribe(fwd.Subscriber(), engine.ActionFilter{})
		}
	}

	// Step 5: admission policies
	if cfg.Policy.Enabled {
		rt.policy, err = newPolicyEngine(ctx, cfg.Policy, rt.tel)
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
	}

	// Step 6: poller and orchestrator
	rt.supervisor = poller.NewSupervisor(ctx, rt.client, rt.store,
		poller.WithLogger(rt.tel.Logger),
		poller.WithMetrics(rt.tel.Metrics),
		poller.WithTracer(rt.tel.Tracer),
		poller.WithActionBus(rt.publisher),
	)

	opts := []workflows.Option{
		workflows.WithActionBus(rt.publisher),
		workflows.WithSupervisor(rt.supervisor),
		workflows.WithTelemetry(rt.tel),
	}
	if rt.journal != nil {
		opts = append(opts, workflows.WithJournal(rt.journal))
	}
	if rt.policy != nil {
		opts = append(opts, workflows.WithAdmission(rt.policy))
	}
	rt.orchestrator = workflows.NewOrchestrator(rt.client, rt.store, cfg.Workflows(), opts...)

	return rt, nil
}

// newPolicyEngine loads the built-in policies, the policies under
// cfg.Paths, and switches off the ones cfg.Disabled names.
func newPolicyEngine(ctx context.Context, cfg config.PolicyConfig, tel *telemetry.Telemetry) (*policy.Engine, error) {
	eng, err := policy.NewEngine(*tel.Logger.Zerolog())
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(cfg.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, cfg.Paths); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Disabled {
		if err := eng.DisablePolicy(name); err != nil {
			return nil, fmt.Errorf("invalid policy.disabled: %w", err)
		}
	}
	return eng, nil
}

func openJournal(ctx context.Context, cfg stores.Config) (*stores.SQLiteStore, error) {
	journal, err := stores.NewSQLiteStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	if err := journal.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	if err := journal.Migrate(ctx); err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("failed to run journal migrations: %w", err)
	}
	return journal, nil
}

// Close stops pollers, drains the action bus and closes the journal.
func (rt *runtime) Close(ctx context.Context) {
	if rt.supervisor != nil {
		rt.supervisor.CancelAll()
	}
	if rt.publisher != nil {
		if err := rt.publisher.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Failed to drain action bus")
		}
	}
	if rt.nats != nil {
		if err := rt.nats.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close NATS connection")
		}
	}
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close journal")
		}
	}
	if rt.tel != nil {
		if err := rt.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}
}

// parseRef parses "<kind>/<id>", e.g. "database/12". "endpoint" is accepted
// for vhost and "environment" for account.
func parseRef(s string) (engine.ResourceRef, error) {
	kind, id, ok := strings.Cut(s, "/")
	if !ok || kind == "" || id == "" {
		return engine.ResourceRef{}, fmt.Errorf("invalid resource %q: expected <kind>/<id>", s)
	}

	switch kind {
	case "endpoint":
		kind = string(engine.ResourceTypeEndpoint)
	case "environment":
		kind = string(engine.ResourceTypeEnvironment)
	}

	ref := engine.ResourceRef{Type: engine.ResourceType(kind), ID: id}
	if err := ref.Type.Validate(); err != nil {
		return engine.ResourceRef{}, err
	}
	return ref, nil
}

var errWorkflowFailed = errors.New("workflow failed")
