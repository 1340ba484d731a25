package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/stores"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

// Supervisor is a keyed registry of polling loops. Registering a key that is
// already polled replaces the old loop. Each loop owns its cancel token.
type Supervisor struct {
	ctx       context.Context
	transport engine.Transport
	store     *stores.ResourceStore
	logger    *telemetry.Logger
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
	bus       engine.ActionBus

	mu      sync.Mutex
	pollers map[string]*Handle
	group   singleflight.Group
	seq     atomic.Uint64
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(logger *telemetry.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger.NewComponentLogger("poller")
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *Supervisor) { s.metrics = metrics }
}

// WithTracer sets the tracer used for poll spans.
func WithTracer(tracer *telemetry.Tracer) Option {
	return func(s *Supervisor) { s.tracer = tracer }
}

// WithActionBus sets the bus notified when a polled operation completes.
func WithActionBus(bus engine.ActionBus) Option {
	return func(s *Supervisor) { s.bus = bus }
}

// NewSupervisor creates a supervisor whose loops stop when ctx is done.
func NewSupervisor(ctx context.Context, transport engine.Transport, store *stores.ResourceStore, opts ...Option) *Supervisor {
	s := &Supervisor{
		ctx:       ctx,
		transport: transport,
		store:     store,
		logger:    telemetry.NewNopLogger(),
		tracer:    telemetry.NewNopTracer(),
		pollers:   make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Poll starts polling fetch under key, replacing and cancelling any loop
// already registered under that key. Concurrent fetches for the same key,
// such as a replaced loop's in-flight fetch and its successor's first one,
// share a single call.
func (s *Supervisor) Poll(key string, fetch FetchFunc, interval time.Duration) *Handle {
	wrapped := func(ctx context.Context) error {
		ctx, span := s.tracer.StartPollSpan(ctx, key)
		defer span.End()

		_, err, _ := s.group.Do(key, func() (interface{}, error) {
			return nil, fetch(ctx)
		})
		if err != nil && err != ErrStop {
			telemetry.RecordError(span, err)
			s.logger.WithField("poller", key).WithError(err).Debug("poll failed")
		}
		s.metrics.RecordPollTick(key, ignoreStop(err))
		return err
	}

	s.mu.Lock()
	if old, ok := s.pollers[key]; ok {
		old.Cancel()
	}
	h := Start(s.ctx, wrapped, interval)
	s.pollers[key] = h
	s.metrics.SetActivePollers(len(s.pollers))
	s.mu.Unlock()

	go s.reap(key, h)
	return h
}

func ignoreStop(err error) error {
	if err == ErrStop {
		return nil
	}
	return err
}

// reap unregisters a loop once it exits, unless it was already replaced.
func (s *Supervisor) reap(key string, h *Handle) {
	<-h.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollers[key] == h {
		delete(s.pollers, key)
		s.metrics.SetActivePollers(len(s.pollers))
	}
}

// Cancel stops the loop registered under key and reports whether one existed.
func (s *Supervisor) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.pollers[key]
	if !ok {
		return false
	}
	h.Cancel()
	delete(s.pollers, key)
	s.metrics.SetActivePollers(len(s.pollers))
	return true
}

// CancelAll stops every registered loop.
func (s *Supervisor) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, h := range s.pollers {
		h.Cancel()
		delete(s.pollers, key)
	}
	s.metrics.SetActivePollers(0)
}

// Active returns the keys of the registered loops, sorted.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.pollers))
	for key := range s.pollers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Schedule implements engine.Scheduler with an anonymous key.
func (s *Supervisor) Schedule(fn func(ctx context.Context), interval time.Duration) engine.CancelFunc {
	key := fmt.Sprintf("schedule-%d", s.seq.Add(1))
	h := s.Poll(key, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}, interval)
	return func() {
		s.mu.Lock()
		if s.pollers[key] == h {
			delete(s.pollers, key)
			s.metrics.SetActivePollers(len(s.pollers))
		}
		s.mu.Unlock()
		h.Cancel()
	}
}

// PollOperation refreshes an operation into the store every interval and
// stops once the operation reaches a terminal status.
func (s *Supervisor) PollOperation(key, opID string, interval time.Duration) *Handle {
	return s.Poll(key, func(ctx context.Context) error {
		op, err := FetchOperation(ctx, s.transport, s.store, opID)
		if err != nil {
			return err
		}
		if !op.Status.IsTerminal() {
			return nil
		}

		s.metrics.RecordOperationCompleted(string(op.Type), string(op.Status))
		s.logger.WithOperationID(op.ID).
			WithField("status", string(op.Status)).
			Info("operation reached terminal status")
		if s.bus != nil {
			s.bus.Emit(engine.Action{
				Type:         engine.ActionOperationCompleted,
				ResourceType: op.ResourceType,
				ResourceID:   op.ResourceID,
				Data: map[string]interface{}{
					"operation_id": op.ID,
					"status":       string(op.Status),
				},
			})
		}
		return ErrStop
	}, interval)
}

// PollResourceOperations refreshes the operations of a resource every
// interval, the per-app and per-database sweeps.
func (s *Supervisor) PollResourceOperations(key string, ref engine.ResourceRef, interval time.Duration) *Handle {
	return s.Poll(key, func(ctx context.Context) error {
		_, err := FetchResourceOperations(ctx, s.transport, s.store, ref)
		return err
	}, interval)
}

// Key builds a registry key such as "database/12".
func Key(kind engine.ResourceType, id string) string {
	return string(kind) + "/" + id
}

// WaitForOperation blocks until the operation reaches a terminal status and
// returns it. Fetch errors are retried on the next tick. It returns ctx's
// error when ctx ends first.
func WaitForOperation(ctx context.Context, transport engine.Transport, store *stores.ResourceStore, opID string, interval time.Duration) (engine.Operation, error) {
	var (
		mu   sync.Mutex
		last engine.Operation
	)

	h := Start(ctx, func(fetchCtx context.Context) error {
		op, err := FetchOperation(fetchCtx, transport, store, opID)
		if err != nil {
			return err
		}
		if op.Status.IsTerminal() {
			mu.Lock()
			last = op
			mu.Unlock()
			return ErrStop
		}
		return nil
	}, interval)

	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
		return engine.Operation{}, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	if !engine.HasOperation(last) {
		return engine.Operation{}, ctx.Err()
	}
	return last, nil
}
