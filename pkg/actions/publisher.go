package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

var (
	// ErrBufferFull is returned by Publish when the delivery buffer has no room.
	ErrBufferFull = errors.New("action buffer full, action dropped")

	// ErrPublisherStopped is returned by Publish after Shutdown.
	ErrPublisherStopped = errors.New("action publisher stopped")
)

// Subscriber handles actions delivered by a Publisher.
type Subscriber func(action engine.Action)

// Config configures a Publisher.
type Config struct {
	// BufferSize is the number of actions held for asynchronous delivery.
	// Zero delivers synchronously on the emitting goroutine.
	BufferSize int `yaml:"buffer_size"`
}

// DefaultConfig returns the default publisher configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 256}
}

// Publisher fans actions out to subscribers. It implements engine.ActionBus.
// Subscribers are called one at a time, in emission order.
type Publisher struct {
	config      Config
	buffer      chan engine.Action
	subscribers []subscriberEntry
	logger      *telemetry.Logger
	metrics     *telemetry.Metrics
	wg          sync.WaitGroup
	mu          sync.RWMutex
	deliverMu   sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber Subscriber
	filter     engine.ActionFilter
}

// NewPublisher creates a publisher and starts its delivery goroutine when
// the configuration asks for asynchronous delivery.
func NewPublisher(cfg Config, logger *telemetry.Logger, metrics *telemetry.Metrics) *Publisher {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Publisher{
		config:  cfg,
		logger:  logger.NewComponentLogger("actions"),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.BufferSize > 0 {
		p.buffer = make(chan engine.Action, cfg.BufferSize)
		p.wg.Add(1)
		go p.processActions()
	}

	return p
}

// Emit publishes an action and logs instead of failing when it cannot be
// delivered.
func (p *Publisher) Emit(action engine.Action) {
	if err := p.Publish(action); err != nil {
		p.logger.WithError(err).
			WithField("action_type", string(action.Type)).
			Warn("action not delivered")
	}
}

// Publish queues an action for delivery to all matching subscribers.
func (p *Publisher) Publish(action engine.Action) error {
	if p.ctx.Err() != nil {
		return ErrPublisherStopped
	}

	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now().UTC()
	}

	if p.buffer == nil {
		p.deliver(action)
		p.metrics.RecordActionPublished(string(action.Type))
		return nil
	}

	select {
	case p.buffer <- action:
		p.metrics.RecordActionPublished(string(action.Type))
		return nil
	case <-p.ctx.Done():
		return ErrPublisherStopped
	default:
		p.metrics.RecordActionDropped()
		return ErrBufferFull
	}
}

// Subscribe registers a subscriber. A zero filter matches every action.
func (p *Publisher) Subscribe(subscriber Subscriber, filter engine.ActionFilter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers = append(p.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processActions delivers buffered actions until shutdown, then drains
// whatever is left in the buffer.
func (p *Publisher) processActions() {
	defer p.wg.Done()

	for {
		select {
		case action := <-p.buffer:
			p.deliver(action)
		case <-p.ctx.Done():
			for {
				select {
				case action := <-p.buffer:
					p.deliver(action)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) deliver(action engine.Action) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	p.mu.RLock()
	entries := p.subscribers
	p.mu.RUnlock()

	for _, entry := range entries {
		if !entry.filter.Matches(action) {
			continue
		}
		p.safeCall(entry.subscriber, action)
	}
}

func (p *Publisher) safeCall(subscriber Subscriber, action engine.Action) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", fmt.Sprint(r)).
				WithField("action_type", string(action.Type)).
				Error("action subscriber panicked")
		}
	}()
	subscriber(action)
}

// Shutdown stops accepting actions and waits for buffered ones to be delivered.
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("action publisher shutdown timeout")
	}
}
