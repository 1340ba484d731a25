package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

type collector struct {
	mu      sync.Mutex
	actions []engine.Action
}

func (c *collector) add(a engine.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, a)
}

func (c *collector) all() []engine.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]engine.Action, len(c.actions))
	copy(out, c.actions)
	return out
}

func TestPublisher_DeliversInOrderBeforeShutdownReturns(t *testing.T) {
	pub := NewPublisher(Config{BufferSize: 16}, nil, nil)
	var got collector
	pub.Subscribe(got.add, engine.ActionFilter{})

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, pub.Publish(engine.Action{Type: engine.ActionBannerNotice, Message: msg}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pub.Shutdown(ctx))

	delivered := got.all()
	require.Len(t, delivered, 3)
	assert.Equal(t, "one", delivered[0].Message)
	assert.Equal(t, "three", delivered[2].Message)
	assert.NotEmpty(t, delivered[0].ID)
	assert.False(t, delivered[0].Timestamp.IsZero())
}

func TestPublisher_SynchronousWithFilter(t *testing.T) {
	pub := NewPublisher(Config{}, nil, nil)
	var errorsOnly, forDB collector
	pub.Subscribe(errorsOnly.add, engine.ActionFilter{Types: []engine.ActionType{engine.ActionBannerError}})
	pub.Subscribe(forDB.add, engine.ActionFilter{ResourceID: "12"})

	pub.Emit(engine.Action{Type: engine.ActionBannerError, Message: "boom"})
	pub.Emit(engine.Action{Type: engine.ActionResourceCreated, ResourceType: engine.ResourceTypeDatabase, ResourceID: "12"})

	assert.Len(t, errorsOnly.all(), 1)
	require.Len(t, forDB.all(), 1)
	assert.Equal(t, engine.ActionResourceCreated, forDB.all()[0].Type)
}

func TestPublisher_RejectsAfterShutdown(t *testing.T) {
	pub := NewPublisher(DefaultConfig(), nil, nil)
	require.NoError(t, pub.Shutdown(context.Background()))

	err := pub.Publish(engine.Action{Type: engine.ActionBannerSuccess})
	assert.ErrorIs(t, err, ErrPublisherStopped)
}

func TestPublisher_DropsWhenBufferFull(t *testing.T) {
	pub := NewPublisher(Config{BufferSize: 1}, nil, nil)
	release := make(chan struct{})
	pub.Subscribe(func(engine.Action) { <-release }, engine.ActionFilter{})

	dropped := 0
	for i := 0; i < 10; i++ {
		if err := pub.Publish(engine.Action{Type: engine.ActionBannerNotice}); errors.Is(err, ErrBufferFull) {
			dropped++
		}
	}
	close(release)
	require.NoError(t, pub.Shutdown(context.Background()))

	assert.GreaterOrEqual(t, dropped, 8)
}

func TestPublisher_SubscriberPanicIsContained(t *testing.T) {
	pub := NewPublisher(Config{}, nil, nil)
	var got collector
	pub.Subscribe(func(engine.Action) { panic("bad subscriber") }, engine.ActionFilter{})
	pub.Subscribe(got.add, engine.ActionFilter{})

	assert.NotPanics(t, func() {
		pub.Emit(engine.Action{Type: engine.ActionBannerSuccess})
	})
	assert.Len(t, got.all(), 1)
}

func TestOutbox_StampsRecordsAndForwards(t *testing.T) {
	var bus collector
	outbox := NewOutbox("provision_database", busFunc(bus.add))

	outbox.ResourceCreated(engine.ResourceRef{Type: engine.ResourceTypeDatabase, ID: "12"})
	outbox.OperationCreated(engine.Operation{ID: "op1", Type: engine.OperationProvision, ResourceType: engine.ResourceTypeDatabase, ResourceID: "12"})
	outbox.Success("Database provisioned")

	recorded := outbox.Actions()
	require.Len(t, recorded, 3)
	assert.Equal(t, engine.ActionResourceCreated, recorded[0].Type)
	assert.Equal(t, "op1", recorded[1].Data["operation_id"])
	assert.Equal(t, engine.ActionBannerSuccess, recorded[2].Type)
	for _, a := range recorded {
		assert.Equal(t, "provision_database", a.Workflow)
		assert.NotEmpty(t, a.ID)
	}

	assert.Equal(t, recorded, bus.all())
}

func TestOutbox_NilBus(t *testing.T) {
	outbox := NewOutbox("deprovision", nil)
	outbox.Error("Database not found")

	recorded := outbox.Actions()
	require.Len(t, recorded, 1)
	assert.Equal(t, "Database not found", recorded[0].Message)
}

type busFunc func(engine.Action)

func (f busFunc) Emit(a engine.Action) { f(a) }

type fakeAppender struct {
	collector
	err error
}

func (f *fakeAppender) AppendAction(_ context.Context, a engine.Action) error {
	if f.err != nil {
		return f.err
	}
	f.add(a)
	return nil
}

func TestJournalSubscriber(t *testing.T) {
	journal := &fakeAppender{}
	sub := JournalSubscriber(journal, nil)

	sub(engine.Action{ID: "a1", Type: engine.ActionBannerSuccess})
	require.Len(t, journal.all(), 1)
	assert.Equal(t, "a1", journal.all()[0].ID)

	failing := &fakeAppender{err: errors.New("disk full")}
	assert.NotPanics(t, func() {
		JournalSubscriber(failing, nil)(engine.Action{ID: "a2"})
	})
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "opsdeck.actions.banner_error", Subject(DefaultSubjectPrefix, engine.ActionBannerError))
}

func TestNewNATSForwarder_ConnectFailure(t *testing.T) {
	_, err := NewNATSForwarder("nats://127.0.0.1:1", nil)
	assert.Error(t, err)
}
