package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/channels/gochannel"
	"github.com/zapflow/zapflow/pkg/eventbus"
	"github.com/zapflow/zapflow/pkg/events"
	"github.com/zapflow/zapflow/pkg/models"
)

func setupBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := setupBus(t)

	received := make(chan *events.NodeExecuted, 1)

	err := bus.Handle(events.NodeExecutedEvent, func(_ context.Context, event any) error {
		decoded, ok := event.(*events.NodeExecuted)
		if ok {
			received <- decoded
		}

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	published := events.NodeExecuted{
		BaseEvent: events.BaseEvent{
			ID:          bus.GenerateID(),
			Type:        events.NodeExecutedEvent,
			Timestamp:   time.Now().UTC(),
			FlowID:      "flow-1",
			ExecutionID: "exec-1",
		},
		NodeID:   "msg-1",
		NodeType: models.NodeTypeMessage,
		Status:   models.LogStatusSuccess,
	}

	require.NoError(t, bus.Publish(ctx, "exec-1", published))

	select {
	case decoded := <-received:
		assert.Equal(t, "exec-1", decoded.ExecutionID)
		assert.Equal(t, "msg-1", decoded.NodeID)
		assert.Equal(t, models.NodeTypeMessage, decoded.NodeType)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestUnhandledEventTypesAreAcked(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := setupBus(t)

	received := make(chan *events.ExecutionCompleted, 1)

	err := bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		decoded, ok := event.(*events.ExecutionCompleted)
		if ok {
			received <- decoded
		}

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for this type; it must not block the stream.
	started := events.ExecutionStarted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.ExecutionStartedEvent, ExecutionID: "exec-1"},
	}
	require.NoError(t, bus.Publish(ctx, "exec-1", started))

	completed := events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.ExecutionCompletedEvent, ExecutionID: "exec-1"},
		Steps:     3,
	}
	require.NoError(t, bus.Publish(ctx, "exec-1", completed))

	select {
	case decoded := <-received:
		assert.Equal(t, 3, decoded.Steps)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	t.Parallel()

	bus := setupBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
