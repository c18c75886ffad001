package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingHandler captures every event it receives.
type recordingHandler struct {
	mu     sync.Mutex
	events []*SchedulerEvent
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *SchedulerEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) seen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestNewSchedulerEvent(t *testing.T) {
	t.Parallel()

	payload := InstanceMaterializedPayload{
		TemplateID: uuid.New(),
		InstanceID: uuid.New(),
		OwnerID:    uuid.New(),
		Title:      "Weekly review",
	}

	event, err := NewSchedulerEvent(TypeInstanceMaterialized, payload)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypeInstanceMaterialized, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded InstanceMaterializedPayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestEmitEvent_DeliversToAllHandlers(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEventEmitter(testLogger())
	first := &recordingHandler{}
	second := &recordingHandler{}
	emitter.RegisterHandler(first)
	emitter.RegisterHandler(second)

	event, err := NewSchedulerEvent(TypePatternExhausted, PatternExhaustedPayload{PatternID: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, emitter.EmitEvent(context.Background(), event))
	assert.Equal(t, 1, first.seen())
	assert.Equal(t, 1, second.seen())
}

func TestEmitEvent_HandlerFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEventEmitter(testLogger())
	failing := &recordingHandler{err: errors.New("handler broke")}
	healthy := &recordingHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(healthy)

	event, err := NewSchedulerEvent(TypeInstanceMaterialized, InstanceMaterializedPayload{})
	require.NoError(t, err)

	err = emitter.EmitEvent(context.Background(), event)
	assert.EqualError(t, err, "handler broke", "the first handler error is reported")
	assert.Equal(t, 1, healthy.seen(), "remaining handlers still receive the event")
}

func TestEmitEvent_NoHandlersIsNotAnError(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEventEmitter(testLogger())
	event, err := NewSchedulerEvent(TypeInstanceMaterialized, InstanceMaterializedPayload{})
	require.NoError(t, err)

	assert.NoError(t, emitter.EmitEvent(context.Background(), event))
}
