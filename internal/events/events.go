// Package events provides types and interfaces for loose coupling between
// the job processor and the components reacting to what it does.
//
// The processor announces facts (an instance was materialized, a pattern
// ran out of occurrences) without knowing which handlers will process
// them; the notifier subscribes and turns announcements into notification
// records. This keeps delivery concerns, including the retry queue, out of
// the materialization loop.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Scheduler event types.
const (
	// TypeInstanceMaterialized announces a new task instance produced
	// from a recurring template.
	TypeInstanceMaterialized = "instance_materialized"

	// TypePatternExhausted announces a pattern deactivated because its
	// rule has no further occurrences.
	TypePatternExhausted = "pattern_exhausted"
)

// SchedulerEvent represents a fact announced by the job processor. The
// payload carries event-specific data serialized as JSON so handlers stay
// decoupled from processor internals.
type SchedulerEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates what happened
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *SchedulerEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewSchedulerEvent creates a new SchedulerEvent with the specified type and payload.
func NewSchedulerEvent(eventType string, payload interface{}) (*SchedulerEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &SchedulerEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// InstanceMaterializedPayload is the payload of a TypeInstanceMaterialized
// event.
type InstanceMaterializedPayload struct {
	TemplateID uuid.UUID `json:"template_id"`
	InstanceID uuid.UUID `json:"instance_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Title      string    `json:"title"`
	DueDate    time.Time `json:"due_date"`
}

// PatternExhaustedPayload is the payload of a TypePatternExhausted event.
type PatternExhaustedPayload struct {
	PatternID  uuid.UUID `json:"pattern_id"`
	TemplateID uuid.UUID `json:"template_id"`
	RRule      string    `json:"rrule"`
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *SchedulerEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the processor to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *SchedulerEvent) error
}
