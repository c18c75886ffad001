package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/events"
	"github.com/phrazzld/cadence/internal/store"
)

// Notifier creates notification records and absorbs delivery failures into
// the durable retry queue. Nothing the notifier does can fail a tick: a
// notification that cannot be written right now becomes a queue entry with
// a zero retry count and is re-attempted by the retry phase.
type Notifier struct {
	notifications store.NotificationStore
	queue         store.RetryQueueStore
	logger        *slog.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(
	notifications store.NotificationStore,
	queue store.RetryQueueStore,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{
		notifications: notifications,
		queue:         queue,
		logger:        logger.With("component", "notifier"),
	}
}

// Deliver creates the notification described by params. A store failure is
// absorbed: the payload is pushed to the retry queue and nil is returned.
// An error comes back only when the payload is invalid or the queue push
// itself fails, both of which the caller should log and move past.
func (n *Notifier) Deliver(ctx context.Context, params domain.NotificationParams) error {
	notification, err := domain.NewNotification(params)
	if err != nil {
		return fmt.Errorf("invalid notification params: %w", err)
	}

	if err := n.notifications.CreateNotification(ctx, notification); err != nil {
		n.logger.Warn("notification creation failed, queueing for retry",
			"user_id", params.UserID,
			"type", params.Type,
			"error", err)
		return n.enqueue(ctx, params)
	}

	return nil
}

// enqueue pushes a failed notification payload onto the retry queue.
func (n *Notifier) enqueue(ctx context.Context, params domain.NotificationParams) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	entry := &store.RetryEntry{
		ID:         uuid.New(),
		Payload:    payload,
		RetryCount: 0,
		FailedAt:   time.Now().UTC(),
	}

	if err := n.queue.Push(ctx, entry); err != nil {
		return fmt.Errorf("failed to queue notification for retry: %w", err)
	}

	return nil
}

// HandleEvent implements events.EventHandler. Instance materializations
// become reminder notifications for the template owner; exhausted patterns
// are logged for operator visibility.
func (n *Notifier) HandleEvent(ctx context.Context, event *events.SchedulerEvent) error {
	switch event.Type {
	case events.TypeInstanceMaterialized:
		var payload events.InstanceMaterializedPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to unmarshal materialization payload: %w", err)
		}

		instanceID := payload.InstanceID
		return n.Deliver(ctx, domain.NotificationParams{
			UserID: payload.OwnerID,
			Type:   domain.NotificationTypeReminder,
			Title:  "New recurring task",
			Message: fmt.Sprintf("%q is scheduled for %s",
				payload.Title, payload.DueDate.Format(time.RFC1123)),
			RelatedTaskID: &instanceID,
		})

	case events.TypePatternExhausted:
		var payload events.PatternExhaustedPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to unmarshal exhaustion payload: %w", err)
		}

		n.logger.Info("recurring pattern exhausted",
			"pattern_id", payload.PatternID,
			"template_id", payload.TemplateID,
			"rrule", payload.RRule)
		return nil

	default:
		n.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}
}
