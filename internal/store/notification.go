package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
)

// NotificationStore defines the interface for notification persistence.
type NotificationStore interface {
	// CreateNotification saves a new notification.
	CreateNotification(ctx context.Context, notification *domain.Notification) error

	// ExistsRecent reports whether a notification of the given type for
	// the given task was created at or after the since instant. It backs
	// the best-effort de-duplication window for reminders and overdue
	// alerts.
	ExistsRecent(ctx context.Context, taskID uuid.UUID, nType domain.NotificationType, since time.Time) (bool, error)

	// CountAll reports the total number of notifications.
	CountAll(ctx context.Context) (int, error)
}
