package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/store"
)

// PostgresNotificationStore implements the store.NotificationStore interface using PostgreSQL
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgresNotificationStore
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With("component", "notification_store"),
	}
}

// CreateNotification saves a new notification.
func (s *PostgresNotificationStore) CreateNotification(
	ctx context.Context,
	notification *domain.Notification,
) error {
	log := logger.FromContext(ctx)

	if err := notification.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, message, related_task_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		notification.ID,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.RelatedTaskID,
		notification.IsRead,
		notification.CreatedAt,
	)

	if err != nil {
		log.Error("failed to create notification",
			"notification_id", notification.ID,
			"user_id", notification.UserID,
			"type", notification.Type,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ExistsRecent reports whether a notification of the given type for the
// given task was created at or after the since instant.
func (s *PostgresNotificationStore) ExistsRecent(
	ctx context.Context,
	taskID uuid.UUID,
	nType domain.NotificationType,
	since time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE related_task_id = $1 AND type = $2 AND created_at >= $3
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, taskID, nType, since).Scan(&exists); err != nil {
		return false, MapError(err)
	}

	return exists, nil
}

// CountAll reports the total number of notifications.
func (s *PostgresNotificationStore) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&count); err != nil {
		return 0, MapError(err)
	}

	return count, nil
}
