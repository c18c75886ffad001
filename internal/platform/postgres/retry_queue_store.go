package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/store"
)

// PostgresRetryQueueStore implements the store.RetryQueueStore interface
// using PostgreSQL. A bigserial position column gives the table its list
// ordering; each push appends to the tail and each removal is atomic per
// entry, which is all the correctness the retry phase relies on.
type PostgresRetryQueueStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRetryQueueStore creates a new PostgresRetryQueueStore
func NewPostgresRetryQueueStore(db store.DBTX, logger *slog.Logger) *PostgresRetryQueueStore {
	return &PostgresRetryQueueStore{
		db:     db,
		logger: logger.With("component", "retry_queue_store"),
	}
}

// Push appends an entry to the tail of the queue.
func (s *PostgresRetryQueueStore) Push(ctx context.Context, entry *store.RetryEntry) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO notification_retry_queue (id, payload, retry_count, failed_at, last_retry_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		[]byte(entry.Payload),
		entry.RetryCount,
		entry.FailedAt,
		entry.LastRetryAt,
	)

	if err != nil {
		log.Error("failed to push retry queue entry",
			"entry_id", entry.ID,
			"retry_count", entry.RetryCount,
			"error", err)
		return MapError(err)
	}

	return nil
}

// List returns every entry currently in the queue in insertion order.
func (s *PostgresRetryQueueStore) List(ctx context.Context) ([]*store.RetryEntry, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, payload, retry_count, failed_at, last_retry_at
		FROM notification_retry_queue
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list retry queue entries", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*store.RetryEntry
	for rows.Next() {
		var entry store.RetryEntry
		var payload []byte

		err := rows.Scan(
			&entry.ID,
			&payload,
			&entry.RetryCount,
			&entry.FailedAt,
			&entry.LastRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retry queue row: %w", err)
		}

		entry.Payload = payload
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return entries, nil
}

// Remove deletes the entry with the given ID.
func (s *PostgresRetryQueueStore) Remove(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_retry_queue WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrQueueEntryNotFound
	}

	return nil
}

// Length reports the number of entries in the queue.
func (s *PostgresRetryQueueStore) Length(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_retry_queue`).Scan(&count); err != nil {
		return 0, MapError(err)
	}

	return count, nil
}
