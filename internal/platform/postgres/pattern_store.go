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

// patternColumns is the select list shared by every pattern query.
const patternColumns = `id, task_id, rrule, next_due, last_generated, is_active, created_at, updated_at`

// PostgresPatternStore implements the store.PatternStore interface using PostgreSQL
type PostgresPatternStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPatternStore creates a new PostgresPatternStore
func NewPostgresPatternStore(db store.DBTX, logger *slog.Logger) *PostgresPatternStore {
	return &PostgresPatternStore{
		db:     db,
		logger: logger.With("component", "pattern_store"),
	}
}

// CreatePattern saves a new recurring pattern. A partial unique index on
// (task_id) WHERE is_active enforces the one-active-pattern invariant; its
// violation surfaces as ErrActivePatternExists.
func (s *PostgresPatternStore) CreatePattern(ctx context.Context, pattern *domain.RecurringPattern) error {
	log := logger.FromContext(ctx)

	if err := pattern.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO recurring_patterns (` + patternColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		pattern.ID,
		pattern.TaskID,
		pattern.RRule,
		pattern.NextDue,
		pattern.LastGenerated,
		pattern.IsActive,
		pattern.CreatedAt,
		pattern.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrActivePatternExists
		}
		log.Error("failed to create pattern",
			"pattern_id", pattern.ID,
			"task_id", pattern.TaskID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetPatternByTask retrieves the pattern belonging to the given template
// task, preferring the active one when an exhausted predecessor remains.
func (s *PostgresPatternStore) GetPatternByTask(
	ctx context.Context,
	taskID uuid.UUID,
) (*domain.RecurringPattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM recurring_patterns
		WHERE task_id = $1
		ORDER BY is_active DESC, created_at DESC
		LIMIT 1
	`

	pattern, err := scanPattern(s.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrPatternNotFound
		}
		return nil, MapError(err)
	}

	return pattern, nil
}

// ListDue retrieves every active pattern whose next due time is at or
// before now, oldest first so a backlog drains in order.
func (s *PostgresPatternStore) ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringPattern, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT ` + patternColumns + `
		FROM recurring_patterns
		WHERE is_active = TRUE AND next_due <= $1
		ORDER BY next_due ASC
	`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		log.Error("failed to query due patterns", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []*domain.RecurringPattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}
		patterns = append(patterns, pattern)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return patterns, nil
}

// UpdatePattern saves modifications to an existing pattern, including
// next-due advancement and deactivation.
func (s *PostgresPatternStore) UpdatePattern(ctx context.Context, pattern *domain.RecurringPattern) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE recurring_patterns
		SET rrule = $2, next_due = $3, last_generated = $4, is_active = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		pattern.ID,
		pattern.RRule,
		pattern.NextDue,
		pattern.LastGenerated,
		pattern.IsActive,
		pattern.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to update pattern",
			"pattern_id", pattern.ID,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrPatternNotFound
	}

	return nil
}

// CountByActive reports how many patterns are active and inactive.
func (s *PostgresPatternStore) CountByActive(ctx context.Context) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE NOT is_active)
		FROM recurring_patterns
	`

	var active, inactive int
	if err := s.db.QueryRowContext(ctx, query).Scan(&active, &inactive); err != nil {
		return 0, 0, MapError(err)
	}

	return active, inactive, nil
}

// scanPattern maps one pattern row onto a domain.RecurringPattern.
func scanPattern(row rowScanner) (*domain.RecurringPattern, error) {
	var pattern domain.RecurringPattern

	err := row.Scan(
		&pattern.ID,
		&pattern.TaskID,
		&pattern.RRule,
		&pattern.NextDue,
		&pattern.LastGenerated,
		&pattern.IsActive,
		&pattern.CreatedAt,
		&pattern.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &pattern, nil
}
