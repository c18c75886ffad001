package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/store"
)

// taskColumns is the select list shared by every task query.
const taskColumns = `id, title, description, status, priority, owner_id, assignee_ids,
	category_id, start_date, due_date, is_recurring, recurring_rule,
	parent_task_id, span, recurrence_version, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With("component", "task_store"),
	}
}

// CreateTask saves a new task to the database.
func (s *PostgresTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	assignees, err := json.Marshal(task.AssigneeIDs)
	if err != nil {
		return fmt.Errorf("failed to encode assignees: %w", err)
	}

	span, err := marshalSpan(task.Span)
	if err != nil {
		return fmt.Errorf("failed to encode span: %w", err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.OwnerID,
		assignees,
		task.CategoryID,
		task.StartDate,
		task.DueDate,
		task.IsRecurring,
		nullString(task.RecurringRule),
		task.ParentTaskID,
		span,
		task.RecurrenceVersion,
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create task",
			"task_id", task.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetTask retrieves a task by its unique ID.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return task, nil
}

// UpdateTask saves modifications to an existing task.
func (s *PostgresTaskStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	assignees, err := json.Marshal(task.AssigneeIDs)
	if err != nil {
		return fmt.Errorf("failed to encode assignees: %w", err)
	}

	span, err := marshalSpan(task.Span)
	if err != nil {
		return fmt.Errorf("failed to encode span: %w", err)
	}

	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5,
			owner_id = $6, assignee_ids = $7, category_id = $8,
			start_date = $9, due_date = $10, is_recurring = $11,
			recurring_rule = $12, parent_task_id = $13, span = $14,
			recurrence_version = $15, updated_at = $16
		WHERE id = $1
	`

	task.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.OwnerID,
		assignees,
		task.CategoryID,
		task.StartDate,
		task.DueDate,
		task.IsRecurring,
		nullString(task.RecurringRule),
		task.ParentTaskID,
		span,
		task.RecurrenceVersion,
		task.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to update task",
			"task_id", task.ID,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// ListDueSoon retrieves tasks due inside the window starting at now,
// excluding done tasks and recurring templates.
func (s *PostgresTaskStore) ListDueSoon(
	ctx context.Context,
	now time.Time,
	window time.Duration,
) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date IS NOT NULL
		  AND due_date >= $1
		  AND due_date <= $2
		  AND status <> $3
		  AND is_recurring = FALSE
		ORDER BY due_date ASC
	`

	return s.listTasks(ctx, query, now, now.Add(window), domain.TaskStatusDone)
}

// ListOverdue retrieves tasks whose due date is strictly in the past,
// excluding done tasks and recurring templates.
func (s *PostgresTaskStore) ListOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date IS NOT NULL
		  AND due_date < $1
		  AND status <> $2
		  AND is_recurring = FALSE
		ORDER BY due_date ASC
	`

	return s.listTasks(ctx, query, now, domain.TaskStatusDone)
}

// CountByStatus reports how many tasks exist per status.
func (s *PostgresTaskStore) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM tasks GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// listTasks runs a query returning full task rows and scans them.
func (s *PostgresTaskStore) listTasks(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one task row onto a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var assignees []byte
	var span []byte
	var rule sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.OwnerID,
		&assignees,
		&task.CategoryID,
		&task.StartDate,
		&task.DueDate,
		&task.IsRecurring,
		&rule,
		&task.ParentTaskID,
		&span,
		&task.RecurrenceVersion,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.RecurringRule = rule.String

	if len(assignees) > 0 {
		if err := json.Unmarshal(assignees, &task.AssigneeIDs); err != nil {
			return nil, fmt.Errorf("failed to decode assignees: %w", err)
		}
	}

	if len(span) > 0 {
		var d domain.Duration
		if err := json.Unmarshal(span, &d); err != nil {
			return nil, fmt.Errorf("failed to decode span: %w", err)
		}
		task.Span = &d
	}

	return &task, nil
}

// marshalSpan encodes an optional duration as JSON, nil staying NULL.
func marshalSpan(span *domain.Duration) ([]byte, error) {
	if span == nil {
		return nil, nil
	}
	return json.Marshal(span)
}

// nullString maps an empty string onto SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
