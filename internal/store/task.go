package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// CreateTask saves a new task to the store.
	// Returns ErrInvalidEntity wrapped errors for constraint violations.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateTask saves modifications to an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// ListDueSoon retrieves tasks whose due date falls inside the window
	// starting at now, excluding done tasks and recurring templates.
	ListDueSoon(ctx context.Context, now time.Time, window time.Duration) ([]*domain.Task, error)

	// ListOverdue retrieves tasks whose due date is strictly before now,
	// excluding done tasks and recurring templates.
	ListOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error)

	// CountByStatus reports how many tasks exist per status.
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)
}
