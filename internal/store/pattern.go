package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
)

// PatternStore defines the interface for recurring pattern persistence.
type PatternStore interface {
	// CreatePattern saves a new recurring pattern.
	// Returns ErrActivePatternExists if the template already has an
	// active pattern.
	CreatePattern(ctx context.Context, pattern *domain.RecurringPattern) error

	// GetPatternByTask retrieves the pattern belonging to the given
	// template task.
	// Returns ErrPatternNotFound if no pattern exists.
	GetPatternByTask(ctx context.Context, taskID uuid.UUID) (*domain.RecurringPattern, error)

	// ListDue retrieves every active pattern whose next due time is at or
	// before now.
	ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringPattern, error)

	// UpdatePattern saves modifications to an existing pattern, including
	// next-due advancement and deactivation.
	// Returns ErrPatternNotFound if the pattern does not exist.
	UpdatePattern(ctx context.Context, pattern *domain.RecurringPattern) error

	// CountByActive reports how many patterns are active and inactive.
	CountByActive(ctx context.Context) (active int, inactive int, err error)
}
