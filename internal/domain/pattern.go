package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for RecurringPattern
var (
	ErrEmptyPatternID     = errors.New("pattern ID cannot be empty")
	ErrEmptyPatternTaskID = errors.New("pattern task ID cannot be empty")
	ErrEmptyPatternRule   = errors.New("pattern rule cannot be empty")
	ErrZeroPatternNextDue = errors.New("pattern next due time cannot be zero")
)

// RecurringPattern holds the scheduling state for one template task: the
// recurrence rule, the next occurrence to materialize, and whether the
// pattern is still producing instances. At most one active pattern exists
// per template. Exhausted patterns are deactivated, never hard-deleted, so
// the materialization history stays auditable.
type RecurringPattern struct {
	ID            uuid.UUID  `json:"id"`
	TaskID        uuid.UUID  `json:"task_id"`
	RRule         string     `json:"rrule"`
	NextDue       time.Time  `json:"next_due"`
	LastGenerated *time.Time `json:"last_generated,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewRecurringPattern creates a new active RecurringPattern for the given
// template task, due to first materialize at nextDue.
// Returns an error if validation fails.
func NewRecurringPattern(taskID uuid.UUID, rrule string, nextDue time.Time) (*RecurringPattern, error) {
	now := time.Now().UTC()
	pattern := &RecurringPattern{
		ID:        uuid.New(),
		TaskID:    taskID,
		RRule:     rrule,
		NextDue:   nextDue.UTC(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := pattern.Validate(); err != nil {
		return nil, err
	}

	return pattern, nil
}

// Validate checks if the RecurringPattern has valid data.
// Returns an error if any field fails validation.
func (p *RecurringPattern) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPatternID
	}

	if p.TaskID == uuid.Nil {
		return ErrEmptyPatternTaskID
	}

	if p.RRule == "" {
		return ErrEmptyPatternRule
	}

	if p.NextDue.IsZero() {
		return ErrZeroPatternNextDue
	}

	return nil
}

// Advance moves the pattern forward after a materialization: next becomes
// the new NextDue and LastGenerated records when the instance was produced.
func (p *RecurringPattern) Advance(next, generatedAt time.Time) {
	next = next.UTC()
	generatedAt = generatedAt.UTC()
	p.NextDue = next
	p.LastGenerated = &generatedAt
	p.UpdatedAt = generatedAt
}

// Exhaust deactivates the pattern once its rule has no further occurrences.
// The record is retained for audit.
func (p *RecurringPattern) Exhaust(at time.Time) {
	at = at.UTC()
	p.IsActive = false
	p.UpdatedAt = at
}
