package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskPriority represents the urgency of a task
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID           = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwnerID      = errors.New("task owner ID cannot be empty")
	ErrEmptyTaskTitle        = errors.New("task title cannot be empty")
	ErrTemplateWithoutRule   = errors.New("recurring template must carry a recurrence rule")
	ErrTemplateWithParent    = errors.New("recurring template cannot reference a parent task")
	ErrInstanceRecurring     = errors.New("task instance cannot itself be recurring")
	ErrRuleOnNonRecurring    = errors.New("recurrence rule is only valid on a recurring template")
	ErrInstanceWithoutParent = errors.New("task instance must reference its template")
)

// Task represents a unit of work. A task is exactly one of three shapes:
// a recurring template (IsRecurring with a rule, no parent), an instance
// materialized from a template (parent set, not recurring), or a plain
// one-off task (neither).
type Task struct {
	ID                uuid.UUID    `json:"id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Status            TaskStatus   `json:"status"`
	Priority          TaskPriority `json:"priority"`
	OwnerID           uuid.UUID    `json:"owner_id"`
	AssigneeIDs       []uuid.UUID  `json:"assignee_ids"`
	CategoryID        *uuid.UUID   `json:"category_id,omitempty"`
	StartDate         *time.Time   `json:"start_date,omitempty"`
	DueDate           *time.Time   `json:"due_date,omitempty"`
	IsRecurring       bool         `json:"is_recurring"`
	RecurringRule     string       `json:"recurring_rule,omitempty"`
	ParentTaskID      *uuid.UUID   `json:"parent_task_id,omitempty"`
	Span              *Duration    `json:"span,omitempty"`
	RecurrenceVersion int          `json:"recurrence_version"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// NewTask creates a new plain (non-recurring) Task owned by the given user.
// It generates a new UUID for the task ID, sets the status to todo and the
// priority to medium, and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewTask(ownerID uuid.UUID, title string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Title:     title,
		Status:    TaskStatusTodo,
		Priority:  TaskPriorityMedium,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// NewTemplateTask creates a new recurring template Task carrying the given
// recurrence rule. Instances are materialized from templates by the job
// processor; the template itself is never due.
// Returns an error if validation fails.
func NewTemplateTask(ownerID uuid.UUID, title, rule string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:            uuid.New(),
		Title:         title,
		Status:        TaskStatusTodo,
		Priority:      TaskPriorityMedium,
		OwnerID:       ownerID,
		IsRecurring:   true,
		RecurringRule: rule,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// NewTaskInstance materializes a concrete Task from a recurring template at
// the given occurrence time. The instance copies the template's descriptive
// fields, starts in todo status with start and due dates at the occurrence,
// and references the template as its parent. Once created, instances behave
// as independent tasks.
// Returns an error if the source task is not a template or validation fails.
func NewTaskInstance(template *Task, occurrence time.Time) (*Task, error) {
	if template == nil || !template.IsTemplate() {
		return nil, ErrTemplateWithoutRule
	}

	now := time.Now().UTC()
	occ := occurrence
	parentID := template.ID

	instance := &Task{
		ID:           uuid.New(),
		Title:        template.Title,
		Description:  template.Description,
		Status:       TaskStatusTodo,
		Priority:     template.Priority,
		OwnerID:      template.OwnerID,
		AssigneeIDs:  append([]uuid.UUID(nil), template.AssigneeIDs...),
		CategoryID:   template.CategoryID,
		StartDate:    &occ,
		DueDate:      &occ,
		ParentTaskID: &parentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := instance.Validate(); err != nil {
		return nil, err
	}

	return instance, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.OwnerID == uuid.Nil {
		return ErrEmptyTaskOwnerID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !isValidTaskPriority(t.Priority) {
		return ErrInvalidTaskPriority
	}

	// A task is a template, an instance, or plain; never a mix.
	if t.IsRecurring {
		if t.RecurringRule == "" {
			return ErrTemplateWithoutRule
		}
		if t.ParentTaskID != nil {
			return ErrTemplateWithParent
		}
	} else {
		if t.ParentTaskID != nil && t.RecurringRule != "" {
			return ErrInstanceRecurring
		}
		if t.RecurringRule != "" {
			return ErrRuleOnNonRecurring
		}
	}

	return nil
}

// IsTemplate reports whether the task is a recurring template.
func (t *Task) IsTemplate() bool {
	return t.IsRecurring && t.RecurringRule != "" && t.ParentTaskID == nil
}

// IsInstance reports whether the task was materialized from a template.
func (t *Task) IsInstance() bool {
	return t.ParentTaskID != nil && !t.IsRecurring
}

// UpdateStatus updates the task's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (t *Task) UpdateStatus(status TaskStatus) error {
	if !isValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}

	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// isValidTaskPriority checks if the given priority is a valid TaskPriority.
func isValidTaskPriority(priority TaskPriority) bool {
	switch priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	default:
		return false
	}
}
