package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrInvalidTaskStatus is returned when a task status is not valid.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTaskPriority is returned when a task priority is not valid.
	ErrInvalidTaskPriority = errors.New("invalid task priority")

	// ErrInvalidNotificationType is returned when a notification type is not valid.
	ErrInvalidNotificationType = errors.New("invalid notification type")
)
