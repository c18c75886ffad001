package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies why a notification was raised
type NotificationType string

// Possible notification type values
const (
	NotificationTypeReminder   NotificationType = "reminder"
	NotificationTypeOverdue    NotificationType = "overdue"
	NotificationTypeSharedTask NotificationType = "shared_task"
)

// Common validation errors for Notification
var (
	ErrEmptyNotificationID      = errors.New("notification ID cannot be empty")
	ErrEmptyNotificationUserID  = errors.New("notification user ID cannot be empty")
	ErrEmptyNotificationTitle   = errors.New("notification title cannot be empty")
	ErrEmptyNotificationMessage = errors.New("notification message cannot be empty")
)

// Notification is a delivery record for one user. The scheduler creates
// notifications and never mutates them afterwards; the read path flips
// IsRead.
type Notification struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	RelatedTaskID *uuid.UUID       `json:"related_task_id,omitempty"`
	IsRead        bool             `json:"is_read"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NotificationParams is the creation payload for a Notification. It is what
// gets serialized into the retry queue when delivery fails, so it must stay
// JSON round-trippable.
type NotificationParams struct {
	UserID        uuid.UUID        `json:"user_id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	RelatedTaskID *uuid.UUID       `json:"related_task_id,omitempty"`
}

// NewNotification creates a new unread Notification from the given params.
// Returns an error if validation fails.
func NewNotification(params NotificationParams) (*Notification, error) {
	notification := &Notification{
		ID:            uuid.New(),
		UserID:        params.UserID,
		Type:          params.Type,
		Title:         params.Title,
		Message:       params.Message,
		RelatedTaskID: params.RelatedTaskID,
		IsRead:        false,
		CreatedAt:     time.Now().UTC(),
	}

	if err := notification.Validate(); err != nil {
		return nil, err
	}

	return notification, nil
}

// Validate checks if the Notification has valid data.
// Returns an error if any field fails validation.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return ErrEmptyNotificationID
	}

	if n.UserID == uuid.Nil {
		return ErrEmptyNotificationUserID
	}

	if !isValidNotificationType(n.Type) {
		return ErrInvalidNotificationType
	}

	if n.Title == "" {
		return ErrEmptyNotificationTitle
	}

	if n.Message == "" {
		return ErrEmptyNotificationMessage
	}

	return nil
}

// MarkRead flags the notification as read.
func (n *Notification) MarkRead() {
	n.IsRead = true
}

// isValidNotificationType checks if the given type is a valid NotificationType.
func isValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationTypeReminder, NotificationTypeOverdue, NotificationTypeSharedTask:
		return true
	default:
		return false
	}
}
