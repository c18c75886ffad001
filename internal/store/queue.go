package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RetryEntry is one element of the durable failed-notification queue:
// a serialized notification-creation payload plus its retry bookkeeping.
type RetryEntry struct {
	ID          uuid.UUID       `json:"id"`
	Payload     json.RawMessage `json:"payload"`
	RetryCount  int             `json:"retry_count"`
	FailedAt    time.Time       `json:"failed_at"`
	LastRetryAt *time.Time      `json:"last_retry_at,omitempty"`
}

// RetryQueueStore defines the interface for the durable retry list.
// Entries are pushed to the tail, removed individually, and length-queried
// for health reporting. Correctness relies only on each operation being
// atomic per entry; no application-level locking is layered on top.
type RetryQueueStore interface {
	// Push appends an entry to the tail of the queue.
	Push(ctx context.Context, entry *RetryEntry) error

	// List returns every entry currently in the queue in insertion order.
	List(ctx context.Context) ([]*RetryEntry, error)

	// Remove deletes the entry with the given ID.
	// Returns ErrQueueEntryNotFound if the entry is no longer present.
	Remove(ctx context.Context, id uuid.UUID) error

	// Length reports the number of entries in the queue.
	Length(ctx context.Context) (int, error)
}
