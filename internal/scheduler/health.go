package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/store"
)

// Reporter produces the periodic health and statistics snapshots and backs
// the operational HTTP endpoints. It only reads; the one exception is the
// retry queue sweep, which drops entries that can never succeed.
type Reporter struct {
	tasks         store.TaskStore
	patterns      store.PatternStore
	notifications store.NotificationStore
	queue         store.RetryQueueStore
	pinger        Pinger
	cfg           Config
	logger        *slog.Logger
}

// NewReporter creates a new Reporter.
func NewReporter(
	tasks store.TaskStore,
	patterns store.PatternStore,
	notifications store.NotificationStore,
	queue store.RetryQueueStore,
	pinger Pinger,
	cfg Config,
	logger *slog.Logger,
) *Reporter {
	return &Reporter{
		tasks:         tasks,
		patterns:      patterns,
		notifications: notifications,
		queue:         queue,
		pinger:        pinger,
		cfg:           cfg,
		logger:        logger.With("component", "reporter"),
	}
}

// Health is a point-in-time liveness snapshot.
type Health struct {
	DatabaseOK     bool      `json:"database_ok"`
	ActivePatterns int       `json:"active_patterns"`
	RetryQueueLen  int       `json:"retry_queue_len"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Stats is a point-in-time workload snapshot.
type Stats struct {
	TasksByStatus    map[domain.TaskStatus]int `json:"tasks_by_status"`
	ActivePatterns   int                       `json:"active_patterns"`
	InactivePatterns int                       `json:"inactive_patterns"`
	Notifications    int                       `json:"notifications"`
	RetryQueueLen    int                       `json:"retry_queue_len"`
	CollectedAt      time.Time                 `json:"collected_at"`
}

// HealthCheck probes the database and the scheduler's durable state. It
// also sweeps the retry queue, dropping entries that are malformed or
// older than the configured maximum age.
func (r *Reporter) HealthCheck(ctx context.Context) Health {
	health := Health{CheckedAt: time.Now().UTC()}

	if err := r.pinger.PingContext(ctx); err != nil {
		r.logger.Error("database ping failed", "error", err)
		return health
	}
	health.DatabaseOK = true

	active, _, err := r.patterns.CountByActive(ctx)
	if err != nil {
		r.logger.Error("failed to count patterns", "error", err)
	} else {
		health.ActivePatterns = active
	}

	r.sweepRetryQueue(ctx, health.CheckedAt)

	length, err := r.queue.Length(ctx)
	if err != nil {
		r.logger.Error("failed to read retry queue length", "error", err)
	} else {
		health.RetryQueueLen = length
	}

	r.logger.Info("health check",
		"database_ok", health.DatabaseOK,
		"active_patterns", health.ActivePatterns,
		"retry_queue_len", health.RetryQueueLen)

	return health
}

// sweepRetryQueue drops unrecoverable retry entries: payloads that no
// longer decode, and entries stuck in the queue past the maximum age.
func (r *Reporter) sweepRetryQueue(ctx context.Context, now time.Time) {
	entries, err := r.queue.List(ctx)
	if err != nil {
		r.logger.Error("failed to list retry queue", "error", err)
		return
	}

	cutoff := now.Add(-r.cfg.EntryMaxAge)
	for _, entry := range entries {
		var params domain.NotificationParams
		malformed := json.Unmarshal(entry.Payload, &params) != nil
		stale := entry.FailedAt.Before(cutoff)
		if !malformed && !stale {
			continue
		}

		r.logger.Error("sweeping unrecoverable retry entry",
			"entry_id", entry.ID,
			"malformed", malformed,
			"stale", stale,
			"failed_at", entry.FailedAt,
			"payload", string(entry.Payload))
		if err := r.queue.Remove(ctx, entry.ID); err != nil && !store.IsNotFoundError(err) {
			r.logger.Error("failed to remove swept entry",
				"entry_id", entry.ID,
				"error", err)
		}
	}
}

// CollectStats gathers the workload snapshot.
func (r *Reporter) CollectStats(ctx context.Context) Stats {
	stats := Stats{CollectedAt: time.Now().UTC()}

	byStatus, err := r.tasks.CountByStatus(ctx)
	if err != nil {
		r.logger.Error("failed to count tasks", "error", err)
	} else {
		stats.TasksByStatus = byStatus
	}

	active, inactive, err := r.patterns.CountByActive(ctx)
	if err != nil {
		r.logger.Error("failed to count patterns", "error", err)
	} else {
		stats.ActivePatterns = active
		stats.InactivePatterns = inactive
	}

	total, err := r.notifications.CountAll(ctx)
	if err != nil {
		r.logger.Error("failed to count notifications", "error", err)
	} else {
		stats.Notifications = total
	}

	length, err := r.queue.Length(ctx)
	if err != nil {
		r.logger.Error("failed to read retry queue length", "error", err)
	} else {
		stats.RetryQueueLen = length
	}

	r.logger.Info("scheduler stats",
		"todo", stats.TasksByStatus[domain.TaskStatusTodo],
		"in_progress", stats.TasksByStatus[domain.TaskStatusInProgress],
		"done", stats.TasksByStatus[domain.TaskStatusDone],
		"active_patterns", stats.ActivePatterns,
		"notifications", stats.Notifications,
		"retry_queue_len", stats.RetryQueueLen)

	return stats
}
