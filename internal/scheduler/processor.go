package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/domain/recurrence"
	"github.com/phrazzld/cadence/internal/events"
	"github.com/phrazzld/cadence/internal/store"
)

// materializationOffset is the slack added past a pattern's recorded
// next-due time when computing the following occurrence, so a tick firing
// exactly on the boundary still advances the pattern.
const materializationOffset = time.Minute

// Pinger reports database liveness for the per-tick health probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Config carries the windows and retry policy of the job processor.
type Config struct {
	// ReminderLookAhead is how far ahead of now a due date raises a
	// reminder notification.
	ReminderLookAhead time.Duration

	// DedupWindow suppresses a reminder or overdue notification when one
	// of the same type for the same task exists within this window.
	DedupWindow time.Duration

	// MaxAttempts is the retry ceiling for failed notifications. Entries
	// that reach it are dropped with their payload logged.
	MaxAttempts int

	// EntryMaxAge marks queued retry entries older than this as
	// unrecoverable during health sweeps.
	EntryMaxAge time.Duration
}

// Processor runs the scheduled work: materializing instances from due
// recurring patterns, raising reminder and overdue notifications, and
// draining the failed-notification retry queue. All work is idempotent
// under re-delivery; the guarantee throughout is at-least-once.
type Processor struct {
	tasks         store.TaskStore
	patterns      store.PatternStore
	notifications store.NotificationStore
	queue         store.RetryQueueStore
	emitter       events.EventEmitter
	notifier      *Notifier
	pinger        Pinger
	cfg           Config
	logger        *slog.Logger

	// inProgress prevents overlapping ticks. A tick that fires while the
	// previous one is still running is skipped, not queued.
	inProgress atomic.Bool

	// nowFunc is swapped in tests; production always uses time.Now.
	nowFunc func() time.Time
}

// NewProcessor creates a new Processor.
func NewProcessor(
	tasks store.TaskStore,
	patterns store.PatternStore,
	notifications store.NotificationStore,
	queue store.RetryQueueStore,
	emitter events.EventEmitter,
	notifier *Notifier,
	pinger Pinger,
	cfg Config,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		tasks:         tasks,
		patterns:      patterns,
		notifications: notifications,
		queue:         queue,
		emitter:       emitter,
		notifier:      notifier,
		pinger:        pinger,
		cfg:           cfg,
		logger:        logger.With("component", "processor"),
		nowFunc:       time.Now,
	}
}

// ProcessTick runs one full scheduling pass. Materialization runs first so
// freshly created instances are visible to the reminder scan of the same
// tick; reminders and overdue detection then run concurrently; the retry
// queue is drained last. Failures in one phase never block the others.
func (p *Processor) ProcessTick(ctx context.Context) error {
	if !p.inProgress.CompareAndSwap(false, true) {
		p.logger.Warn("previous tick still in progress, skipping")
		return nil
	}
	defer p.inProgress.Store(false)

	start := p.nowFunc().UTC()
	p.logger.Debug("tick started", "at", start)

	if err := p.pinger.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable, skipping tick: %w", err)
	}

	p.materializeDuePatterns(ctx, start)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.sendUpcomingReminders(ctx, start)
	}()
	go func() {
		defer wg.Done()
		p.flagOverdueTasks(ctx, start)
	}()
	wg.Wait()

	p.RetryFailedNotifications(ctx)

	p.logger.Debug("tick finished", "elapsed", time.Since(start))
	return nil
}

// materializeDuePatterns turns every due active pattern into a concrete
// task instance and advances or exhausts the pattern. Each pattern is
// processed independently so one broken rule cannot stall the rest.
func (p *Processor) materializeDuePatterns(ctx context.Context, now time.Time) {
	due, err := p.patterns.ListDue(ctx, now)
	if err != nil {
		p.logger.Error("failed to list due patterns", "error", err)
		return
	}

	if len(due) == 0 {
		return
	}
	p.logger.Info("materializing due patterns", "count", len(due))

	for _, pattern := range due {
		if err := p.materializePattern(ctx, pattern, now); err != nil {
			p.logger.Error("failed to materialize pattern",
				"pattern_id", pattern.ID,
				"template_id", pattern.TaskID,
				"error", err)
		}
	}
}

// materializePattern creates one instance for a due pattern: resolve the
// template, create the instance at the recorded next-due time, then either
// advance the pattern to its following occurrence or deactivate it.
func (p *Processor) materializePattern(ctx context.Context, pattern *domain.RecurringPattern, now time.Time) error {
	template, err := p.tasks.GetTask(ctx, pattern.TaskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// Template is gone; nothing will ever materialize again.
			p.logger.Warn("deactivating pattern with missing template",
				"pattern_id", pattern.ID,
				"template_id", pattern.TaskID)
			pattern.Exhaust(now)
			return p.patterns.UpdatePattern(ctx, pattern)
		}
		return fmt.Errorf("failed to load template: %w", err)
	}

	rule, err := recurrence.Parse(pattern.RRule)
	if err != nil {
		// A rule that fails to parse here was either corrupted in storage
		// or written by a newer version. Leave the pattern untouched for
		// operator inspection rather than guessing.
		p.logger.Error("pattern carries an unparseable rule",
			"pattern_id", pattern.ID,
			"template_id", pattern.TaskID,
			"rrule", pattern.RRule)
		return err
	}

	instance, err := domain.NewTaskInstance(template, pattern.NextDue)
	if err != nil {
		return fmt.Errorf("failed to build instance: %w", err)
	}
	if err := p.tasks.CreateTask(ctx, instance); err != nil {
		return fmt.Errorf("failed to create instance: %w", err)
	}

	p.logger.Info("materialized task instance",
		"template_id", template.ID,
		"instance_id", instance.ID,
		"due", pattern.NextDue)

	anchor := pattern.CreatedAt
	if template.StartDate != nil {
		anchor = *template.StartDate
	}

	next, ok := rule.NextAfter(anchor, pattern.NextDue.Add(materializationOffset))
	if ok {
		pattern.Advance(next, now)
	} else {
		pattern.Exhaust(now)
	}
	if err := p.patterns.UpdatePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to update pattern: %w", err)
	}

	if !ok {
		p.emit(ctx, events.TypePatternExhausted, events.PatternExhaustedPayload{
			PatternID:  pattern.ID,
			TemplateID: template.ID,
			RRule:      pattern.RRule,
		})
	}

	// Advance has already moved pattern.NextDue past this occurrence, so the
	// announcement takes its date from the instance itself.
	p.emit(ctx, events.TypeInstanceMaterialized, events.InstanceMaterializedPayload{
		TemplateID: template.ID,
		InstanceID: instance.ID,
		OwnerID:    template.OwnerID,
		Title:      instance.Title,
		DueDate:    *instance.DueDate,
	})

	return nil
}

// sendUpcomingReminders raises a reminder for every open task due inside
// the look-ahead window, suppressed by the de-duplication window.
func (p *Processor) sendUpcomingReminders(ctx context.Context, now time.Time) {
	upcoming, err := p.tasks.ListDueSoon(ctx, now, p.cfg.ReminderLookAhead)
	if err != nil {
		p.logger.Error("failed to list upcoming tasks", "error", err)
		return
	}

	for _, task := range upcoming {
		p.notifyForTask(ctx, task, now, domain.NotificationTypeReminder,
			"Task due soon",
			fmt.Sprintf("%q is due at %s", task.Title, task.DueDate.Format(time.RFC1123)))
	}
}

// flagOverdueTasks raises an overdue notification for every open task whose
// due date has passed, suppressed by the de-duplication window.
func (p *Processor) flagOverdueTasks(ctx context.Context, now time.Time) {
	overdue, err := p.tasks.ListOverdue(ctx, now)
	if err != nil {
		p.logger.Error("failed to list overdue tasks", "error", err)
		return
	}

	for _, task := range overdue {
		p.notifyForTask(ctx, task, now, domain.NotificationTypeOverdue,
			"Task overdue",
			fmt.Sprintf("%q was due at %s", task.Title, task.DueDate.Format(time.RFC1123)))
	}
}

// notifyForTask delivers one notification of the given type to the task
// owner unless a recent one of the same type exists for the task.
func (p *Processor) notifyForTask(ctx context.Context, task *domain.Task, now time.Time, nType domain.NotificationType, title, message string) {
	exists, err := p.notifications.ExistsRecent(ctx, task.ID, nType, now.Add(-p.cfg.DedupWindow))
	if err != nil {
		p.logger.Error("failed to check for recent notification",
			"task_id", task.ID,
			"type", nType,
			"error", err)
		return
	}
	if exists {
		return
	}

	taskID := task.ID
	err = p.notifier.Deliver(ctx, domain.NotificationParams{
		UserID:        task.OwnerID,
		Type:          nType,
		Title:         title,
		Message:       message,
		RelatedTaskID: &taskID,
	})
	if err != nil {
		p.logger.Error("failed to deliver notification",
			"task_id", task.ID,
			"type", nType,
			"error", err)
	}
}

// RetryFailedNotifications drains the retry queue once. Each entry is
// re-attempted and removed on success; a failed attempt replaces the entry
// with its count incremented; an entry at the retry ceiling is dropped with
// its full payload logged so the notification is recoverable by hand.
//
// Replacement entries are pushed before the original is removed. A crash
// between the two operations leaves a duplicate rather than losing the
// notification.
func (p *Processor) RetryFailedNotifications(ctx context.Context) {
	entries, err := p.queue.List(ctx)
	if err != nil {
		p.logger.Error("failed to list retry queue", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	p.logger.Info("retrying failed notifications", "count", len(entries))
	now := p.nowFunc().UTC()

	for _, entry := range entries {
		p.retryEntry(ctx, entry, now)
	}
}

// retryEntry processes a single queue entry.
func (p *Processor) retryEntry(ctx context.Context, entry *store.RetryEntry, now time.Time) {
	var params domain.NotificationParams
	if err := json.Unmarshal(entry.Payload, &params); err != nil {
		p.logger.Error("dropping retry entry with malformed payload",
			"entry_id", entry.ID,
			"payload", string(entry.Payload),
			"error", err)
		p.removeEntry(ctx, entry)
		return
	}

	notification, err := domain.NewNotification(params)
	if err == nil {
		err = p.notifications.CreateNotification(ctx, notification)
	}
	if err == nil {
		p.removeEntry(ctx, entry)
		return
	}

	attempts := entry.RetryCount + 1
	if attempts >= p.cfg.MaxAttempts {
		p.logger.Error("dropping notification after exhausting retries",
			"entry_id", entry.ID,
			"retry_count", attempts,
			"payload", string(entry.Payload),
			"error", err)
		p.removeEntry(ctx, entry)
		return
	}

	// The replacement gets a fresh ID so removing the original below
	// cannot touch it.
	replacement := &store.RetryEntry{
		ID:          uuid.New(),
		Payload:     entry.Payload,
		RetryCount:  attempts,
		FailedAt:    entry.FailedAt,
		LastRetryAt: &now,
	}
	if pushErr := p.queue.Push(ctx, replacement); pushErr != nil {
		p.logger.Error("failed to requeue retry entry",
			"entry_id", entry.ID,
			"error", pushErr)
		return
	}
	p.removeEntry(ctx, entry)

	p.logger.Warn("notification retry failed",
		"entry_id", entry.ID,
		"retry_count", attempts,
		"error", err)
}

// removeEntry deletes a queue entry, tolerating concurrent removal.
func (p *Processor) removeEntry(ctx context.Context, entry *store.RetryEntry) {
	if err := p.queue.Remove(ctx, entry.ID); err != nil && !store.IsNotFoundError(err) {
		p.logger.Error("failed to remove retry queue entry",
			"entry_id", entry.ID,
			"error", err)
	}
}

// emit publishes a scheduler event, logging rather than propagating
// failures so event plumbing never affects materialization outcomes.
func (p *Processor) emit(ctx context.Context, eventType string, payload interface{}) {
	event, err := events.NewSchedulerEvent(eventType, payload)
	if err != nil {
		p.logger.Error("failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := p.emitter.EmitEvent(ctx, event); err != nil {
		p.logger.Error("event handler failed", "event_type", eventType, "error", err)
	}
}
