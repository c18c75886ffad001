package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/events"
	"github.com/phrazzld/cadence/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv bundles a processor with the fakes behind it.
type testEnv struct {
	tasks         *fakeTaskStore
	patterns      *fakePatternStore
	notifications *fakeNotificationStore
	queue         *fakeRetryQueue
	pinger        *fakePinger
	processor     *Processor
	now           time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := testLogger()
	env := &testEnv{
		tasks:         newFakeTaskStore(),
		patterns:      newFakePatternStore(),
		notifications: newFakeNotificationStore(),
		queue:         newFakeRetryQueue(),
		pinger:        &fakePinger{},
		now:           time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}

	notifier := NewNotifier(env.notifications, env.queue, logger)
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(notifier)

	env.processor = NewProcessor(
		env.tasks,
		env.patterns,
		env.notifications,
		env.queue,
		emitter,
		notifier,
		env.pinger,
		Config{
			ReminderLookAhead: time.Hour,
			DedupWindow:       24 * time.Hour,
			MaxAttempts:       5,
			EntryMaxAge:       24 * time.Hour,
		},
		logger,
	)
	env.processor.nowFunc = func() time.Time { return env.now }

	return env
}

// addTemplate creates a recurring template plus its active pattern, due at
// the given time.
func (env *testEnv) addTemplate(t *testing.T, rule string, nextDue time.Time) (*domain.Task, *domain.RecurringPattern) {
	t.Helper()

	template, err := domain.NewTemplateTask(uuid.New(), "Water the plants", rule)
	require.NoError(t, err)
	start := nextDue
	template.StartDate = &start
	require.NoError(t, env.tasks.CreateTask(context.Background(), template))

	pattern, err := domain.NewRecurringPattern(template.ID, rule, nextDue)
	require.NoError(t, err)
	require.NoError(t, env.patterns.CreatePattern(context.Background(), pattern))

	return template, pattern
}

func (env *testEnv) addPlainTask(t *testing.T, title string, due time.Time) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(uuid.New(), title)
	require.NoError(t, err)
	task.DueDate = &due
	require.NoError(t, env.tasks.CreateTask(context.Background(), task))
	// Keep it out of the created-instances bookkeeping used in assertions.
	env.tasks.mu.Lock()
	env.tasks.createdOrder = env.tasks.createdOrder[:len(env.tasks.createdOrder)-1]
	env.tasks.mu.Unlock()
	return task
}

func TestProcessTick_MaterializesDailyPattern(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	template, pattern := env.addTemplate(t, "FREQ=DAILY", env.now.Add(-5*time.Minute))
	dueAt := pattern.NextDue

	require.NoError(t, env.processor.ProcessTick(context.Background()))

	created := env.tasks.created()
	require.Len(t, created, 2, "template plus one instance")
	instance := created[1]
	assert.True(t, instance.IsInstance())
	assert.Equal(t, template.ID, *instance.ParentTaskID)
	assert.Equal(t, template.Title, instance.Title)
	assert.Equal(t, domain.TaskStatusTodo, instance.Status)
	require.NotNil(t, instance.DueDate)
	assert.True(t, instance.DueDate.Equal(dueAt))

	updated, err := env.patterns.GetPatternByTask(context.Background(), template.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.True(t, updated.NextDue.Equal(dueAt.Add(24*time.Hour)), "pattern advances one day")
	require.NotNil(t, updated.LastGenerated)

	// The materialization event reaches the notifier and becomes an
	// owner reminder.
	reminders := env.notifications.byType(domain.NotificationTypeReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, template.OwnerID, reminders[0].UserID)
	require.NotNil(t, reminders[0].RelatedTaskID)
	assert.Equal(t, instance.ID, *reminders[0].RelatedTaskID)
	// The reminder names the date the instance is due, not the pattern's
	// already-advanced next occurrence.
	assert.Contains(t, reminders[0].Message, dueAt.Format(time.RFC1123))
	assert.NotContains(t, reminders[0].Message, dueAt.Add(24*time.Hour).Format(time.RFC1123))
}

func TestProcessTick_ExhaustsCountBoundedPattern(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	template, _ := env.addTemplate(t, "FREQ=DAILY;COUNT=1", env.now.Add(-time.Minute))

	require.NoError(t, env.processor.ProcessTick(context.Background()))

	created := env.tasks.created()
	require.Len(t, created, 2, "the final occurrence still materializes")

	updated, err := env.patterns.GetPatternByTask(context.Background(), template.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsActive, "pattern deactivates once no occurrence remains")

	// A second tick finds nothing due.
	require.NoError(t, env.processor.ProcessTick(context.Background()))
	assert.Len(t, env.tasks.created(), 2)
}

func TestProcessTick_SkipsWhenPreviousTickRunning(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addTemplate(t, "FREQ=DAILY", env.now.Add(-time.Minute))

	env.processor.inProgress.Store(true)
	require.NoError(t, env.processor.ProcessTick(context.Background()))
	assert.Len(t, env.tasks.created(), 1, "no instance while a tick is in flight")

	env.processor.inProgress.Store(false)
	require.NoError(t, env.processor.ProcessTick(context.Background()))
	assert.Len(t, env.tasks.created(), 2)
}

func TestProcessTick_FailsWhenDatabaseUnreachable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addTemplate(t, "FREQ=DAILY", env.now.Add(-time.Minute))
	env.pinger.err = errors.New("connection refused")

	err := env.processor.ProcessTick(context.Background())
	require.Error(t, err)
	assert.Len(t, env.tasks.created(), 1, "no work happens on an unreachable database")
	assert.False(t, env.processor.inProgress.Load(), "guard is released for the next tick")
}

func TestProcessTick_DeactivatesPatternWithMissingTemplate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pattern, err := domain.NewRecurringPattern(uuid.New(), "FREQ=DAILY", env.now.Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, env.patterns.CreatePattern(context.Background(), pattern))

	require.NoError(t, env.processor.ProcessTick(context.Background()))

	active, inactive, err := env.patterns.CountByActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, active)
	assert.Equal(t, 1, inactive)
}

func TestProcessTick_LeavesPatternWithBadRuleUntouched(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	template, err := domain.NewTemplateTask(uuid.New(), "Broken", "FREQ=DAILY")
	require.NoError(t, err)
	require.NoError(t, env.tasks.CreateTask(context.Background(), template))

	pattern, err := domain.NewRecurringPattern(template.ID, "FREQ=FORTNIGHTLY", env.now.Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, env.patterns.CreatePattern(context.Background(), pattern))

	require.NoError(t, env.processor.ProcessTick(context.Background()))

	updated, err := env.patterns.GetPatternByTask(context.Background(), template.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsActive, "unparseable rules are left for inspection")
	assert.True(t, updated.NextDue.Equal(pattern.NextDue))
	assert.Len(t, env.tasks.created(), 1, "no instance from a rule that does not parse")
}

func TestProcessTick_OnePatternFailureDoesNotStallOthers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	broken, err := domain.NewTemplateTask(uuid.New(), "Broken", "FREQ=DAILY")
	require.NoError(t, err)
	require.NoError(t, env.tasks.CreateTask(context.Background(), broken))
	badPattern, err := domain.NewRecurringPattern(broken.ID, "not-a-rule", env.now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, env.patterns.CreatePattern(context.Background(), badPattern))

	healthy, _ := env.addTemplate(t, "FREQ=DAILY", env.now.Add(-time.Minute))

	require.NoError(t, env.processor.ProcessTick(context.Background()))

	created := env.tasks.created()
	require.Len(t, created, 3, "both templates plus the healthy instance")
	assert.Equal(t, healthy.ID, *created[2].ParentTaskID)
}

func TestProcessTick_RemindsUpcomingTasksOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	task := env.addPlainTask(t, "Submit report", env.now.Add(30*time.Minute))
	env.addPlainTask(t, "Far away", env.now.Add(48*time.Hour))

	require.NoError(t, env.processor.ProcessTick(context.Background()))

	reminders := env.notifications.byType(domain.NotificationTypeReminder)
	require.Len(t, reminders, 1, "only the task inside the look-ahead window")
	assert.Equal(t, task.OwnerID, reminders[0].UserID)

	// A second tick inside the de-duplication window stays quiet.
	require.NoError(t, env.processor.ProcessTick(context.Background()))
	assert.Len(t, env.notifications.byType(domain.NotificationTypeReminder), 1)
}

func TestProcessTick_FlagsOverdueTasksOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	task := env.addPlainTask(t, "Pay invoice", env.now.Add(-2*time.Hour))

	require.NoError(t, env.processor.ProcessTick(context.Background()))

	overdue := env.notifications.byType(domain.NotificationTypeOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, task.OwnerID, overdue[0].UserID)
	require.NotNil(t, overdue[0].RelatedTaskID)
	assert.Equal(t, task.ID, *overdue[0].RelatedTaskID)

	require.NoError(t, env.processor.ProcessTick(context.Background()))
	assert.Len(t, env.notifications.byType(domain.NotificationTypeOverdue), 1)
}

func TestProcessTick_OverdueNotificationRepeatsAfterDedupWindow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	task := env.addPlainTask(t, "Pay invoice", env.now.Add(-2*time.Hour))
	firstTick := env.now

	require.NoError(t, env.processor.ProcessTick(context.Background()))
	require.Len(t, env.notifications.byType(domain.NotificationTypeOverdue), 1)

	// Age the stored notification to the tick that produced it, then move
	// the clock past the dedup window. The task is still open and overdue,
	// so a fresh notification is allowed.
	env.notifications.backdate(task.ID, firstTick)
	env.now = firstTick.Add(25 * time.Hour)

	require.NoError(t, env.processor.ProcessTick(context.Background()))
	assert.Len(t, env.notifications.byType(domain.NotificationTypeOverdue), 2)
}

func TestProcessTick_IgnoresDoneTasks(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	task := env.addPlainTask(t, "Already finished", env.now.Add(-time.Hour))
	require.NoError(t, task.UpdateStatus(domain.TaskStatusDone))

	require.NoError(t, env.processor.ProcessTick(context.Background()))
	assert.Empty(t, env.notifications.all())
}

func TestRetryFailedNotifications_SucceedsAndRemoves(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	taskID := uuid.New()
	params := domain.NotificationParams{
		UserID:        uuid.New(),
		Type:          domain.NotificationTypeReminder,
		Title:         "Task due soon",
		Message:       "reminder",
		RelatedTaskID: &taskID,
	}
	payload, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, env.queue.Push(context.Background(), &store.RetryEntry{
		ID:       uuid.New(),
		Payload:  payload,
		FailedAt: env.now.Add(-time.Minute),
	}))

	env.processor.RetryFailedNotifications(context.Background())

	length, err := env.queue.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, length)

	all := env.notifications.all()
	require.Len(t, all, 1)
	assert.Equal(t, params.UserID, all[0].UserID)
}

func TestRetryFailedNotifications_IncrementsCountOnFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.notifications.failNext(-1, errors.New("still down"))

	params := domain.NotificationParams{
		UserID:  uuid.New(),
		Type:    domain.NotificationTypeReminder,
		Title:   "Task due soon",
		Message: "reminder",
	}
	payload, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, env.queue.Push(context.Background(), &store.RetryEntry{
		ID:       uuid.New(),
		Payload:  payload,
		FailedAt: env.now.Add(-time.Minute),
	}))

	env.processor.RetryFailedNotifications(context.Background())

	entries, err := env.queue.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)
	require.NotNil(t, entries[0].LastRetryAt)
	assert.JSONEq(t, string(payload), string(entries[0].Payload))
}

func TestRetryFailedNotifications_DropsAtRetryCeiling(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.notifications.failNext(-1, errors.New("still down"))

	payload, err := json.Marshal(domain.NotificationParams{
		UserID:  uuid.New(),
		Type:    domain.NotificationTypeReminder,
		Title:   "Task due soon",
		Message: "reminder",
	})
	require.NoError(t, err)
	require.NoError(t, env.queue.Push(context.Background(), &store.RetryEntry{
		ID:         uuid.New(),
		Payload:    payload,
		RetryCount: 4,
		FailedAt:   env.now.Add(-time.Hour),
	}))

	env.processor.RetryFailedNotifications(context.Background())

	length, err := env.queue.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, length, "fifth failure drops the entry")
	assert.Empty(t, env.notifications.all())
}

func TestRetryFailedNotifications_DropsMalformedPayload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, env.queue.Push(context.Background(), &store.RetryEntry{
		ID:       uuid.New(),
		Payload:  json.RawMessage(`{"user_id": 42`),
		FailedAt: env.now,
	}))

	env.processor.RetryFailedNotifications(context.Background())

	length, err := env.queue.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, length)
}

func TestProcessTick_QueuesNotificationWhenCreationFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addPlainTask(t, "Submit report", env.now.Add(30*time.Minute))
	env.notifications.failNext(1, errors.New("write timeout"))

	require.NoError(t, env.processor.ProcessTick(context.Background()))

	// The tick's own retry phase runs after the reminder phase, so the
	// queued entry is already re-attempted and delivered.
	reminders := env.notifications.byType(domain.NotificationTypeReminder)
	require.Len(t, reminders, 1)
	length, err := env.queue.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, length)
}
