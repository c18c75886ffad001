package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/store"
)

// In-memory store fakes. They hold entities in maps guarded by a mutex so
// the concurrent reminder and overdue phases can hit them safely, and they
// expose fail* hooks to force errors on specific operations.

type fakeTaskStore struct {
	mu           sync.Mutex
	tasks        map[uuid.UUID]*domain.Task
	failCreate   error
	createdOrder []uuid.UUID
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *fakeTaskStore) CreateTask(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	s.tasks[task.ID] = task
	s.createdOrder = append(s.createdOrder, task.ID)
	return nil
}

func (s *fakeTaskStore) GetTask(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) UpdateTask(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) ListDueSoon(_ context.Context, now time.Time, window time.Duration) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, task := range s.tasks {
		if task.IsRecurring || task.Status == domain.TaskStatusDone || task.DueDate == nil {
			continue
		}
		if !task.DueDate.Before(now) && task.DueDate.Before(now.Add(window)) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) ListOverdue(_ context.Context, now time.Time) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, task := range s.tasks {
		if task.IsRecurring || task.Status == domain.TaskStatusDone || task.DueDate == nil {
			continue
		}
		if task.DueDate.Before(now) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) CountByStatus(_ context.Context) (map[domain.TaskStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.TaskStatus]int)
	for _, task := range s.tasks {
		counts[task.Status]++
	}
	return counts, nil
}

func (s *fakeTaskStore) created() []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Task, 0, len(s.createdOrder))
	for _, id := range s.createdOrder {
		out = append(out, s.tasks[id])
	}
	return out
}

type fakePatternStore struct {
	mu       sync.Mutex
	patterns map[uuid.UUID]*domain.RecurringPattern
}

func newFakePatternStore() *fakePatternStore {
	return &fakePatternStore{patterns: make(map[uuid.UUID]*domain.RecurringPattern)}
}

func (s *fakePatternStore) CreatePattern(_ context.Context, pattern *domain.RecurringPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.patterns {
		if existing.TaskID == pattern.TaskID && existing.IsActive {
			return store.ErrActivePatternExists
		}
	}
	s.patterns[pattern.ID] = pattern
	return nil
}

func (s *fakePatternStore) GetPatternByTask(_ context.Context, taskID uuid.UUID) (*domain.RecurringPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pattern := range s.patterns {
		if pattern.TaskID == taskID {
			return pattern, nil
		}
	}
	return nil, store.ErrPatternNotFound
}

func (s *fakePatternStore) ListDue(_ context.Context, now time.Time) ([]*domain.RecurringPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.RecurringPattern
	for _, pattern := range s.patterns {
		if pattern.IsActive && !pattern.NextDue.After(now) {
			out = append(out, pattern)
		}
	}
	return out, nil
}

func (s *fakePatternStore) UpdatePattern(_ context.Context, pattern *domain.RecurringPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[pattern.ID]; !ok {
		return store.ErrPatternNotFound
	}
	s.patterns[pattern.ID] = pattern
	return nil
}

func (s *fakePatternStore) CountByActive(_ context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active, inactive int
	for _, pattern := range s.patterns {
		if pattern.IsActive {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive, nil
}

type fakeNotificationStore struct {
	mu            sync.Mutex
	notifications []*domain.Notification
	failCreate    error
	failuresLeft  int
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{}
}

// failNext makes the next n CreateNotification calls fail with err.
func (s *fakeNotificationStore) failNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = err
	s.failuresLeft = n
}

func (s *fakeNotificationStore) CreateNotification(_ context.Context, notification *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failuresLeft != 0 {
		if s.failuresLeft > 0 {
			s.failuresLeft--
		}
		return s.failCreate
	}
	s.notifications = append(s.notifications, notification)
	return nil
}

func (s *fakeNotificationStore) ExistsRecent(_ context.Context, taskID uuid.UUID, nType domain.NotificationType, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.RelatedTaskID != nil && *n.RelatedTaskID == taskID && n.Type == nType && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// backdate rewrites the stored creation time for a task's notifications,
// standing in for rows that have aged in the real table.
func (s *fakeNotificationStore) backdate(taskID uuid.UUID, to time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.RelatedTaskID != nil && *n.RelatedTaskID == taskID {
			n.CreatedAt = to
		}
	}
}

func (s *fakeNotificationStore) CountAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications), nil
}

func (s *fakeNotificationStore) all() []*domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Notification(nil), s.notifications...)
}

func (s *fakeNotificationStore) byType(nType domain.NotificationType) []*domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.Type == nType {
			out = append(out, n)
		}
	}
	return out
}

type fakeRetryQueue struct {
	mu      sync.Mutex
	entries []*store.RetryEntry
}

func newFakeRetryQueue() *fakeRetryQueue {
	return &fakeRetryQueue{}
}

func (q *fakeRetryQueue) Push(_ context.Context, entry *store.RetryEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	return nil
}

func (q *fakeRetryQueue) List(_ context.Context) ([]*store.RetryEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*store.RetryEntry(nil), q.entries...), nil
}

func (q *fakeRetryQueue) Remove(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, entry := range q.entries {
		if entry.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return store.ErrQueueEntryNotFound
}

func (q *fakeRetryQueue) Length(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

type fakePinger struct {
	err error
}

func (p *fakePinger) PingContext(context.Context) error {
	return p.err
}
