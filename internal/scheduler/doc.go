// Package scheduler contains the recurring-task job processor and its
// trigger plumbing. On each tick the processor materializes due recurring
// patterns into task instances, raises reminders for soon-due tasks, flags
// overdue tasks, and drains the failed-notification retry queue. Ticks are
// strictly serialized by an in-progress guard owned by the processor
// instance; the gocron-backed driver fires the processor on fixed
// intervals and handles graceful drain on shutdown.
package scheduler
