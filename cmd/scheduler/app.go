package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cadence/internal/config"
	"github.com/phrazzld/cadence/internal/events"
	"github.com/phrazzld/cadence/internal/platform/postgres"
	"github.com/phrazzld/cadence/internal/scheduler"
	"github.com/phrazzld/cadence/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore         store.TaskStore
	patternStore      store.PatternStore
	notificationStore store.NotificationStore
	retryQueueStore   store.RetryQueueStore

	// Event system
	eventEmitter *events.InMemoryEventEmitter

	// Scheduling
	notifier  *scheduler.Notifier
	processor *scheduler.Processor
	reporter  *scheduler.Reporter
	driver    *scheduler.Driver
}

// newApplication creates a new application instance with all dependencies
// initialized, from the database connection up to the job driver.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.db, err = setupDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app.taskStore = postgres.NewPostgresTaskStore(app.db, logger)
	app.patternStore = postgres.NewPostgresPatternStore(app.db, logger)
	app.notificationStore = postgres.NewPostgresNotificationStore(app.db, logger)
	app.retryQueueStore = postgres.NewPostgresRetryQueueStore(app.db, logger)

	app.notifier = scheduler.NewNotifier(app.notificationStore, app.retryQueueStore, logger)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(app.notifier)

	app.processor = scheduler.NewProcessor(
		app.taskStore,
		app.patternStore,
		app.notificationStore,
		app.retryQueueStore,
		app.eventEmitter,
		app.notifier,
		app.db,
		scheduler.Config{
			ReminderLookAhead: cfg.Scheduler.ReminderLookAhead(),
			DedupWindow:       cfg.Scheduler.DedupWindow(),
			MaxAttempts:       cfg.Retry.MaxAttempts,
			EntryMaxAge:       cfg.Retry.EntryMaxAge(),
		},
		logger,
	)

	app.reporter = scheduler.NewReporter(
		app.taskStore,
		app.patternStore,
		app.notificationStore,
		app.retryQueueStore,
		app.db,
		scheduler.Config{
			ReminderLookAhead: cfg.Scheduler.ReminderLookAhead(),
			DedupWindow:       cfg.Scheduler.DedupWindow(),
			MaxAttempts:       cfg.Retry.MaxAttempts,
			EntryMaxAge:       cfg.Retry.EntryMaxAge(),
		},
		logger,
	)

	app.driver, err = scheduler.NewDriver(
		app.processor,
		app.reporter,
		scheduler.Intervals{
			Tick:        cfg.Scheduler.TickInterval(),
			HealthCheck: cfg.Scheduler.HealthCheckInterval(),
			Stats:       cfg.Scheduler.StatsInterval(),
			RetrySweep:  cfg.Scheduler.RetrySweepInterval(),
		},
		cfg.Scheduler.ShutdownDrain(),
		logger,
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create scheduler driver: %w", err)
	}

	logger.Info("application initialized",
		"tick_interval_seconds", cfg.Scheduler.TickIntervalSeconds,
		"reminder_look_ahead_minutes", cfg.Scheduler.ReminderLookAheadMinutes,
		"retry_max_attempts", cfg.Retry.MaxAttempts)

	return app, nil
}

// cleanup releases application resources in reverse initialization order.
func (app *application) cleanup() {
	if app.driver != nil {
		if err := app.driver.Stop(); err != nil {
			app.logger.Error("failed to stop scheduler driver", "error", err)
		}
		app.driver = nil
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
		app.db = nil
	}
}
