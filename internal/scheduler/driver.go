package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Intervals carries the trigger periods for each recurring job.
type Intervals struct {
	Tick        time.Duration
	HealthCheck time.Duration
	Stats       time.Duration
	RetrySweep  time.Duration
}

// Driver owns the gocron scheduler and wires the processor and reporter
// into their recurring triggers. It is the only component that knows about
// job scheduling; the processor and reporter stay plain functions of a
// context.
type Driver struct {
	scheduler gocron.Scheduler
	processor *Processor
	reporter  *Reporter
	intervals Intervals
	logger    *slog.Logger
}

// NewDriver creates a Driver with the four recurring jobs registered but
// not yet running. The stop timeout bounds how long Stop waits for an
// in-flight tick to drain.
func NewDriver(
	processor *Processor,
	reporter *Reporter,
	intervals Intervals,
	stopTimeout time.Duration,
	logger *slog.Logger,
) (*Driver, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithStopTimeout(stopTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	d := &Driver{
		scheduler: scheduler,
		processor: processor,
		reporter:  reporter,
		intervals: intervals,
		logger:    logger.With("component", "driver"),
	}

	if err := d.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}

	return d, nil
}

func (d *Driver) registerJobs() error {
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"main_tick", d.intervals.Tick, d.runTick},
		{"health_check", d.intervals.HealthCheck, d.runHealthCheck},
		{"stats", d.intervals.Stats, d.runStats},
		{"retry_sweep", d.intervals.RetrySweep, d.runRetrySweep},
	}

	for _, job := range jobs {
		_, err := d.scheduler.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(job.run),
			gocron.WithName(job.name),
			gocron.WithTags("cadence", job.name),
		)
		if err != nil {
			return fmt.Errorf("failed to register %s job: %w", job.name, err)
		}
	}

	return nil
}

// Start begins firing the registered jobs on their intervals.
func (d *Driver) Start() {
	d.scheduler.Start()
	d.logger.Info("scheduler started",
		"tick_interval", d.intervals.Tick,
		"health_interval", d.intervals.HealthCheck,
		"stats_interval", d.intervals.Stats,
		"retry_sweep_interval", d.intervals.RetrySweep)
}

// Stop shuts the scheduler down, waiting up to the configured stop timeout
// for running jobs to finish.
func (d *Driver) Stop() error {
	d.logger.Info("scheduler stopping")
	if err := d.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown failed: %w", err)
	}
	d.logger.Info("scheduler stopped")
	return nil
}

func (d *Driver) runTick(ctx context.Context) {
	if err := d.processor.ProcessTick(ctx); err != nil {
		d.logger.Error("tick failed", "error", err)
	}
}

func (d *Driver) runHealthCheck(ctx context.Context) {
	d.reporter.HealthCheck(ctx)
}

func (d *Driver) runStats(ctx context.Context) {
	d.reporter.CollectStats(ctx)
}

func (d *Driver) runRetrySweep(ctx context.Context) {
	d.processor.RetryFailedNotifications(ctx)
}
