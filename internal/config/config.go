package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Retry     RetryConfig     `mapstructure:"retry"     validate:"required"`
}

// ServerConfig contains the operational HTTP surface settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// SchedulerConfig contains the trigger intervals and detection windows of
// the job processor. The reminder look-ahead and de-duplication windows are
// configurable because the original constants carried no documented
// rationale; the defaults preserve the established behavior.
type SchedulerConfig struct {
	TickIntervalSeconds        int `mapstructure:"tick_interval_seconds"         validate:"required,gt=0"`
	HealthCheckIntervalSeconds int `mapstructure:"health_check_interval_seconds" validate:"required,gt=0"`
	StatsIntervalSeconds       int `mapstructure:"stats_interval_seconds"        validate:"required,gt=0"`
	RetrySweepIntervalSeconds  int `mapstructure:"retry_sweep_interval_seconds"  validate:"required,gt=0"`
	ReminderLookAheadMinutes   int `mapstructure:"reminder_look_ahead_minutes"   validate:"required,gt=0"`
	DedupWindowHours           int `mapstructure:"dedup_window_hours"            validate:"required,gt=0"`
	ShutdownDrainSeconds       int `mapstructure:"shutdown_drain_seconds"        validate:"required,gt=0"`
}

// RetryConfig contains the failed-notification retry policy.
type RetryConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"        validate:"required,gt=0"`
	EntryMaxAgeHours int `mapstructure:"entry_max_age_hours" validate:"required,gt=0"`
}

// TickInterval returns the main tick interval as a duration.
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// HealthCheckInterval returns the health check interval as a duration.
func (c SchedulerConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSeconds) * time.Second
}

// StatsInterval returns the stats reporting interval as a duration.
func (c SchedulerConfig) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalSeconds) * time.Second
}

// RetrySweepInterval returns the retry sweep interval as a duration.
func (c SchedulerConfig) RetrySweepInterval() time.Duration {
	return time.Duration(c.RetrySweepIntervalSeconds) * time.Second
}

// ReminderLookAhead returns the upcoming-due look-ahead window as a duration.
func (c SchedulerConfig) ReminderLookAhead() time.Duration {
	return time.Duration(c.ReminderLookAheadMinutes) * time.Minute
}

// DedupWindow returns the notification de-duplication window as a duration.
func (c SchedulerConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowHours) * time.Hour
}

// ShutdownDrain returns the bounded wait for in-flight ticks on shutdown.
func (c SchedulerConfig) ShutdownDrain() time.Duration {
	return time.Duration(c.ShutdownDrainSeconds) * time.Second
}

// EntryMaxAge returns the age past which a queued retry entry is treated as
// unrecoverable.
func (c RetryConfig) EntryMaxAge() time.Duration {
	return time.Duration(c.EntryMaxAgeHours) * time.Hour
}
