package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default values applied before any config file or environment variable is
// read. The scheduler windows mirror the established behavior: a one-hour
// reminder look-ahead, a 24-hour de-duplication window, five retry attempts.
var defaults = map[string]any{
	"server.port":      8080,
	"server.log_level": "info",

	// Registered empty so the env lookup during unmarshal can see
	// CADENCE_DATABASE_URL; validation rejects the empty value.
	"database.url": "",

	"scheduler.tick_interval_seconds":         60,
	"scheduler.health_check_interval_seconds": 300,
	"scheduler.stats_interval_seconds":        600,
	"scheduler.retry_sweep_interval_seconds":  300,
	"scheduler.reminder_look_ahead_minutes":   60,
	"scheduler.dedup_window_hours":            24,
	"scheduler.shutdown_drain_seconds":        30,

	"retry.max_attempts":        5,
	"retry.entry_max_age_hours": 24,
}

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the
// CADENCE_ prefix with underscores for nesting (CADENCE_DATABASE_URL) and
// take precedence over file values.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry the
		// configuration. Anything else (unreadable, malformed) is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CADENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
