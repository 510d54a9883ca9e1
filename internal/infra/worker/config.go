// Package worker provides configuration, health, and metrics plumbing for
// the retention sweep worker.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"homeboard-sync/pkg/config"
)

// Config holds the configuration for the sweep worker.
// All fields have defaults and validation so the worker can start safely
// even with missing or partially invalid configuration.
type Config struct {
	// SweepSchedule is the cron expression for retention sweeps.
	// Format: "minute hour day month weekday"
	// Default: "15 * * * *" (hourly at :15)
	SweepSchedule string

	// IndexVerifySchedule is the cron expression for history index
	// verification and rebuild.
	// Default: "45 4 * * *" (daily at 4:45)
	IndexVerifySchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Default: "UTC"
	Timezone string

	// SweepTimeout bounds a single sweep run.
	// Default: 10 minutes
	SweepTimeout time.Duration

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535. Default: 9091
	HealthPort int
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		SweepSchedule:       "15 * * * *",
		IndexVerifySchedule: "45 4 * * *",
		Timezone:            "UTC",
		SweepTimeout:        10 * time.Minute,
		HealthPort:          9091,
	}
}

// Validate checks the configuration values. All failures are aggregated.
func (c *Config) Validate() error {
	var errs []error

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("sweep schedule: %w", err))
	}
	if _, err := parser.Parse(c.IndexVerifySchedule); err != nil {
		errs = append(errs, fmt.Errorf("index verify schedule: %w", err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sweep timeout must be positive"))
	}
	if c.HealthPort < 1024 || c.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("health port must be between 1024 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables.
// Invalid values fall back to the defaults with a warning; the function
// never fails so a typo in one variable cannot take the worker down.
//
// Environment variables:
//   - SWEEP_SCHEDULE: Cron expression (default: "15 * * * *")
//   - INDEX_VERIFY_SCHEDULE: Cron expression (default: "45 4 * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default: "UTC")
//   - SWEEP_TIMEOUT: Duration string, e.g. "10m"
//   - WORKER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
func LoadConfigFromEnv(logger *slog.Logger) *Config {
	defaults := DefaultConfig()

	cfg := Config{
		SweepSchedule:       config.GetEnvString("SWEEP_SCHEDULE", defaults.SweepSchedule),
		IndexVerifySchedule: config.GetEnvString("INDEX_VERIFY_SCHEDULE", defaults.IndexVerifySchedule),
		Timezone:            config.GetEnvString("WORKER_TIMEZONE", defaults.Timezone),
		SweepTimeout:        config.GetEnvDuration("SWEEP_TIMEOUT", defaults.SweepTimeout),
		HealthPort:          config.GetEnvInt("WORKER_HEALTH_PORT", defaults.HealthPort),
	}

	if err := cfg.Validate(); err != nil {
		logger.Warn("worker configuration invalid, falling back to defaults",
			slog.Any("error", err))
		return &defaults
	}

	return &cfg
}
