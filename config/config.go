// Package config loads the process-wide configuration surface (spec.md
// §6.4) from the environment, following the teacher's config.Config shape:
// github.com/caarlos0/env/v11 for parsing, github.com/go-playground/
// validator/v10 for validation, a SlogLevel() helper for the logging
// ambient stack.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is read once at startup into an immutable value threaded through
// every component (spec.md §9 "Global mutable state" — runtime-mutable
// settings such as pauses live in the database instead).
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// Queues is the specifier string parsed by internal/supervisor into
	// one Pool per queue-name group (spec.md §6.4 `queues`):
	// comma-separated "name[:concurrency]" groups, semicolon-separated
	// pools, "*" for all queues, "+"/"-" ordering/exclusion prefixes.
	Queues string `env:"QUEUES" envDefault:"*"`

	MaxProcesses int `env:"MAX_PROCESSES" envDefault:"5" validate:"min=1,max=200"`
	PollIntervalSec int `env:"POLL_INTERVAL_SEC" envDefault:"1" validate:"min=1,max=60"`

	EnableListenNotify bool `env:"ENABLE_LISTEN_NOTIFY" envDefault:"true"`
	EnableCron         bool `env:"ENABLE_CRON" envDefault:"true"`

	CleanupIntervalSec             int `env:"CLEANUP_INTERVAL_SEC" envDefault:"300" validate:"min=1"`
	CleanupPreservedJobsBeforeSec  int `env:"CLEANUP_PRESERVED_JOBS_BEFORE_SECONDS_AGO" envDefault:"1209600" validate:"min=1"`
	LifelineIntervalSec            int `env:"LIFELINE_INTERVAL_SEC" envDefault:"60" validate:"min=1"`
	LifelineStaleAfterSec          int `env:"LIFELINE_STALE_AFTER_SEC" envDefault:"3600" validate:"min=1"`

	ShutdownTimeoutSec int `env:"SHUTDOWN_TIMEOUT_SEC" envDefault:"25" validate:"min=1,max=300"`
	MaxAttempts        int `env:"MAX_ATTEMPTS" envDefault:"5" validate:"min=1,max=1000"`
	DefaultTimeoutSec  int `env:"DEFAULT_JOB_TIMEOUT_SEC" envDefault:"1800" validate:"min=1"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// JWTSecret signs/verifies operator-API bearer tokens
	// (internal/transport/http/middleware), generalized from the teacher's
	// per-user auth to a single operator role.
	JWTSecret string `env:"JWT_SECRET" validate:"required_if=Env production,required_if=Env staging"`

	// Discard-alert settings, repurposing the teacher's Resend email stack
	// (internal/alert).
	ResendAPIKey string `env:"RESEND_API_KEY"`
	ResendFrom   string `env:"RESEND_FROM"`
	AlertToEmail string `env:"ALERT_TO_EMAIL"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
