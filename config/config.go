// Package config loads engine tuning parameters from the environment.
//
// All variables are optional and carry production-ready defaults, so a bare
// process starts with the same behavior as coordinator.DefaultConfig.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hupe1980/groupmesh/coordinator"
	"github.com/hupe1980/groupmesh/logging"
)

// Engine holds the environment-derived engine configuration.
type Engine struct {
	// LockTimeout bounds the wait for a session's exclusive section.
	LockTimeout time.Duration `env:"GROUPMESH_LOCK_TIMEOUT" envDefault:"2s"`

	// MaxAttempts bounds candidate retries per assignment.
	MaxAttempts int `env:"GROUPMESH_MAX_ATTEMPTS" envDefault:"4"`

	// RescanParallelism bounds concurrent placements per pool rescan.
	RescanParallelism int `env:"GROUPMESH_RESCAN_PARALLELISM" envDefault:"4"`

	// EventBuffer sets the per-subscriber event bus buffer.
	EventBuffer int `env:"GROUPMESH_EVENT_BUFFER" envDefault:"64"`

	// LogLevel selects the logging level: debug, info, warn or error.
	LogLevel string `env:"GROUPMESH_LOG_LEVEL" envDefault:"info"`

	// LogFormat selects the log output format: json or text.
	LogFormat string `env:"GROUPMESH_LOG_FORMAT" envDefault:"json"`
}

// FromEnv parses the engine configuration from environment variables.
func FromEnv() (Engine, error) {
	cfg, err := env.ParseAs[Engine]()
	if err != nil {
		return Engine{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}

func (e Engine) validate() error {
	if e.MaxAttempts < 1 {
		return fmt.Errorf("GROUPMESH_MAX_ATTEMPTS must be at least 1, got %d", e.MaxAttempts)
	}
	if e.RescanParallelism < 1 {
		return fmt.Errorf("GROUPMESH_RESCAN_PARALLELISM must be at least 1, got %d", e.RescanParallelism)
	}
	if e.LockTimeout < 0 {
		return fmt.Errorf("GROUPMESH_LOCK_TIMEOUT must not be negative, got %s", e.LockTimeout)
	}
	switch e.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("GROUPMESH_LOG_LEVEL must be one of debug, info, warn, error, got %q", e.LogLevel)
	}
	switch e.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("GROUPMESH_LOG_FORMAT must be json or text, got %q", e.LogFormat)
	}
	return nil
}

// Coordinator maps the environment configuration onto the coordinator's
// operational parameters.
func (e Engine) Coordinator() coordinator.Config {
	return coordinator.Config{
		LockTimeout:       e.LockTimeout,
		MaxAttempts:       e.MaxAttempts,
		RescanParallelism: e.RescanParallelism,
		EventBuffer:       e.EventBuffer,
	}
}

// Logger builds a structured logger matching the configured level and format.
func (e Engine) Logger() *logging.GroupMeshLogger {
	level := logging.LogLevelInfo
	switch e.LogLevel {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.NewSlogLogger(level, e.LogFormat, false)
}
