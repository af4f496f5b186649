package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for contradictions and missing required
// fields. It is called by Load and again by the watcher before a reload is
// handed to the application.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address is required")
	}

	switch cfg.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendSQLite:
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q",
			StoreBackendMemory, StoreBackendSQLite, cfg.Store.Backend)
	}

	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
	}

	if cfg.Evaluator.Environment == "" {
		return fmt.Errorf("evaluator.environment is required")
	}
	if cfg.Evaluator.EvalTimeout <= 0 {
		return fmt.Errorf("evaluator.eval_timeout must be positive")
	}

	if cfg.Audit.Enabled {
		switch cfg.Audit.Backend {
		case AuditBackendMemory:
		case AuditBackendSQLite:
			if cfg.Audit.Path == "" {
				return fmt.Errorf("audit.path is required for the sqlite backend")
			}
		default:
			return fmt.Errorf("audit.backend must be %q or %q, got %q",
				AuditBackendMemory, AuditBackendSQLite, cfg.Audit.Backend)
		}
	}

	if cfg.Expiry.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Expiry.Schedule); err != nil {
			return fmt.Errorf("expiry.schedule is not a valid cron expression: %w", err)
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level must be debug, info, warn, or error, got %q",
			cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format must be json or text, got %q",
			cfg.Telemetry.Logging.Format)
	}

	return nil
}
