package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file, applies LANTERN_* environment
// variable overrides, and validates the result. An empty path skips the
// file and uses defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Variables use
// the format LANTERN_SECTION_FIELD and always win over the file.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("LANTERN_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("LANTERN_STORE_BACKEND"); val != "" {
		cfg.Store.Backend = StoreBackend(val)
	}
	if val := os.Getenv("LANTERN_STORE_PATH"); val != "" {
		cfg.Store.Path = val
	}
	if val := os.Getenv("LANTERN_CACHE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if val := os.Getenv("LANTERN_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if val := os.Getenv("LANTERN_EVALUATOR_ENVIRONMENT"); val != "" {
		cfg.Evaluator.Environment = val
	}
	if val := os.Getenv("LANTERN_EVALUATOR_EVAL_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Evaluator.EvalTimeout = d
		}
	}
	if val := os.Getenv("LANTERN_AUDIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Enabled = b
		}
	}
	if val := os.Getenv("LANTERN_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = AuditBackend(val)
	}
	if val := os.Getenv("LANTERN_AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}
	if val := os.Getenv("LANTERN_EXPIRY_SCHEDULE"); val != "" {
		cfg.Expiry.Schedule = val
	}
	if val := os.Getenv("LANTERN_EXPIRY_AUTO_DISABLE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Expiry.AutoDisable = b
		}
	}
	if val := os.Getenv("LANTERN_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("LANTERN_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("LANTERN_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
