package config

import "time"

// Config is the root configuration structure for Lantern.
type Config struct {
	// Server contains the HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Store selects and configures the flag store backend.
	Store StoreConfig `yaml:"store"`

	// Cache configures the process-local decision cache.
	Cache CacheConfig `yaml:"cache"`

	// Evaluator binds the process to one environment and bounds
	// evaluation latency.
	Evaluator EvaluatorConfig `yaml:"evaluator"`

	// Audit configures the audit event pipeline.
	Audit AuditConfig `yaml:"audit"`

	// Expiry configures the scheduled sweep for expired flags.
	Expiry ExpiryConfig `yaml:"expiry"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8347"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreBackend names a flag store implementation.
type StoreBackend string

const (
	// StoreBackendMemory is the in-memory, non-durable store.
	StoreBackendMemory StoreBackend = "memory"

	// StoreBackendSQLite is the durable single-file SQLite store.
	StoreBackendSQLite StoreBackend = "sqlite"
)

// StoreConfig selects and configures the flag store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite". Default: "memory".
	Backend StoreBackend `yaml:"backend"`

	// Path is the SQLite database file path. Required for the sqlite
	// backend.
	Path string `yaml:"path"`
}

// CacheConfig configures the decision cache.
type CacheConfig struct {
	// Enabled turns the cache on. Default: true. Correctness is identical
	// with the cache disabled; only store load changes.
	Enabled bool `yaml:"enabled"`

	// TTL is how long cached decisions stay valid. This is the accepted
	// staleness window across a fleet of processes. Default: 30s.
	TTL time.Duration `yaml:"ttl"`

	// CleanupInterval is how often expired entries are swept. Zero
	// disables the background janitor. Default: 1m.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// EvaluatorConfig binds the evaluator to an environment.
type EvaluatorConfig struct {
	// Environment is the single environment this process serves
	// (e.g. "production", "staging"). Required.
	Environment string `yaml:"environment"`

	// EvalTimeout is the per-evaluation deadline covering all store I/O.
	// Default: 2s.
	EvalTimeout time.Duration `yaml:"eval_timeout"`
}

// AuditBackend names an audit sink implementation.
type AuditBackend string

const (
	// AuditBackendMemory keeps audit events in memory only.
	AuditBackendMemory AuditBackend = "memory"

	// AuditBackendSQLite persists audit events to a SQLite file.
	AuditBackendSQLite AuditBackend = "sqlite"
)

// AuditConfig configures the audit pipeline.
type AuditConfig struct {
	// Enabled turns audit recording on. Default: true.
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite". Default: "memory".
	Backend AuditBackend `yaml:"backend"`

	// Path is the SQLite database file path for the sqlite backend.
	Path string `yaml:"path"`

	// BufferSize is the async event buffer size. Default: 1000.
	BufferSize int `yaml:"buffer_size"`
}

// ExpiryConfig configures the expired-flag sweeper.
type ExpiryConfig struct {
	// Schedule is a standard cron expression. Empty disables sweeping.
	// Default: "0 * * * *" (hourly).
	Schedule string `yaml:"schedule"`

	// AutoDisable flips expired flags' defaults to disabled instead of
	// only reporting them. Default: false.
	AutoDisable bool `yaml:"auto_disable"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info". Reloadable at runtime via the config watcher.
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json".
	Format string `yaml:"format"`

	// AddSource includes file:line in log records. Default: false.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled mounts the /metrics endpoint. Default: true.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "lantern".
	Namespace string `yaml:"namespace"`
}
