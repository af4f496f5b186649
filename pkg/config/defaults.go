package config

import "time"

// DefaultConfig returns the configuration used when no file or overrides
// are supplied. Loading unmarshals the YAML file over this struct, so
// omitted keys keep these values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   "127.0.0.1:8347",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Backend: StoreBackendMemory,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             30 * time.Second,
			CleanupInterval: time.Minute,
		},
		Evaluator: EvaluatorConfig{
			Environment: "development",
			EvalTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Backend:    AuditBackendMemory,
			BufferSize: 1000,
		},
		Expiry: ExpiryConfig{
			Schedule:    "0 * * * *",
			AutoDisable: false,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "lantern",
			},
		},
	}
}
