package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"lantern-hq/lantern/pkg/audit"
	"lantern-hq/lantern/pkg/config"
	"lantern-hq/lantern/pkg/expiry"
	"lantern-hq/lantern/pkg/flags/cache"
	"lantern-hq/lantern/pkg/flags/evaluator"
	"lantern-hq/lantern/pkg/flags/management"
	"lantern-hq/lantern/pkg/flags/store"
	"lantern-hq/lantern/pkg/server"
	"lantern-hq/lantern/pkg/telemetry/logging"
	"lantern-hq/lantern/pkg/telemetry/metrics"
)

var (
	runListenAddr string
	runLogLevel   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Lantern server",
	Long: `Run starts the flag evaluation and management API server with the
configured store, cache, audit pipeline, and expiry sweeper. The
configuration file is watched for changes; the log level is applied live.`,
	RunE: runServer,
}

func init() {
	runCmd.Flags().StringVar(&runListenAddr, "listen", "", "override the server listen address")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "override the log level")
	rootCmd.AddCommand(runCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Command-line flags win over file and environment.
	if runListenAddr != "" {
		cfg.Server.ListenAddress = runListenAddr
	}
	if runLogLevel != "" {
		cfg.Telemetry.Logging.Level = runLogLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger.Logger)

	logger.Info("starting lantern",
		"version", Version,
		"environment", cfg.Evaluator.Environment,
		"store_backend", string(cfg.Store.Backend),
	)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(metrics.Config{
			Namespace: cfg.Telemetry.Metrics.Namespace,
		}, nil)
	}

	flagStore, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer flagStore.Close()

	var decisionCache *cache.Cache
	if cfg.Cache.Enabled {
		decisionCache = cache.NewWithConfig(cache.Config{
			TTL:             cfg.Cache.TTL,
			CleanupInterval: cfg.Cache.CleanupInterval,
		})
		defer decisionCache.Close()
	}

	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		sink, err := buildAuditSink(cfg)
		if err != nil {
			return err
		}
		recorder = audit.NewRecorder(sink, audit.RecorderConfig{
			BufferSize: cfg.Audit.BufferSize,
		}, logger.Logger)
		defer recorder.Close()
	}

	eval, err := evaluator.New(evaluator.Config{
		Environment: cfg.Evaluator.Environment,
		EvalTimeout: cfg.Evaluator.EvalTimeout,
	}, flagStore, decisionCache, logger.Logger, collector)
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}

	mgmt, err := management.NewService(flagStore, cfg.Evaluator.Environment, recorder, eval, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create management service: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sweeper := expiry.NewSweeper(mgmt, expiry.Config{
		Schedule:    cfg.Expiry.Schedule,
		AutoDisable: cfg.Expiry.AutoDisable,
	}, logger.Logger)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start expiry sweeper: %w", err)
	}
	defer sweeper.Stop()

	watcher, err := config.NewWatcher(cfgFile, 0, logger.Logger)
	if err != nil {
		logger.Warn("config watcher unavailable, live reload disabled", "error", err)
	} else {
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) {
				if err := logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
					logger.Error("failed to apply reloaded log level", "error", err)
					return
				}
				logger.Info("log level applied", "level", next.Telemetry.Logging.Level)
			})
			if err != nil {
				logger.Error("config watcher exited", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	srv := server.NewServer(&cfg.Server, eval, mgmt, collector, logger.Logger)
	return srv.Start(ctx)
}

// buildStore constructs the configured flag store backend.
func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		st, err := store.NewSQLiteStore(cfg.Store.Path, cfg.Evaluator.Environment)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite flag store: %w", err)
		}
		return st, nil
	default:
		return store.NewMemoryStore(cfg.Evaluator.Environment), nil
	}
}

// buildAuditSink constructs the configured audit sink backend.
func buildAuditSink(cfg *config.Config) (audit.Sink, error) {
	switch cfg.Audit.Backend {
	case config.AuditBackendSQLite:
		sink, err := audit.NewSQLiteSink(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite audit sink: %w", err)
		}
		return sink, nil
	default:
		return audit.NewMemorySink(), nil
	}
}
