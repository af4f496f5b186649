package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lantern-hq/lantern/pkg/flags"
)

// FlagSource is the slice of the management service the sweeper needs.
type FlagSource interface {
	ListFlags(ctx context.Context) ([]*flags.Flag, error)
	DisableExpiredFlag(ctx context.Context, flagKey string) error
}

// Config configures the sweeper.
type Config struct {
	// Schedule is a standard cron expression ("0 * * * *" for hourly).
	// Empty disables the sweeper.
	Schedule string

	// AutoDisable flips expired flags' defaults to disabled. When false
	// the sweeper only reports.
	AutoDisable bool

	// SweepTimeout bounds one sweep. Default: 30 seconds.
	SweepTimeout time.Duration
}

// Sweeper runs scheduled sweeps over the flag inventory looking for flags
// past their expiry.
type Sweeper struct {
	source  FlagSource
	config  Config
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool

	// now is swappable for tests.
	now func() time.Time
}

// NewSweeper creates a sweeper over the given flag source.
func NewSweeper(source FlagSource, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		source: source,
		config: cfg,
		cron:   cron.New(),
		logger: logger.With("component", "expiry.sweeper"),
		now:    time.Now,
	}
}

// Start begins scheduled sweeping. With an empty schedule it does nothing.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("expiry sweeper started",
		"schedule", s.config.Schedule,
		"auto_disable", s.config.AutoDisable,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("expiry sweeper stopped")
	}
}

// Sweep runs one sweep immediately, outside the schedule. It returns the
// number of expired flags found.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	all, err := s.source.ListFlags(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list flags: %w", err)
	}

	now := s.now()
	expired := 0
	for _, flag := range all {
		if !flag.Expired(now) {
			continue
		}
		expired++

		s.logger.Warn("flag past expiry",
			"flag_key", flag.Key,
			"owner", flag.Owner,
			"expired_at", flag.ExpiresAt,
			"default_enabled", flag.DefaultEnabled,
		)

		if s.config.AutoDisable && flag.DefaultEnabled {
			if err := s.source.DisableExpiredFlag(ctx, flag.Key); err != nil {
				s.logger.Error("failed to disable expired flag",
					"flag_key", flag.Key,
					"error", err,
				)
			}
		}
	}
	return expired, nil
}

// runSweep executes a scheduled sweep cycle.
func (s *Sweeper) runSweep(ctx context.Context) {
	s.logger.Debug("starting scheduled expiry sweep")

	expired, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("scheduled expiry sweep failed", "error", err)
		return
	}

	if expired > 0 {
		s.logger.Info("scheduled expiry sweep completed", "expired_count", expired)
	} else {
		s.logger.Debug("scheduled expiry sweep completed, no expired flags")
	}
}
