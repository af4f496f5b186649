package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lantern-hq/lantern/pkg/flags"
	"lantern-hq/lantern/pkg/flags/cache"
	"lantern-hq/lantern/pkg/flags/rollout"
	"lantern-hq/lantern/pkg/flags/store"
	"lantern-hq/lantern/pkg/telemetry/metrics"
)

// DefaultEvalTimeout bounds a single evaluation, including all store I/O.
// Expiry routes through the fail-closed path like any other failure.
const DefaultEvalTimeout = 2 * time.Second

// Sources for the evaluations_total metric. The caller-facing envelope
// collapses kill_switch and fallback into "database" since both were
// computed, not cached.
const (
	sourceCache      = "cache"
	sourceDatabase   = "database"
	sourceKillSwitch = "kill_switch"
	sourceFallback   = "fallback"
)

// ConfigurationError signals that an evaluation context disagrees with the
// evaluator's wiring. It is the only error IsEnabled ever returns: it marks
// a deployment or caller defect that must surface rather than be absorbed
// into a fail-closed false.
type ConfigurationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Config configures an Evaluator.
type Config struct {
	// Environment is the single environment this evaluator serves.
	// Required.
	Environment string

	// EvalTimeout is the per-call deadline covering all store I/O.
	// Default: 2 seconds.
	EvalTimeout time.Duration
}

// Evaluator decides whether a feature is enabled for a tenant. It is the
// only stateful, environment-bound component of the evaluation engine; its
// collaborators are injected so the store can be swapped (durable backend
// vs. in-memory double) without touching evaluation logic.
//
// Evaluator is safe for concurrent use: each call is an independent read
// path with no cross-call locking.
type Evaluator struct {
	environment string
	evalTimeout time.Duration
	store       store.Store
	cache       *cache.Cache
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// New creates an evaluator bound to cfg.Environment. The cache and the
// metrics collector may be nil, disabling caching and instrumentation
// respectively; the store is required.
func New(cfg Config, st store.Store, c *cache.Cache, logger *slog.Logger, collector *metrics.Collector) (*Evaluator, error) {
	if cfg.Environment == "" {
		return nil, fmt.Errorf("evaluator requires an environment")
	}
	if st == nil {
		return nil, fmt.Errorf("evaluator requires a store")
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = DefaultEvalTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Evaluator{
		environment: cfg.Environment,
		evalTimeout: cfg.EvalTimeout,
		store:       st,
		cache:       c,
		logger:      logger.With("component", "flags.evaluator", "environment", cfg.Environment),
		metrics:     collector,
	}, nil
}

// Environment returns the environment this evaluator is bound to.
func (e *Evaluator) Environment() string {
	return e.environment
}

// IsEnabled decides whether flagKey is enabled for the context. A nil
// rolloutCfg evaluates the flag directly; a non-nil one additionally gates
// the decision through the staged-rollout policy.
//
// The returned error is non-nil only for *ConfigurationError. Every other
// failure mode resolves to false.
func (e *Evaluator) IsEnabled(ctx context.Context, ec flags.EvaluationContext, flagKey string, rolloutCfg *flags.RolloutConfig) (bool, error) {
	enabled, _, err := e.evaluate(ctx, ec, flagKey, rolloutCfg)
	return enabled, err
}

// Evaluate is IsEnabled plus the result envelope consumed by API callers.
func (e *Evaluator) Evaluate(ctx context.Context, ec flags.EvaluationContext, flagKey string, rolloutCfg *flags.RolloutConfig) (*flags.Evaluation, error) {
	enabled, source, err := e.evaluate(ctx, ec, flagKey, rolloutCfg)
	if err != nil {
		return nil, err
	}

	envelopeSource := flags.SourceDatabase
	if source == sourceCache {
		envelopeSource = flags.SourceCache
	}

	var ttl int
	if e.cache != nil {
		ttl = int(e.cache.TTL().Seconds())
	}

	return &flags.Evaluation{
		Enabled:     enabled,
		FlagKey:     flagKey,
		TenantID:    ec.TenantID,
		EvaluatedAt: time.Now().UTC(),
		Source:      envelopeSource,
		TTL:         ttl,
	}, nil
}

// InvalidateCache removes the cached decision for (tenantID, flagKey).
func (e *Evaluator) InvalidateCache(tenantID, flagKey string) {
	if e.cache == nil {
		return
	}
	e.cache.Invalidate(tenantID, flagKey)
	if e.metrics != nil {
		e.metrics.SetCacheEntries(e.cache.Len())
	}
}

// InvalidateAllCache clears every cached decision.
func (e *Evaluator) InvalidateAllCache() {
	if e.cache == nil {
		return
	}
	e.cache.InvalidateAll()
	if e.metrics != nil {
		e.metrics.SetCacheEntries(0)
	}
}

// evaluate runs the precedence chain and reports the decision together with
// its source.
func (e *Evaluator) evaluate(ctx context.Context, ec flags.EvaluationContext, flagKey string, rolloutCfg *flags.RolloutConfig) (enabled bool, source string, err error) {
	started := time.Now()
	defer func() {
		if err == nil && e.metrics != nil {
			e.metrics.RecordEvaluation(enabled, source, time.Since(started))
		}
	}()

	// Step 1: environment and context checks. These surface as errors, not
	// fallback values: they indicate a wiring bug on the caller's side.
	if ec.TenantID == "" {
		return false, "", &ConfigurationError{Reason: "evaluation context has no tenant ID"}
	}
	if flagKey == "" {
		return false, "", &ConfigurationError{Reason: "flag key is empty"}
	}
	if ec.Environment != "" && ec.Environment != e.environment {
		return false, "", &ConfigurationError{
			Reason: fmt.Sprintf("context environment %q does not match evaluator environment %q",
				ec.Environment, e.environment),
		}
	}

	// Every store read below shares one deadline so a slow backend cannot
	// stall the caller; expiry fails closed like any other store error.
	ctx, cancel := context.WithTimeout(ctx, e.evalTimeout)
	defer cancel()

	// Step 2: kill-switches, global then flag-scoped. The two fetches have
	// no data dependency, so they are issued concurrently. Results are
	// never cached: an emergency disable must bite on the next call.
	globalKS, flagKS, ksErr := e.fetchKillSwitches(ctx, flagKey)
	if ksErr != nil {
		return e.failClosed(ec, flagKey, "GetKillSwitch", ksErr), sourceFallback, nil
	}
	if globalKS != nil && globalKS.Enabled {
		e.recordKillSwitch(ec, flagKey, globalKS)
		return false, sourceKillSwitch, nil
	}
	if flagKS != nil && flagKS.Enabled {
		e.recordKillSwitch(ec, flagKey, flagKS)
		return false, sourceKillSwitch, nil
	}

	// Step 3: cache, only for plain evaluations. A rollout decision depends
	// on the full context and cannot be keyed by (tenant, flag) alone.
	if rolloutCfg == nil && e.cache != nil {
		if value, ok := e.cache.Get(ec.TenantID, flagKey); ok {
			if e.metrics != nil {
				e.metrics.RecordCacheHit()
			}
			return value, sourceCache, nil
		}
		if e.metrics != nil {
			e.metrics.RecordCacheMiss()
		}
	}

	// Step 4: tenant override.
	override, err := e.store.GetTenantOverride(ctx, ec.TenantID, flagKey)
	switch {
	case err == nil:
		if rolloutCfg == nil {
			e.cacheSet(ec.TenantID, flagKey, override.Enabled)
			return override.Enabled, sourceDatabase, nil
		}
		if !override.Enabled {
			// An override of false vetoes the rollout outright.
			return false, sourceDatabase, nil
		}
		// An override of true gates: the rollout decides.
		return e.evaluateRollout(ec, flagKey, *rolloutCfg), sourceDatabase, nil
	case errors.Is(err, store.ErrNotFound):
		// No override; fall through to the flag default.
	default:
		return e.failClosed(ec, flagKey, "GetTenantOverride", err), sourceFallback, nil
	}

	// Step 5: flag default.
	flag, err := e.store.GetFlag(ctx, flagKey)
	if err != nil {
		return e.failClosed(ec, flagKey, "GetFlag", err), sourceFallback, nil
	}

	if rolloutCfg == nil {
		e.cacheSet(ec.TenantID, flagKey, flag.DefaultEnabled)
		return flag.DefaultEnabled, sourceDatabase, nil
	}
	if !flag.DefaultEnabled {
		// Rollout can only promote an enabled path, never invent
		// enablement from a disabled default.
		return false, sourceDatabase, nil
	}
	return e.evaluateRollout(ec, flagKey, *rolloutCfg), sourceDatabase, nil
}

// fetchKillSwitches issues the global and flag-scoped lookups concurrently.
// A not-found result means no switch exists and is not an error.
func (e *Evaluator) fetchKillSwitches(ctx context.Context, flagKey string) (global, scoped *flags.KillSwitch, err error) {
	type result struct {
		ks  *flags.KillSwitch
		err error
	}

	globalCh := make(chan result, 1)
	go func() {
		ks, err := e.store.GetKillSwitch(ctx, "")
		globalCh <- result{ks: ks, err: err}
	}()

	scoped, scopedErr := e.store.GetKillSwitch(ctx, flagKey)
	globalRes := <-globalCh

	if globalRes.err != nil && !errors.Is(globalRes.err, store.ErrNotFound) {
		return nil, nil, globalRes.err
	}
	if scopedErr != nil && !errors.Is(scopedErr, store.ErrNotFound) {
		return nil, nil, scopedErr
	}

	if globalRes.err == nil {
		global = globalRes.ks
	}
	if scopedErr != nil {
		scoped = nil
	}
	return global, scoped, nil
}

// evaluateRollout delegates to the rollout engine and records the rejecting
// gate, if any.
func (e *Evaluator) evaluateRollout(ec flags.EvaluationContext, flagKey string, cfg flags.RolloutConfig) bool {
	if e.metrics == nil {
		return rollout.Evaluate(ec, flagKey, cfg)
	}
	eligible, gate := rollout.Decide(ec, flagKey, cfg)
	if !eligible {
		e.metrics.RecordRolloutRejection(string(gate))
	}
	return eligible
}

// cacheSet stores a store-derived decision. Failure-derived values never
// reach this point.
func (e *Evaluator) cacheSet(tenantID, flagKey string, value bool) {
	if e.cache == nil {
		return
	}
	e.cache.Set(tenantID, flagKey, value)
	if e.metrics != nil {
		e.metrics.SetCacheEntries(e.cache.Len())
	}
}

// failClosed logs a structured record for an absorbed failure and returns
// the fallback value false. The error never reaches the caller and the
// fallback is never cached.
func (e *Evaluator) failClosed(ec flags.EvaluationContext, flagKey, operation string, err error) bool {
	class := store.Classify(err)
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		class = storeErr.Class
	}

	e.logger.Error("flag evaluation failed, falling back to disabled",
		"operation", operation,
		"tenant_id", ec.TenantID,
		"flag_key", flagKey,
		"class", string(class),
		"retryable", class.Retryable(),
		"error", err,
	)
	if e.metrics != nil {
		e.metrics.RecordStoreError(operation, string(class))
	}
	return false
}

func (e *Evaluator) recordKillSwitch(ec flags.EvaluationContext, flagKey string, ks *flags.KillSwitch) {
	e.logger.Debug("evaluation short-circuited by kill-switch",
		"scope", ks.Scope(),
		"tenant_id", ec.TenantID,
		"flag_key", flagKey,
		"reason", ks.Reason,
	)
	if e.metrics != nil {
		e.metrics.RecordKillSwitch(ks.Scope())
	}
}
