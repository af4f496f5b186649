package management

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lantern-hq/lantern/pkg/audit"
	"lantern-hq/lantern/pkg/flags"
	"lantern-hq/lantern/pkg/flags/store"
)

// ErrFlagDeletionNotAllowed is returned for every flag deletion attempt.
// Flags are append/mutate-only by policy: deleting a flag that code still
// references silently flips the referencing path to its fallback, which is
// exactly the kind of surprise this service exists to prevent.
var ErrFlagDeletionNotAllowed = errors.New("flag deletion is not allowed; disable the flag instead")

// CacheInvalidator is the slice of the evaluator the write path needs:
// dropping cached decisions after a write. Nil-safe via NopInvalidator.
type CacheInvalidator interface {
	InvalidateCache(tenantID, flagKey string)
	InvalidateAllCache()
}

// NopInvalidator satisfies CacheInvalidator for wirings without a cache.
type NopInvalidator struct{}

func (NopInvalidator) InvalidateCache(tenantID, flagKey string) {}
func (NopInvalidator) InvalidateAllCache()                      {}

// Service is the management write path over a flag store.
type Service struct {
	store       store.Store
	environment string
	recorder    *audit.Recorder
	invalidator CacheInvalidator
	logger      *slog.Logger
}

// NewService creates a management service. The recorder may be nil to
// disable auditing; the invalidator may be nil when no cache is wired.
func NewService(st store.Store, environment string, recorder *audit.Recorder, invalidator CacheInvalidator, logger *slog.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("management service requires a store")
	}
	if environment == "" {
		return nil, fmt.Errorf("management service requires an environment")
	}
	if invalidator == nil {
		invalidator = NopInvalidator{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:       st,
		environment: environment,
		recorder:    recorder,
		invalidator: invalidator,
		logger:      logger.With("component", "flags.management", "environment", environment),
	}, nil
}

// CreateFlag validates and persists a new flag. Key, description, and owner
// are required; creation of an existing key fails with a
// conditional_check_failed store error.
func (s *Service) CreateFlag(ctx context.Context, flag *flags.Flag) error {
	if flag == nil {
		return fmt.Errorf("flag is required: %w", store.ErrValidation)
	}
	var missing []string
	if flag.Key == "" {
		missing = append(missing, "flag_key")
	}
	if flag.Description == "" {
		missing = append(missing, "description")
	}
	if flag.Owner == "" {
		missing = append(missing, "owner")
	}
	if len(missing) > 0 {
		return fmt.Errorf("flag creation requires %s: %w", strings.Join(missing, ", "), store.ErrValidation)
	}

	if flag.CreatedAt.IsZero() {
		flag.CreatedAt = time.Now().UTC()
	}

	if err := s.store.CreateFlag(ctx, flag); err != nil {
		return err
	}

	s.logger.Info("flag created", "flag_key", flag.Key, "owner", flag.Owner, "default_enabled", flag.DefaultEnabled)
	s.record(audit.Event{
		Action:  audit.ActionFlagCreated,
		FlagKey: flag.Key,
		Actor:   flag.Owner,
		Detail:  fmt.Sprintf("default_enabled=%t", flag.DefaultEnabled),
	})
	return nil
}

// UpdateFlag applies a partial update. Because the default value may have
// changed for every tenant without an override, the whole decision cache is
// invalidated.
func (s *Service) UpdateFlag(ctx context.Context, flagKey string, update flags.FlagUpdate, actor string) error {
	if flagKey == "" {
		return fmt.Errorf("flag key is required: %w", store.ErrValidation)
	}
	if update.Empty() {
		return fmt.Errorf("update changes nothing: %w", store.ErrValidation)
	}

	if err := s.store.UpdateFlag(ctx, flagKey, update); err != nil {
		return err
	}

	s.invalidator.InvalidateAllCache()

	s.logger.Info("flag updated", "flag_key", flagKey, "actor", actor)
	s.record(audit.Event{
		Action:  audit.ActionFlagUpdated,
		FlagKey: flagKey,
		Actor:   actor,
		Detail:  describeUpdate(update),
	})
	return nil
}

// DeleteFlag always refuses. The error is stable so API layers can map it
// to a "not allowed" response.
func (s *Service) DeleteFlag(ctx context.Context, flagKey string) error {
	s.logger.Warn("flag deletion attempted", "flag_key", flagKey)
	return ErrFlagDeletionNotAllowed
}

// SetTenantOverride upserts an override and drops the matching cached
// decision.
func (s *Service) SetTenantOverride(ctx context.Context, tenantID, flagKey string, enabled bool, actor string) error {
	if actor == "" {
		return fmt.Errorf("override changes require an actor: %w", store.ErrValidation)
	}

	if err := s.store.SetTenantOverride(ctx, tenantID, flagKey, enabled, actor); err != nil {
		return err
	}

	s.invalidator.InvalidateCache(tenantID, flagKey)

	s.logger.Info("tenant override set",
		"tenant_id", tenantID, "flag_key", flagKey, "enabled", enabled, "actor", actor)
	s.record(audit.Event{
		Action:   audit.ActionOverrideSet,
		FlagKey:  flagKey,
		TenantID: tenantID,
		Actor:    actor,
		Detail:   fmt.Sprintf("enabled=%t", enabled),
	})
	return nil
}

// RemoveTenantOverride deletes an override, returning the tenant to the
// flag default, and drops the matching cached decision.
func (s *Service) RemoveTenantOverride(ctx context.Context, tenantID, flagKey, actor string) error {
	if actor == "" {
		return fmt.Errorf("override changes require an actor: %w", store.ErrValidation)
	}

	if err := s.store.DeleteTenantOverride(ctx, tenantID, flagKey); err != nil {
		return err
	}

	s.invalidator.InvalidateCache(tenantID, flagKey)

	s.logger.Info("tenant override removed",
		"tenant_id", tenantID, "flag_key", flagKey, "actor", actor)
	s.record(audit.Event{
		Action:   audit.ActionOverrideRemoved,
		FlagKey:  flagKey,
		TenantID: tenantID,
		Actor:    actor,
	})
	return nil
}

// SetKillSwitch activates or deactivates the kill-switch scoped to flagKey
// (empty for global). Both directions require a reason and an actor: the
// audit trail for an emergency control must explain itself.
//
// Kill-switch state is never cached by the evaluator, so no cache
// invalidation is needed for the change to take effect.
func (s *Service) SetKillSwitch(ctx context.Context, flagKey string, enabled bool, reason, actor string) error {
	var missing []string
	if reason == "" {
		missing = append(missing, "reason")
	}
	if actor == "" {
		missing = append(missing, "actor")
	}
	if len(missing) > 0 {
		return fmt.Errorf("kill-switch changes require %s: %w", strings.Join(missing, ", "), store.ErrValidation)
	}

	if err := s.store.SetKillSwitch(ctx, flagKey, enabled, reason, actor); err != nil {
		return err
	}

	scope := flagKey
	if scope == "" {
		scope = flags.KillSwitchScopeGlobal
	}
	s.logger.Warn("kill-switch changed",
		"scope", scope, "enabled", enabled, "reason", reason, "actor", actor)
	s.record(audit.Event{
		Action:  audit.ActionKillSwitchSet,
		FlagKey: flagKey,
		Actor:   actor,
		Detail:  fmt.Sprintf("enabled=%t reason=%s", enabled, reason),
	})
	return nil
}

// DisableExpiredFlag flips an expired flag's default to disabled on behalf
// of the expiry sweeper. The audit event carries its own action so sweeps
// are distinguishable from operator edits.
func (s *Service) DisableExpiredFlag(ctx context.Context, flagKey string) error {
	disabled := false
	if err := s.store.UpdateFlag(ctx, flagKey, flags.FlagUpdate{DefaultEnabled: &disabled}); err != nil {
		return err
	}

	s.invalidator.InvalidateAllCache()

	s.logger.Warn("expired flag disabled", "flag_key", flagKey)
	s.record(audit.Event{
		Action:  audit.ActionFlagAutoDisabled,
		FlagKey: flagKey,
		Actor:   "expiry-sweeper",
	})
	return nil
}

// GetFlag returns one flag.
func (s *Service) GetFlag(ctx context.Context, flagKey string) (*flags.Flag, error) {
	return s.store.GetFlag(ctx, flagKey)
}

// ListFlags returns every flag in the environment.
func (s *Service) ListFlags(ctx context.Context) ([]*flags.Flag, error) {
	return s.store.ListFlags(ctx)
}

// BatchGetFlags returns the subset of the requested flags that exist.
func (s *Service) BatchGetFlags(ctx context.Context, flagKeys []string) (map[string]*flags.Flag, error) {
	return s.store.BatchGetFlags(ctx, flagKeys)
}

func (s *Service) record(event audit.Event) {
	if s.recorder == nil {
		return
	}
	event.Environment = s.environment
	s.recorder.Record(event)
}

// describeUpdate summarizes which fields an update touches, for the audit
// detail column.
func describeUpdate(update flags.FlagUpdate) string {
	var parts []string
	if update.Description != nil {
		parts = append(parts, "description")
	}
	if update.DefaultEnabled != nil {
		parts = append(parts, fmt.Sprintf("default_enabled=%t", *update.DefaultEnabled))
	}
	if update.Owner != nil {
		parts = append(parts, "owner")
	}
	if update.ExpiresAt != nil {
		parts = append(parts, "expires_at")
	}
	if update.ClearExpiresAt {
		parts = append(parts, "expires_at cleared")
	}
	return strings.Join(parts, ", ")
}
