package store

import (
	"context"

	"lantern-hq/lantern/pkg/flags"
)

// Store is the persistence contract consumed by the evaluator and the
// management service. Implementations must be safe for concurrent use and
// must return classified errors (see errors.go).
//
// All read operations return ErrNotFound-classed errors when the requested
// item does not exist; callers distinguish "absent" from "broken" with
// errors.Is(err, ErrNotFound).
type Store interface {
	// GetFlag returns the flag with the given key.
	GetFlag(ctx context.Context, flagKey string) (*flags.Flag, error)

	// GetTenantOverride returns the override for (tenantID, flagKey).
	GetTenantOverride(ctx context.Context, tenantID, flagKey string) (*flags.TenantOverride, error)

	// GetKillSwitch returns the kill-switch scoped to flagKey. An empty
	// flagKey selects the global kill-switch.
	GetKillSwitch(ctx context.Context, flagKey string) (*flags.KillSwitch, error)

	// CreateFlag persists a new flag. It fails with a
	// conditional_check_failed error if the key already exists.
	CreateFlag(ctx context.Context, flag *flags.Flag) error

	// UpdateFlag applies a partial update to an existing flag. It fails
	// with ErrNotFound if the flag does not exist. There is no version
	// token: concurrent updates are last-writer-wins.
	UpdateFlag(ctx context.Context, flagKey string, update flags.FlagUpdate) error

	// SetTenantOverride upserts the override for (tenantID, flagKey).
	SetTenantOverride(ctx context.Context, tenantID, flagKey string, enabled bool, actor string) error

	// DeleteTenantOverride removes the override for (tenantID, flagKey).
	// Removing an absent override fails with ErrNotFound.
	DeleteTenantOverride(ctx context.Context, tenantID, flagKey string) error

	// SetKillSwitch upserts the kill-switch scoped to flagKey (empty for
	// global scope).
	SetKillSwitch(ctx context.Context, flagKey string, enabled bool, reason, actor string) error

	// ListFlags returns every flag in the environment.
	ListFlags(ctx context.Context) ([]*flags.Flag, error)

	// BatchGetFlags returns the subset of the requested flags that exist,
	// keyed by flag key. Missing keys are omitted, not errors.
	BatchGetFlags(ctx context.Context, flagKeys []string) (map[string]*flags.Flag, error)

	// Close releases any resources held by the store.
	Close() error
}
