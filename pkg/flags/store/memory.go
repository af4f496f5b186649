package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lantern-hq/lantern/pkg/flags"
)

// MemoryStore implements Store using in-memory maps. All data is lost when
// the process exits. It is the default backend for development and the test
// double used throughout the evaluator and management tests.
//
// MemoryStore is thread-safe and supports concurrent access using
// sync.RWMutex.
type MemoryStore struct {
	environment string

	// flags maps flag key to flag.
	flagsByKey map[string]flags.Flag

	// overrides maps composite key (tenantID:flagKey) to override.
	overrides map[string]flags.TenantOverride

	// killSwitches maps flag key to kill-switch; the empty key holds the
	// global switch.
	killSwitches map[string]flags.KillSwitch

	// mu protects all three maps.
	mu sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store bound to the given
// environment.
func NewMemoryStore(environment string) *MemoryStore {
	return &MemoryStore{
		environment:  environment,
		flagsByKey:   make(map[string]flags.Flag),
		overrides:    make(map[string]flags.TenantOverride),
		killSwitches: make(map[string]flags.KillSwitch),
	}
}

func (m *MemoryStore) overrideKey(tenantID, flagKey string) string {
	return tenantID + ":" + flagKey
}

// GetFlag returns the flag with the given key.
func (m *MemoryStore) GetFlag(ctx context.Context, flagKey string) (*flags.Flag, error) {
	if flagKey == "" {
		return nil, newError("GetFlag", m.environment, "", flagKey,
			fmt.Errorf("flag key cannot be empty: %w", ErrValidation))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, ok := m.flagsByKey[flagKey]
	if !ok {
		return nil, newError("GetFlag", m.environment, "", flagKey,
			fmt.Errorf("flag %q: %w", flagKey, ErrNotFound))
	}
	copied := flag
	return &copied, nil
}

// GetTenantOverride returns the override for (tenantID, flagKey).
func (m *MemoryStore) GetTenantOverride(ctx context.Context, tenantID, flagKey string) (*flags.TenantOverride, error) {
	if tenantID == "" || flagKey == "" {
		return nil, newError("GetTenantOverride", m.environment, tenantID, flagKey,
			fmt.Errorf("tenant ID and flag key are required: %w", ErrValidation))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ov, ok := m.overrides[m.overrideKey(tenantID, flagKey)]
	if !ok {
		return nil, newError("GetTenantOverride", m.environment, tenantID, flagKey,
			fmt.Errorf("override (%s, %s): %w", tenantID, flagKey, ErrNotFound))
	}
	copied := ov
	return &copied, nil
}

// GetKillSwitch returns the kill-switch scoped to flagKey; an empty flagKey
// selects the global switch.
func (m *MemoryStore) GetKillSwitch(ctx context.Context, flagKey string) (*flags.KillSwitch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ks, ok := m.killSwitches[flagKey]
	if !ok {
		return nil, newError("GetKillSwitch", m.environment, "", flagKey,
			fmt.Errorf("kill-switch scope %q: %w", scopeLabel(flagKey), ErrNotFound))
	}
	copied := ks
	return &copied, nil
}

// CreateFlag persists a new flag, failing if the key already exists.
func (m *MemoryStore) CreateFlag(ctx context.Context, flag *flags.Flag) error {
	if flag == nil || flag.Key == "" {
		return newError("CreateFlag", m.environment, "", "",
			fmt.Errorf("flag with a non-empty key is required: %w", ErrValidation))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.flagsByKey[flag.Key]; exists {
		return newError("CreateFlag", m.environment, "", flag.Key,
			fmt.Errorf("flag %q already exists: %w", flag.Key, ErrConditionalCheckFailed))
	}

	copied := *flag
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	m.flagsByKey[flag.Key] = copied
	return nil
}

// UpdateFlag applies a partial update to an existing flag.
func (m *MemoryStore) UpdateFlag(ctx context.Context, flagKey string, update flags.FlagUpdate) error {
	if flagKey == "" {
		return newError("UpdateFlag", m.environment, "", flagKey,
			fmt.Errorf("flag key cannot be empty: %w", ErrValidation))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	flag, ok := m.flagsByKey[flagKey]
	if !ok {
		return newError("UpdateFlag", m.environment, "", flagKey,
			fmt.Errorf("flag %q: %w", flagKey, ErrNotFound))
	}

	applyUpdate(&flag, update)
	m.flagsByKey[flagKey] = flag
	return nil
}

// SetTenantOverride upserts the override for (tenantID, flagKey).
func (m *MemoryStore) SetTenantOverride(ctx context.Context, tenantID, flagKey string, enabled bool, actor string) error {
	if tenantID == "" || flagKey == "" {
		return newError("SetTenantOverride", m.environment, tenantID, flagKey,
			fmt.Errorf("tenant ID and flag key are required: %w", ErrValidation))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.overrides[m.overrideKey(tenantID, flagKey)] = flags.TenantOverride{
		TenantID:  tenantID,
		FlagKey:   flagKey,
		Enabled:   enabled,
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: actor,
	}
	return nil
}

// DeleteTenantOverride removes the override for (tenantID, flagKey).
func (m *MemoryStore) DeleteTenantOverride(ctx context.Context, tenantID, flagKey string) error {
	if tenantID == "" || flagKey == "" {
		return newError("DeleteTenantOverride", m.environment, tenantID, flagKey,
			fmt.Errorf("tenant ID and flag key are required: %w", ErrValidation))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.overrideKey(tenantID, flagKey)
	if _, ok := m.overrides[key]; !ok {
		return newError("DeleteTenantOverride", m.environment, tenantID, flagKey,
			fmt.Errorf("override (%s, %s): %w", tenantID, flagKey, ErrNotFound))
	}
	delete(m.overrides, key)
	return nil
}

// SetKillSwitch upserts the kill-switch scoped to flagKey (empty for global).
func (m *MemoryStore) SetKillSwitch(ctx context.Context, flagKey string, enabled bool, reason, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.killSwitches[flagKey] = flags.KillSwitch{
		FlagKey:     flagKey,
		Enabled:     enabled,
		Reason:      reason,
		ActivatedAt: time.Now().UTC(),
		ActivatedBy: actor,
	}
	return nil
}

// ListFlags returns every flag in the environment.
func (m *MemoryStore) ListFlags(ctx context.Context) ([]*flags.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*flags.Flag, 0, len(m.flagsByKey))
	for _, flag := range m.flagsByKey {
		copied := flag
		out = append(out, &copied)
	}
	return out, nil
}

// BatchGetFlags returns the subset of the requested flags that exist.
func (m *MemoryStore) BatchGetFlags(ctx context.Context, flagKeys []string) (map[string]*flags.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*flags.Flag, len(flagKeys))
	for _, key := range flagKeys {
		if flag, ok := m.flagsByKey[key]; ok {
			copied := flag
			out[key] = &copied
		}
	}
	return out, nil
}

// Close releases nothing for the memory store; it exists to satisfy Store.
func (m *MemoryStore) Close() error {
	return nil
}

// applyUpdate folds a partial update into a flag.
func applyUpdate(flag *flags.Flag, update flags.FlagUpdate) {
	if update.Description != nil {
		flag.Description = *update.Description
	}
	if update.DefaultEnabled != nil {
		flag.DefaultEnabled = *update.DefaultEnabled
	}
	if update.Owner != nil {
		flag.Owner = *update.Owner
	}
	switch {
	case update.ClearExpiresAt:
		flag.ExpiresAt = nil
	case update.ExpiresAt != nil:
		expires := *update.ExpiresAt
		flag.ExpiresAt = &expires
	}
}

func scopeLabel(flagKey string) string {
	if flagKey == "" {
		return flags.KillSwitchScopeGlobal
	}
	return flagKey
}
