package flags

import (
	"fmt"
	"time"
)

// KillSwitchScopeGlobal is the scope value for a kill-switch that applies to
// every flag in the environment. Flag-scoped kill-switches use the flag key
// as their scope.
const KillSwitchScopeGlobal = "global"

// Flag is a named, environment-scoped toggle with a default enablement state.
// The key is unique within an environment. Flags are append/mutate-only:
// deletion is disallowed by policy (see the management package).
type Flag struct {
	// Key uniquely identifies the flag within one environment.
	Key string `json:"flag_key" yaml:"flag_key"`

	// Description explains what the flag controls.
	Description string `json:"description" yaml:"description"`

	// DefaultEnabled is the enablement state used when no tenant override
	// exists for the requesting tenant.
	DefaultEnabled bool `json:"default_enabled" yaml:"default_enabled"`

	// Owner is the team or person responsible for the flag.
	Owner string `json:"owner" yaml:"owner"`

	// CreatedAt is when the flag was first created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// ExpiresAt, if set, marks when the flag is considered stale. The expiry
	// sweeper reports (and optionally disables) flags past this point.
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Expired reports whether the flag carries an expiry that has passed at now.
func (f *Flag) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && now.After(*f.ExpiresAt)
}

// FlagUpdate describes a partial update to a flag. Nil fields are left
// unchanged. ClearExpiresAt removes an existing expiry; it wins over
// ExpiresAt when both are set.
type FlagUpdate struct {
	Description    *string    `json:"description,omitempty"`
	DefaultEnabled *bool      `json:"default_enabled,omitempty"`
	Owner          *string    `json:"owner,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClearExpiresAt bool       `json:"clear_expires_at,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u FlagUpdate) Empty() bool {
	return u.Description == nil && u.DefaultEnabled == nil &&
		u.Owner == nil && u.ExpiresAt == nil && !u.ClearExpiresAt
}

// TenantOverride pins the enablement of one flag for one tenant, superseding
// the flag's default. Overrides are upserted with no existence precondition.
type TenantOverride struct {
	TenantID  string    `json:"tenant_id"`
	FlagKey   string    `json:"flag_key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// KillSwitch is the highest-precedence control: while enabled it forces its
// scope (one flag, or all flags for the global scope) disabled regardless of
// overrides, defaults, and rollout policy.
type KillSwitch struct {
	// FlagKey is the flag the switch applies to; empty means global scope.
	FlagKey string `json:"flag_key,omitempty"`

	Enabled     bool      `json:"enabled"`
	Reason      string    `json:"reason"`
	ActivatedAt time.Time `json:"activated_at"`
	ActivatedBy string    `json:"activated_by"`
}

// Scope returns "global" for a global kill-switch and the flag key otherwise.
func (k *KillSwitch) Scope() string {
	if k.FlagKey == "" {
		return KillSwitchScopeGlobal
	}
	return k.FlagKey
}

// RolloutConfig is an ephemeral, per-call policy describing staged
// enablement. It is supplied by the caller on each evaluation and never
// persisted by this service.
type RolloutConfig struct {
	// Percentage of the user population to admit, 0-100. Users are assigned
	// to stable buckets by hashing their user ID together with the flag key.
	Percentage int `json:"percentage"`

	// StartDate and EndDate bound the rollout window. Either may be nil.
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// TargetRegions restricts the rollout to contexts whose region is a
	// member. Empty means no region restriction.
	TargetRegions []string `json:"target_regions,omitempty"`

	// UserCohorts restricts the rollout to contexts whose cohort is a
	// member. Empty means no cohort restriction.
	UserCohorts []string `json:"user_cohorts,omitempty"`

	// BusinessHoursOnly restricts the rollout to weekdays 09:00-18:00 in
	// the local time of the evaluation timestamp.
	BusinessHoursOnly bool `json:"business_hours_only,omitempty"`
}

// Validate checks that the rollout percentage is within 0-100 and that the
// window, if fully specified, is ordered.
func (c RolloutConfig) Validate() error {
	if c.Percentage < 0 || c.Percentage > 100 {
		return fmt.Errorf("rollout percentage must be between 0 and 100, got %d", c.Percentage)
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return fmt.Errorf("rollout end date %s precedes start date %s", c.EndDate, c.StartDate)
	}
	return nil
}

// EvaluationContext carries the per-call inputs for a flag decision.
// TenantID is required; everything else is optional. Optional fields that
// are absent cause their corresponding rollout gates to pass trivially,
// except the user ID, which falls back to the empty string for bucketing.
type EvaluationContext struct {
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id,omitempty"`
	Environment string    `json:"environment,omitempty"`
	Region      string    `json:"region,omitempty"`
	UserCohort  string    `json:"user_cohort,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}

// Validate checks the context's required fields.
func (ec EvaluationContext) Validate() error {
	if ec.TenantID == "" {
		return fmt.Errorf("evaluation context requires a tenant ID")
	}
	return nil
}

// Source identifies where an evaluation result came from.
type Source string

const (
	// SourceCache means the decision was served from the process-local cache.
	SourceCache Source = "cache"

	// SourceDatabase means the decision was computed from store state.
	SourceDatabase Source = "database"
)

// Evaluation is the result envelope handed to callers that wrap the
// evaluator in an API layer.
type Evaluation struct {
	Enabled     bool      `json:"enabled"`
	FlagKey     string    `json:"flag_key"`
	TenantID    string    `json:"tenant_id"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	Source      Source    `json:"source"`

	// TTL is the cache staleness bound in seconds; callers may use it as a
	// client-side caching hint.
	TTL int `json:"ttl"`
}
