// Package flags defines the core domain types for Lantern's feature-flag
// system: flags, per-tenant overrides, kill-switches, rollout policies, and
// the per-call evaluation context.
//
// # Overview
//
// A Flag is an environment-scoped toggle with a default enablement state.
// Three layers of control sit on top of the default:
//
//   - TenantOverride: a per-tenant, per-flag boolean that supersedes the
//     flag default for exactly one tenant.
//   - RolloutConfig: an ephemeral, per-call policy for staged enablement
//     (percentage buckets, time windows, region and cohort targeting).
//   - KillSwitch: an emergency control that forces a flag (or every flag)
//     disabled regardless of any other state.
//
// The types in this package are plain data. The precedence between them is
// enforced by the evaluator sub-package; persistence lives in the store
// sub-package.
package flags
