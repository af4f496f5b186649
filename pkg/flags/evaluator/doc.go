// Package evaluator implements the flag evaluation engine: the single entry
// point that decides whether a feature is enabled for a tenant, enforcing a
// fixed precedence between kill-switches, the decision cache, tenant
// overrides, flag defaults, and staged rollout policy.
//
// # Precedence
//
//  1. Kill-switch (global, then flag-scoped): enabled forces false. Never
//     cached, so an emergency disable takes effect immediately.
//  2. Cache: consulted only when no rollout config is supplied; rollout
//     decisions are context-sensitive per call and must not be served from
//     a cache keyed only by (tenant, flag).
//  3. Tenant override: without rollout, the override is the answer. With
//     rollout, an override of false vetoes; an override of true gates the
//     rollout result but never grants by itself.
//  4. Flag default: without rollout, the default is the answer. With
//     rollout, a default of false is final; rollout can only promote an
//     otherwise-enabled path, never invent enablement.
//
// # Failure policy
//
// The evaluator fails closed: every store failure and unexpected condition
// is logged with a structured record and absorbed into the answer false.
// A false-positive enablement can hit many tenants at once; a
// false-negative is the cheap direction. The only error that crosses the
// evaluator boundary is *ConfigurationError, raised when the caller's
// context names a different environment than the evaluator is bound to.
// That is a deployment defect, not a runtime condition, and masking it
// would hide mis-wiring.
//
// Each Evaluator is bound to one environment. Its store and cache are
// scoped to that environment structurally, so staging state can never
// leak into production decisions through key collision.
package evaluator
