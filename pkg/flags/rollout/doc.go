// Package rollout implements the deterministic staged-rollout policy
// evaluation. It is a pure function of the evaluation context, the flag key,
// and the rollout config: no I/O, no mutable state, no clock access beyond
// the timestamp carried in the context.
//
// Five gates apply in fixed order, each a hard AND: time window, business
// hours, region targeting, cohort targeting, and percentage bucketing.
// Failing any gate short-circuits to false.
//
// Percentage bucketing hashes "userID-flagKey" with 32-bit FNV-1a and takes
// the bucket modulo 100. FNV-1a is bit-for-bit reproducible, so a user's
// rollout membership is stable across processes, restarts, and
// implementations.
package rollout
