// Package cache provides the process-local, TTL-bound decision cache used by
// the evaluator to avoid repeated store round-trips for the same
// (tenant, flag) pair.
//
// The cache is a pure optimization, not a correctness mechanism: evaluation
// semantics are identical with the cache disabled. There is no cross-process
// invalidation protocol; staleness across a fleet is bounded by the TTL.
//
// A Get miss is returned both when the key was never set and when its TTL
// has elapsed. Callers cannot distinguish the two, and do not need to: both
// require a fresh store read.
package cache
