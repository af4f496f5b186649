// Package store defines the persistence contract for flags, tenant
// overrides, and kill-switches, together with the classified error taxonomy
// every backend must speak.
//
// # Backends
//
// Two implementations are provided:
//
//   - MemoryStore: map-based, in-process, no persistence. The default for
//     development and the test double for the evaluator.
//   - SQLiteStore: durable single-file storage using modernc.org/sqlite in
//     WAL mode, suitable for single-instance deployments.
//
// Both are bound to exactly one environment at construction; every key they
// read or write is namespaced by that environment, so an evaluator wired to
// a staging store can never observe production state.
//
// # Error classification
//
// All backend failures are surfaced as *StoreError with a Class drawn from a
// closed set (not_found, access_denied, throttled, conditional_check_failed,
// validation, unavailable, unknown) plus a retryability hint. Callers branch
// on the sentinel errors (ErrNotFound, ErrConditionalCheckFailed, ...) via
// errors.Is rather than on backend-specific error strings.
//
// # Concurrency
//
// Writes carry no version token: two concurrent updates to the same key are
// last-writer-wins with no conflict detection. Implementations must be safe
// for concurrent use.
package store
