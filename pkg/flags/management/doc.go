// Package management owns the write path for flags, tenant overrides, and
// kill-switches. It enforces the write-side policy the store itself does
// not know about:
//
//   - flag creation requires a key, description, and owner
//   - flag deletion is not a supported operation, ever; flags are
//     append/mutate-only and ErrFlagDeletionNotAllowed is returned
//   - override removal is a first-class, audited operation
//   - kill-switch activation and deactivation require a reason and an actor
//
// Every successful write emits an audit event and invalidates the affected
// decision cache entries so readers converge without waiting out the TTL.
package management
