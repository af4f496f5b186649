package audit

import (
	"context"
	"time"
)

// Action identifies the kind of management write an event records.
type Action string

const (
	// ActionFlagCreated records a new flag.
	ActionFlagCreated Action = "flag.created"

	// ActionFlagUpdated records a partial flag update.
	ActionFlagUpdated Action = "flag.updated"

	// ActionFlagAutoDisabled records the expiry sweeper disabling a flag
	// past its expiry.
	ActionFlagAutoDisabled Action = "flag.auto_disabled"

	// ActionOverrideSet records a tenant override upsert.
	ActionOverrideSet Action = "override.set"

	// ActionOverrideRemoved records a tenant override removal.
	ActionOverrideRemoved Action = "override.removed"

	// ActionKillSwitchSet records a kill-switch activation or deactivation.
	ActionKillSwitchSet Action = "killswitch.set"
)

// Event is one audited management write.
type Event struct {
	// ID is a UUID assigned by the recorder.
	ID string `json:"id"`

	// Action is what happened.
	Action Action `json:"action"`

	// Environment is the environment the write landed in.
	Environment string `json:"environment"`

	// FlagKey and TenantID identify the item involved; TenantID is empty
	// for flag- and kill-switch-level events.
	FlagKey  string `json:"flag_key,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`

	// Actor is who made the change.
	Actor string `json:"actor"`

	// Detail carries action-specific context (the new value, the
	// kill-switch reason, the fields updated).
	Detail string `json:"detail,omitempty"`

	// CreatedAt is when the event was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Sink persists audit events. Implementations must be safe for concurrent
// use by the recorder worker and readers.
type Sink interface {
	// Append persists one event.
	Append(ctx context.Context, event *Event) error

	// List returns up to limit events in reverse chronological order.
	List(ctx context.Context, limit int) ([]*Event, error)

	// Close releases any resources held by the sink.
	Close() error
}
