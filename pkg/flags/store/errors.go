package store

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a store failure into one of a closed set of causes.
// The evaluator logs the class alongside every absorbed failure, and the
// management layer maps classes onto HTTP status codes.
type ErrorClass string

const (
	// ClassNotFound means the requested item does not exist.
	ClassNotFound ErrorClass = "not_found"

	// ClassAccessDenied means the backend rejected the caller's credentials.
	ClassAccessDenied ErrorClass = "access_denied"

	// ClassThrottled means the backend shed the request under load.
	ClassThrottled ErrorClass = "throttled"

	// ClassConditionalCheckFailed means an existence precondition was
	// violated: creating a flag that already exists, or updating one that
	// does not.
	ClassConditionalCheckFailed ErrorClass = "conditional_check_failed"

	// ClassValidation means the request itself was malformed.
	ClassValidation ErrorClass = "validation"

	// ClassUnavailable means the backing table or resource is unreachable.
	ClassUnavailable ErrorClass = "unavailable"

	// ClassUnknown is the fallback for failures that match no other class.
	ClassUnknown ErrorClass = "unknown"
)

// Sentinel errors for the classes callers branch on. Backends wrap these so
// errors.Is works across implementations.
var (
	ErrNotFound               = errors.New("item not found")
	ErrAccessDenied           = errors.New("access denied")
	ErrThrottled              = errors.New("request throttled")
	ErrConditionalCheckFailed = errors.New("conditional check failed")
	ErrValidation             = errors.New("validation failed")
	ErrUnavailable            = errors.New("store unavailable")
)

// StoreError carries a classified backend failure together with the
// operation context needed for the structured log record that precedes
// fail-closed conversion.
type StoreError struct {
	// Op is the store operation that failed (e.g. "GetFlag").
	Op string

	// TenantID and FlagKey identify the item involved; either may be empty
	// for operations that do not touch one.
	TenantID string
	FlagKey  string

	// Environment is the environment the store is bound to.
	Environment string

	// Class is the failure classification.
	Class ErrorClass

	// Retryable indicates whether retrying the operation may succeed.
	// Throttled and unavailable failures are retryable; the rest are not.
	Retryable bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed (env=%s tenant=%s flag=%s class=%s): %v",
		e.Op, e.Environment, e.TenantID, e.FlagKey, e.Class, e.Err)
}

// Unwrap returns the underlying error for error wrapping.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Classify maps an error onto its ErrorClass. It inspects the wrapped
// sentinel chain; errors matching no sentinel classify as unknown.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrAccessDenied):
		return ClassAccessDenied
	case errors.Is(err, ErrThrottled):
		return ClassThrottled
	case errors.Is(err, ErrConditionalCheckFailed):
		return ClassConditionalCheckFailed
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrUnavailable):
		return ClassUnavailable
	default:
		return ClassUnknown
	}
}

// Retryable reports whether the class represents a transient condition.
func (c ErrorClass) Retryable() bool {
	return c == ClassThrottled || c == ClassUnavailable
}

// newError wraps err in a *StoreError with its derived class.
func newError(op, environment, tenantID, flagKey string, err error) *StoreError {
	class := Classify(err)
	return &StoreError{
		Op:          op,
		TenantID:    tenantID,
		FlagKey:     flagKey,
		Environment: environment,
		Class:       class,
		Retryable:   class.Retryable(),
		Err:         err,
	}
}
