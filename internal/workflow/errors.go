package workflow

import "errors"

// Sentinel errors surfaced by the workflow engine. Handlers match on these
// with errors.Is and translate them to HTTP responses.
var (
	// ErrInvalidTransition means the (status, role, action) combination has
	// no entry in the transition table. Nothing was written.
	ErrInvalidTransition = errors.New("action is not allowed for the current status and role")

	// ErrMissingPayload means the action requires an annotation (a rejection
	// reason, for example) that was not supplied. Nothing was written.
	ErrMissingPayload = errors.New("action requires an annotation that was not provided")

	// ErrNotFound means the referenced application or appointment does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification means the status read before the transition
	// was stale by the time the write ran. The caller should re-read and retry.
	ErrConcurrentModification = errors.New("record was changed by another actor, please retry")

	// ErrCooldownActive means a rejected donor is re-applying before the
	// cool-down period has elapsed.
	ErrCooldownActive = errors.New("re-application cool-down period has not elapsed")

	// ErrActiveApplicationExists means the donor already has a non-terminal
	// application; at most one may be active at a time.
	ErrActiveApplicationExists = errors.New("donor already has an active application")

	// ErrPersistence wraps storage failures that are neither a missing record
	// nor a stale write. Transient; the caller may retry.
	ErrPersistence = errors.New("persistence failure")
)
