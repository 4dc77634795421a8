// Package flow defines the error kinds shared by the client-side flows.
// Every external-call boundary resolves to a success value or one of these
// kinds, so callers can branch with errors.Is without string matching.
package flow

import "errors"

// Sentinel error kinds. Wrap them with fmt.Errorf("...: %w", ...) to add
// operation context while keeping errors.Is checks working.
var (
	// ErrValidation marks malformed local input (empty plate, PIN not
	// 4 digits). Recovered locally; the user corrects the input.
	ErrValidation = errors.New("validation failed")

	// ErrLookup marks a registry read that failed in transport or found
	// no record where one was required.
	ErrLookup = errors.New("vehicle lookup failed")

	// ErrDuplicate marks a create for a plate that already exists.
	ErrDuplicate = errors.New("plate already registered")

	// ErrPersistence marks a registry write that was not confirmed.
	// Local state must not advance past it.
	ErrPersistence = errors.New("status update not confirmed")

	// ErrNotification marks a failed owner-notification dispatch.
	// Never retried automatically.
	ErrNotification = errors.New("notification dispatch failed")

	// ErrAuthorization marks a PIN mismatch. The attempt buffer is
	// cleared; the flow stays at the PIN step for retry.
	ErrAuthorization = errors.New("incorrect PIN")

	// ErrNotFound marks a scan attempt that detected no tag.
	ErrNotFound = errors.New("no tag detected")
)
