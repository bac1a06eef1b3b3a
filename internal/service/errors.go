package service

import "errors"

// Business errors surfaced by the attendance engine. Handlers map these to
// typed response codes; none of them is an infrastructure failure.
var (
	ErrClassNotFound         = errors.New("class not found")
	ErrSessionNotFound       = errors.New("session not found")
	ErrLocationNotConfigured = errors.New("class location not configured")
	ErrNotOwner              = errors.New("caller does not own this resource")
	ErrNotEnrolled           = errors.New("caller is not an active member of this class")
	ErrSessionExpired        = errors.New("attendance session has ended")
	ErrAlreadyCheckedIn      = errors.New("already checked in")
	ErrInvalidSessionToken   = errors.New("invalid session token")
	ErrSlotInvalid           = errors.New("invalid week or lesson slot")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrAccountDisabled       = errors.New("account is disabled")

	// ErrUpdateConflict is returned after the compare-and-swap retry budget
	// is exhausted; the client may simply retry the request.
	ErrUpdateConflict = errors.New("concurrent update conflict, please retry")

	// ErrReconcileRunning means another reconciliation run holds the
	// single-flight lock.
	ErrReconcileRunning = errors.New("reconciliation already in progress")
)
