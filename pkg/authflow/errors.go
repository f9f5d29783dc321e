package authflow

import "errors"

var (
	// ErrAuthenticationFailed is the generic step-failure error. It covers
	// wrong credentials and storage/crypto failures alike so callers cannot
	// build an oracle out of the difference.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrLockedOut means the shared failure counter is exhausted; only the
	// destructive reset (or a process restart, depending on policy) clears it.
	ErrLockedOut = errors.New("too many failed attempts")

	ErrNoActiveAttempt = errors.New("no active authentication attempt")
	ErrUnexpectedStep  = errors.New("operation does not match the current step")
	ErrNotLockedOut    = errors.New("destructive reset is only available when locked out")
	ErrResetNotArmed   = errors.New("destructive reset must be armed first")
	ErrNotEnrolled     = errors.New("no credentials enrolled")
)
