package twofactor

import "errors"

var (
	ErrAlreadyEnrolled = errors.New("two-factor authentication is already enrolled")
	ErrNotEnrolled     = errors.New("two-factor authentication is not enrolled")
	ErrSetupFailed     = errors.New("two-factor setup failed")
	ErrWrongPassword   = errors.New("master password does not open the stored secret")
)
