package biometric

import (
	"context"
	"errors"
)

var (
	ErrHardwareUnavailable = errors.New("biometric hardware unavailable")
	ErrUserCancelled       = errors.New("biometric prompt cancelled by user")
)

// Oracle is the platform biometric prompt. Authenticate must complete or
// fail within bounded time; callers pass a context to enforce that.
type Oracle interface {
	Authenticate(ctx context.Context, prompt string) (bool, error)
}

// OracleFunc adapts a function to the Oracle interface. Test hook.
type OracleFunc func(ctx context.Context, prompt string) (bool, error)

func (f OracleFunc) Authenticate(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}
