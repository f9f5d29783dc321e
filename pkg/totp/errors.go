package totp

import "errors"

var (
	ErrInvalidSecret          = errors.New("invalid secret: must be Base32 (A-Z, 2-7)")
	ErrSecretTooShort         = errors.New("invalid secret: must be at least 16 characters")
	ErrInvalidCode            = errors.New("invalid code format")
	ErrUnsupportedAlgorithm   = errors.New("unsupported HMAC algorithm")
	ErrInvalidConfig          = errors.New("invalid TOTP configuration")
	ErrFailedToGenerateSecret = errors.New("failed to generate TOTP secret")
	ErrMissingSecret          = errors.New("missing secret")
	ErrMissingAccountName     = errors.New("missing account name")
	ErrMissingIssuer          = errors.New("missing issuer")
)
