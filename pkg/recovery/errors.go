package recovery

import "errors"

var (
	ErrInvalidCount     = errors.New("recovery code count must be at least 1")
	ErrGenerationFailed = errors.New("failed to generate recovery codes")
	ErrMalformedBatch   = errors.New("malformed recovery code batch")
	ErrNoStoredCodes    = errors.New("no stored recovery codes")
	ErrAmbiguousStorage = errors.New("stored recovery codes carry both batch and legacy formats")
)
