package kdf

import "errors"

var (
	ErrInvalidIterations = errors.New("iteration count must be at least 1")
	ErrInvalidLength     = errors.New("output length must be at least 1")
)
