package token

import "errors"

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrSignatureInvalid = errors.New("token signature mismatch")
	ErrTokenExpired     = errors.New("token expired")
)
