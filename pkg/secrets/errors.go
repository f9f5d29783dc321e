package secrets

import "errors"

var (
	ErrEncryptionFailed    = errors.New("failed to encrypt data")
	ErrDecryptionFailed    = errors.New("failed to decrypt data")
	ErrInvalidCiphertext   = errors.New("invalid ciphertext format")
	ErrKeyDerivationFailed = errors.New("failed to derive encryption key")
	ErrInvalidKeyLength    = errors.New("invalid encryption key length")
	ErrMissingDeviceID     = errors.New("device identifier is required")
)
