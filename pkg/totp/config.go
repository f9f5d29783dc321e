package totp

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
)

// Algorithm selects the HMAC hash for code generation.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "SHA1" // RFC 6238 default, what authenticator apps expect
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmSHA512 Algorithm = "SHA512"
)

func (a Algorithm) hashFunc() (func() hash.Hash, error) {
	switch a {
	case AlgorithmSHA1:
		return sha1.New, nil
	case AlgorithmSHA256:
		return sha256.New, nil
	case AlgorithmSHA512:
		return sha512.New, nil
	default:
		return nil, errors.Join(ErrUnsupportedAlgorithm, fmt.Errorf("algorithm %q", string(a)))
	}
}

const (
	DefaultDigits      = 6  // standard 6-digit codes
	DefaultPeriod      = 30 // 30-second validity window (RFC 6238 standard)
	DefaultDriftWindow = 1  // accept one period of clock drift either way

	// MinSecretLength rejects secrets too short to carry meaningful entropy.
	MinSecretLength = 16
	// DefaultSecretLength yields 160 bits of entropy, the RFC 4226 recommendation.
	DefaultSecretLength = 32
)

// Config holds the TOTP parameters. The zero value is usable: withDefaults
// fills in {Digits: 6, Period: 30, Algorithm: SHA1, DriftWindow: 1}.
type Config struct {
	Digits      int
	Period      int
	Algorithm   Algorithm
	DriftWindow int
}

func (c Config) withDefaults() Config {
	if c.Digits == 0 {
		c.Digits = DefaultDigits
	}
	if c.Period == 0 {
		c.Period = DefaultPeriod
	}
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmSHA1
	}
	if c.DriftWindow == 0 {
		c.DriftWindow = DefaultDriftWindow
	}
	return c
}

func (c Config) validate() error {
	if c.Digits < 6 || c.Digits > 10 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("digits must be 6-10, got %d", c.Digits))
	}
	if c.Period < 1 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("period must be positive, got %d", c.Period))
	}
	if c.DriftWindow < 0 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("drift window must be non-negative, got %d", c.DriftWindow))
	}
	if _, err := c.Algorithm.hashFunc(); err != nil {
		return err
	}
	return nil
}
