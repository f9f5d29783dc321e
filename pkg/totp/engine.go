package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"
)

// secretAlphabet is the Base32 alphabet (RFC 4648) used for TOTP secrets.
const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// validSecretRegex ensures Base32 format: uppercase A-Z, digits 2-7,
// optional trailing padding.
var validSecretRegex = regexp.MustCompile("^[A-Z2-7]+=*$")

// Engine generates and verifies time-based one-time passwords. Construct
// with New; the zero value is not usable.
type Engine struct {
	cfg  Config
	now  func() time.Time
	rand io.Reader
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithConfig sets the TOTP parameters. Zero-valued fields fall back to the
// RFC 6238 defaults.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

// WithClock injects the time source. Required for deterministic tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRand injects the randomness source used for secret generation.
func WithRand(r io.Reader) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// New creates an Engine with the given options. The configuration is
// validated eagerly; an invalid one panics, since it is a programming error
// rather than a runtime condition.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		now:  time.Now,
		rand: rand.Reader,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.withDefaults()
	if err := e.cfg.validate(); err != nil {
		panic(err)
	}
	return e
}

// Config returns the engine's effective configuration with defaults applied.
func (e *Engine) Config() Config {
	return e.cfg
}

// GenerateSecret produces a random Base32 secret of the given length
// (DefaultSecretLength when 0). Each symbol is picked uniformly from the
// 32-character alphabet; the result is re-validated against the Base32
// pattern before returning as a guard against any character-set bug.
func (e *Engine) GenerateSecret(length int) (string, error) {
	if length == 0 {
		length = DefaultSecretLength
	}
	if length < MinSecretLength {
		return "", errors.Join(ErrFailedToGenerateSecret, ErrSecretTooShort)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(e.rand, buf); err != nil {
		return "", errors.Join(ErrFailedToGenerateSecret, err)
	}

	secret := make([]byte, length)
	for i, b := range buf {
		// 32 divides 256, so the modulo introduces no bias.
		secret[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}

	result := string(secret)
	if !validSecretRegex.MatchString(result) {
		return "", errors.Join(ErrFailedToGenerateSecret, ErrInvalidSecret)
	}
	return result, nil
}

// ComputeCode generates the code for an explicit time step (counter value).
func (e *Engine) ComputeCode(secret string, timeStep int64) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return GenerateHOTP(e.cfg.Algorithm, key, timeStep, e.cfg.Digits)
}

// Generate returns the code for the current time window.
func (e *Engine) Generate(secret string) (string, error) {
	return e.GenerateAt(secret, e.now())
}

// GenerateAt returns the code for the window containing t.
func (e *Engine) GenerateAt(secret string, t time.Time) (string, error) {
	return e.ComputeCode(secret, t.Unix()/int64(e.cfg.Period))
}

// Result reports the outcome of a verification. MatchedStep is only
// meaningful when Valid is true.
type Result struct {
	Valid       bool
	MatchedStep int64
}

// Verify checks candidate against the codes for the current window and its
// drift neighbors.
func (e *Engine) Verify(candidate, secret string) (Result, error) {
	return e.VerifyAt(candidate, secret, e.now())
}

// VerifyAt checks candidate at an explicit time. Each window's code is
// compared in constant time; the first matching step wins. A failed crypto
// step propagates as an error and never degrades to a match.
func (e *Engine) VerifyAt(candidate, secret string, t time.Time) (Result, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return Result{}, err
	}

	candidate = strings.TrimSpace(candidate)
	if len(candidate) != e.cfg.Digits || !isDigits(candidate) {
		return Result{}, ErrInvalidCode
	}

	step := t.Unix() / int64(e.cfg.Period)
	for offset := -int64(e.cfg.DriftWindow); offset <= int64(e.cfg.DriftWindow); offset++ {
		code, err := GenerateHOTP(e.cfg.Algorithm, key, step+offset, e.cfg.Digits)
		if err != nil {
			return Result{}, err
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			return Result{Valid: true, MatchedStep: step + offset}, nil
		}
	}

	return Result{}, nil
}

// RemainingSeconds reports how long the current code stays valid.
func (e *Engine) RemainingSeconds() int {
	return e.RemainingSecondsAt(e.now())
}

// RemainingSecondsAt reports the remaining validity at an explicit time.
func (e *Engine) RemainingSecondsAt(t time.Time) int {
	period := int64(e.cfg.Period)
	return int(period - t.Unix()%period)
}

// decodeSecret validates and Base32-decodes a secret. Validation runs before
// any cryptographic work: short or malformed secrets never reach the HMAC.
func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(strings.ToUpper(secret))
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if !validSecretRegex.MatchString(secret) {
		return nil, ErrInvalidSecret
	}

	trimmed := strings.TrimRight(secret, "=")
	if len(trimmed) < MinSecretLength {
		return nil, ErrSecretTooShort
	}

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(trimmed)
	if err != nil {
		return nil, errors.Join(ErrInvalidSecret, err)
	}
	return key, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
