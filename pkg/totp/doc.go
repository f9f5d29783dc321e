// Package totp implements RFC 4226 HOTP and RFC 6238 TOTP generation and
// verification for the vault's second factor.
//
// All codes are pure functions of (secret, time, config); nothing is
// persisted here beyond the secret itself, which callers seal with
// pkg/secrets before storage. The Engine carries the configuration and the
// injectable clock and randomness source, so tests can pin exact time steps:
//
//	engine := totp.New(
//		totp.WithClock(func() time.Time { return time.Unix(59, 0) }),
//	)
//	code, err := engine.Generate(secret)
//	result, err := engine.Verify(candidate, secret)
//
// Verification accepts codes from the previous, current, and next time step
// (drift window of one period in each direction). That tolerance is a
// deliberate usability/security trade-off: codes stay valid up to ~59s after
// issue and ~30s before their window starts. Code comparison is
// constant-time.
//
// Secrets are Base32 (A-Z, 2-7) and must be at least 16 characters; both
// constraints are checked before any cryptographic work.
package totp
