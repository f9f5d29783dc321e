// Package twofactor manages the lifecycle of the second authentication
// factor: enrolling a TOTP secret, producing the provisioning URI and QR
// image for authenticator apps, issuing recovery codes, and tearing the
// enrollment down again.
//
// The TOTP secret is never stored in the clear. It is sealed under a key
// derived from the master password and the device identifier, so the stored
// blob is useless without both; this is also why every operation that opens
// the secret takes the master password as an argument.
//
// Recovery codes are written in the single-envelope batch format. The
// authentication flow still reads the legacy per-code layout; this package
// only ever writes the current one.
package twofactor
