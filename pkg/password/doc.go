// Package password hashes and verifies the vault master password.
//
// The stored Record holds only the KDF output and its salt, never the
// plaintext. Verification recomputes the hash and compares in constant time,
// the same side-channel discipline applied to TOTP code comparison elsewhere
// in the vault. Verify never returns an error: any malformed record is
// simply a failed verification, so a corrupted store can only degrade to
// "authentication failed", never to "authenticated".
package password
