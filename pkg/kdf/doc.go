// Package kdf derives fixed-length key material from a password and salt
// using iterated SHA-256 hashing.
//
// The derivation is deterministic: identical inputs always produce identical
// output, which is what lets stored password hashes and encrypted records be
// re-opened later. Derived keys are never persisted; callers own the returned
// bytes and should zero them once finished.
//
// The default iteration count (10,000) is a deliberate mobile-friendly
// reduction from the 100,000+ recommended for server-side password hashing.
// Raising it invalidates every record hashed or encrypted with the old count,
// so it is exposed as an explicit parameter rather than silently tuned.
//
// Usage:
//
//	key, err := kdf.Derive("master-password", salt, kdf.DefaultIterations, 32)
//	if err != nil {
//		// invalid arguments
//	}
//	defer kdf.ClearBytes(key)
package kdf
