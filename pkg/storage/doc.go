// Package storage defines the key-value port the vault persists through.
//
// The real implementation is the platform's secure storage primitive; this
// package treats it as an opaque string store with get/set/delete. Every
// value written through it is already encrypted or hashed by the calling
// package; nothing here sees plaintext secrets.
//
// MemoryStore is the in-process implementation used by tests and ephemeral
// sessions.
package storage
