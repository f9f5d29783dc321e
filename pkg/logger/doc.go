// Package logger provides slog attribute helpers with the vault's canonical
// keys, so the same field names show up no matter which package emits the
// record.
//
// Components take a *slog.Logger via a functional option and default to a
// discard logger; nothing in this module writes logs unless the composing
// application wires a handler in. Log records never include secrets, codes,
// or derived key material, only identifiers and outcomes.
package logger
