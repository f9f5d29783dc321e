// Package recovery manages one-time recovery codes, the fallback second
// factor when the authenticator app is unavailable.
//
// Codes are 8-character uppercase alphanumeric strings, stored encrypted as a
// single batch (a JSON list sealed into one secrets.Envelope). Batching is
// deliberate: one storage round-trip loads or persists the whole set.
// Consuming a code removes it from the batch and re-encrypts the remainder;
// each code is usable at most once.
//
// Earlier vault versions stored one envelope per code. That layout is still
// decodable via the Stored tagged variant, which resolves the format once at
// load time; new writes always use the batch format.
package recovery
