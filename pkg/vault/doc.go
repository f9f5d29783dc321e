// Package vault stores the user's secret records: seed phrases, wallet
// credentials, and private keys.
//
// An item's plaintext exists only at two moments: on Add, where it is
// encrypted immediately and the caller's buffer is zeroed, and on Reveal,
// where it is decrypted transiently for display and the caller is
// responsible for clearing it afterwards. Between those moments only the
// secrets.Envelope is held, persisted as a JSON index in the key-value
// store. Items are immutable after creation; the only mutation is Delete.
package vault
