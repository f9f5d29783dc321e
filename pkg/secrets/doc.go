// Package secrets encrypts vault records under password-derived keys using
// AES-256-GCM.
//
// The persisted unit is an Envelope: base64 ciphertext plus the salt the key
// was derived with. A fresh random salt is generated per encryption, so two
// records encrypted under the same password never share a key. Decryption
// with the wrong password fails with ErrDecryptionFailed (GCM authentication
// catches it) rather than returning garbage bytes.
//
// The historical record format for this vault used an unauthenticated
// keystream XOR. That scheme is intentionally NOT reproduced here: the
// envelope shape and password-based derivation are preserved, but the
// transform is an AEAD, so tampered ciphertexts and wrong passwords are
// rejected instead of silently decrypting to noise.
//
// Usage:
//
//	env, err := secrets.Encrypt([]byte("seed phrase"), masterPassword)
//	if err != nil {
//		// handle error
//	}
//	plaintext, err := secrets.Decrypt(env, masterPassword)
//
// For material that must be sealed under a key shared with another input
// (TOTP secrets are bound to master password + device identifier), derive a
// wrap key first:
//
//	key, err := secrets.DeriveWrapKey(masterPassword, deviceID, "totp-secret")
//	sealed, err := secrets.EncryptWithKey([]byte(totpSecret), key)
package secrets
