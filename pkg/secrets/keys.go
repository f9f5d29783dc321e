package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/dmitrymomot/vaultcore/pkg/kdf"
)

// DeriveWrapKey derives a 32-byte sealing key bound to the master password,
// the device identifier, and a fixed context string. HKDF provides the domain
// separation: the same password and device produce unrelated keys for
// different contexts (e.g. "totp-secret" vs "recovery-codes").
//
// The caller owns the returned key and should clear it with kdf.ClearBytes
// once the seal/open call completes.
func DeriveWrapKey(password, deviceID, context string) ([]byte, error) {
	if deviceID == "" {
		return nil, errors.Join(ErrKeyDerivationFailed, ErrMissingDeviceID)
	}

	ikm, err := kdf.Derive(password, deviceID, kdf.DefaultIterations, keySize)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	defer kdf.ClearBytes(ikm)

	reader := hkdf.New(sha256.New, ikm, []byte(deviceID), []byte(context))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}

	return key, nil
}

// EncryptWithKey seals plaintext directly under a 32-byte key, skipping
// password derivation. Returns base64(nonce || ciphertext || tag).
func EncryptWithKey(plaintext, key []byte) (string, error) {
	if len(key) != keySize {
		return "", errors.Join(ErrEncryptionFailed, ErrInvalidKeyLength)
	}

	sealed, err := gcmSeal(plaintext, key, rand.Reader)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptWithKey opens a base64 ciphertext produced by EncryptWithKey.
func DecryptWithKey(ciphertext string, key []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidKeyLength)
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext, err)
	}

	return gcmOpen(sealed, key)
}
