package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"github.com/dmitrymomot/vaultcore/pkg/kdf"
)

const (
	keySize  = 32 // AES-256
	saltSize = 16 // random bytes per encryption, hex-encoded in the envelope
)

// Envelope is the persisted form of an encrypted record: base64 ciphertext
// (nonce prepended) together with the salt its key was derived from.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	Salt       string `json:"salt"`
}

type options struct {
	salt       string
	iterations int
	rand       io.Reader
}

// Option customizes a single Encrypt call.
type Option func(*options)

// WithSalt reuses a caller-provided salt instead of generating a fresh one.
// Intended for re-encrypting an existing record in place; new records should
// let Encrypt generate the salt.
func WithSalt(salt string) Option {
	return func(o *options) { o.salt = salt }
}

// WithIterations overrides the KDF iteration count. Both encrypt and decrypt
// must agree on it, so it belongs in configuration, not per-record state.
func WithIterations(n int) Option {
	return func(o *options) { o.iterations = n }
}

// WithRand overrides the randomness source for salts and nonces. Test hook.
func WithRand(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.rand = r
		}
	}
}

// Encrypt seals plaintext under a key derived from password and returns the
// envelope to persist. The empty plaintext is valid.
func Encrypt(plaintext []byte, password string, opts ...Option) (Envelope, error) {
	o := applyOptions(opts)

	salt := o.salt
	if salt == "" {
		raw := make([]byte, saltSize)
		if _, err := io.ReadFull(o.rand, raw); err != nil {
			return Envelope{}, errors.Join(ErrEncryptionFailed, err)
		}
		salt = hex.EncodeToString(raw)
	}

	key, err := kdf.Derive(password, salt, o.iterations, keySize)
	if err != nil {
		return Envelope{}, errors.Join(ErrKeyDerivationFailed, err)
	}
	defer kdf.ClearBytes(key)

	sealed, err := gcmSeal(plaintext, key, o.rand)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Salt:       salt,
	}, nil
}

// EncryptString is a convenience wrapper around Encrypt for string plaintexts.
func EncryptString(plaintext, password string, opts ...Option) (Envelope, error) {
	return Encrypt([]byte(plaintext), password, opts...)
}

// Decrypt opens an envelope with the given password. Malformed envelopes,
// truncated ciphertexts, and wrong passwords all fail with
// ErrDecryptionFailed; callers must not distinguish these cases to users.
func Decrypt(env Envelope, password string, opts ...Option) ([]byte, error) {
	o := applyOptions(opts)

	if env.Salt == "" {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext)
	}

	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext, err)
	}

	key, err := kdf.Derive(password, env.Salt, o.iterations, keySize)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	defer kdf.ClearBytes(key)

	return gcmOpen(sealed, key)
}

// DecryptString is a convenience wrapper around Decrypt for string plaintexts.
func DecryptString(env Envelope, password string, opts ...Option) (string, error) {
	plaintext, err := Decrypt(env, password, opts...)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func applyOptions(opts []Option) options {
	o := options{
		iterations: kdf.DefaultIterations,
		rand:       rand.Reader,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// gcmSeal encrypts with AES-256-GCM, prepending the nonce to the ciphertext.
func gcmSeal(plaintext, key []byte, randSource io.Reader) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(randSource, nonce); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	return aesGCM.Seal(nonce, nonce, plaintext, nil), nil
}

// gcmOpen reverses gcmSeal. Authentication failure means either tampering or
// a wrong key; both surface as ErrDecryptionFailed.
func gcmOpen(sealed, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	nonceSize := aesGCM.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext)
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	return plaintext, nil
}
