package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"

	"github.com/dmitrymomot/vaultcore/pkg/kdf"
)

const (
	// hashSize deliberately exceeds a single SHA-256 digest so the KDF's
	// block-extension path is exercised on every password hash.
	hashSize = 64
	saltSize = 16
)

type options struct {
	salt       string
	iterations int
	rand       io.Reader
}

// Option customizes a Hash call.
type Option func(*options)

// WithSalt reuses an existing salt instead of generating a fresh one.
func WithSalt(salt string) Option {
	return func(o *options) { o.salt = salt }
}

// WithIterations overrides the KDF iteration count for both Hash and Verify.
func WithIterations(n int) Option {
	return func(o *options) { o.iterations = n }
}

// WithRand overrides the salt randomness source. Test hook.
func WithRand(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.rand = r
		}
	}
}

// Record is the persisted form of the master password: hex hash plus salt.
type Record struct {
	Hash string `json:"hash"`
	Salt string `json:"salt"`
}

// Hash derives a password record, generating a random salt unless one is
// supplied via WithSalt.
func Hash(password string, opts ...Option) (Record, error) {
	o := applyOptions(opts)

	salt := o.salt
	if salt == "" {
		raw := make([]byte, saltSize)
		if _, err := io.ReadFull(o.rand, raw); err != nil {
			return Record{}, errors.Join(ErrHashingFailed, err)
		}
		salt = hex.EncodeToString(raw)
	}

	sum, err := kdf.Derive(password, salt, o.iterations, hashSize)
	if err != nil {
		return Record{}, errors.Join(ErrHashingFailed, err)
	}
	defer kdf.ClearBytes(sum)

	return Record{Hash: hex.EncodeToString(sum), Salt: salt}, nil
}

// Verify reports whether candidate matches the stored record. Comparison is
// constant-time with respect to the candidate's derived hash. Malformed
// records always verify false.
func Verify(candidate string, rec Record, opts ...Option) bool {
	if rec.Hash == "" || rec.Salt == "" {
		return false
	}

	stored, err := hex.DecodeString(rec.Hash)
	if err != nil {
		return false
	}

	o := applyOptions(opts)
	sum, err := kdf.Derive(candidate, rec.Salt, o.iterations, len(stored))
	if err != nil {
		return false
	}
	defer kdf.ClearBytes(sum)

	return subtle.ConstantTimeCompare(sum, stored) == 1
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
