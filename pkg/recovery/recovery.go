package recovery

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/dmitrymomot/vaultcore/pkg/secrets"
)

const (
	// DefaultCount is the number of codes issued at 2FA enrollment.
	DefaultCount = 8
	// CodeLength is the fixed length of every recovery code.
	CodeLength = 8

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type options struct {
	rand    io.Reader
	encrypt []secrets.Option
}

// Option customizes generation and encryption calls.
type Option func(*options)

// WithRand overrides the randomness source for code generation. Test hook.
func WithRand(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.rand = r
		}
	}
}

// WithEncryptOptions forwards options to the underlying secrets calls
// (iteration count overrides and the like).
func WithEncryptOptions(opts ...secrets.Option) Option {
	return func(o *options) { o.encrypt = append(o.encrypt, opts...) }
}

func applyOptions(opts []Option) options {
	o := options{rand: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Generate creates count independently random recovery codes
// (DefaultCount when 0).
func Generate(count int, opts ...Option) ([]string, error) {
	if count == 0 {
		count = DefaultCount
	}
	if count < 1 {
		return nil, ErrInvalidCount
	}

	o := applyOptions(opts)
	codes := make([]string, count)
	for i := range codes {
		code, err := randomCode(o.rand)
		if err != nil {
			return nil, errors.Join(ErrGenerationFailed, err)
		}
		codes[i] = code
	}
	return codes, nil
}

// randomCode draws CodeLength symbols uniformly from the 36-character
// alphabet. 256 is not a multiple of 36, so bytes above the largest full
// multiple are rejected to avoid modulo bias.
func randomCode(r io.Reader) (string, error) {
	const limit = byte(252) // 7 * 36; highest unbiased byte bound

	code := make([]byte, 0, CodeLength)
	buf := make([]byte, 1)
	for len(code) < CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		if buf[0] >= limit {
			continue
		}
		code = append(code, codeAlphabet[int(buf[0])%len(codeAlphabet)])
	}
	return string(code), nil
}

// Batch is a decrypted set of outstanding recovery codes.
type Batch struct {
	codes []string
}

// NewBatch wraps freshly generated codes for encryption.
func NewBatch(codes []string) Batch {
	return Batch{codes: append([]string(nil), codes...)}
}

// Codes returns a copy of the outstanding codes.
func (b Batch) Codes() []string {
	return append([]string(nil), b.codes...)
}

// Len reports the number of outstanding codes.
func (b Batch) Len() int {
	return len(b.codes)
}

// EncryptBatch seals all codes into a single envelope (the batch format used
// for every new write).
func EncryptBatch(codes []string, passphrase string, opts ...Option) (secrets.Envelope, error) {
	o := applyOptions(opts)
	data, err := json.Marshal(codes)
	if err != nil {
		return secrets.Envelope{}, errors.Join(ErrMalformedBatch, err)
	}
	return secrets.Encrypt(data, passphrase, o.encrypt...)
}

// Stored is the tagged on-disk variant: either one batch envelope or the
// legacy one-envelope-per-code layout. Exactly one side must be populated.
type Stored struct {
	Batch  *secrets.Envelope
	Legacy []secrets.Envelope
}

// Load decrypts whichever format is present, resolving the variant once
// rather than re-detecting it on every consume call.
func (s Stored) Load(passphrase string, opts ...Option) (Batch, error) {
	o := applyOptions(opts)

	switch {
	case s.Batch != nil && len(s.Legacy) > 0:
		return Batch{}, ErrAmbiguousStorage
	case s.Batch != nil:
		return loadBatch(*s.Batch, passphrase, o)
	case len(s.Legacy) > 0:
		return loadLegacy(s.Legacy, passphrase, o)
	default:
		return Batch{}, ErrNoStoredCodes
	}
}

func loadBatch(env secrets.Envelope, passphrase string, o options) (Batch, error) {
	data, err := secrets.Decrypt(env, passphrase, o.encrypt...)
	if err != nil {
		return Batch{}, err
	}

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return Batch{}, errors.Join(ErrMalformedBatch, err)
	}
	return Batch{codes: codes}, nil
}

func loadLegacy(envs []secrets.Envelope, passphrase string, o options) (Batch, error) {
	codes := make([]string, 0, len(envs))
	for _, env := range envs {
		code, err := secrets.DecryptString(env, passphrase, o.encrypt...)
		if err != nil {
			return Batch{}, err
		}
		codes = append(codes, code)
	}
	return Batch{codes: codes}, nil
}

// Result reports a consume attempt. Updated is only meaningful when Found is
// true; it is the re-encrypted reduced batch the caller must persist.
type Result struct {
	Found     bool
	Remaining int
	Updated   secrets.Envelope
}

// Consume matches candidate against the batch and, on success, removes it
// and re-encrypts the reduced set. An unknown candidate returns Found=false
// and leaves the batch untouched. Matching is constant-time per code.
func Consume(candidate string, batch Batch, passphrase string, opts ...Option) (Result, error) {
	candidate = strings.ToUpper(strings.TrimSpace(candidate))

	match := -1
	for i, code := range batch.codes {
		// Compare every code even after a hit so timing does not reveal
		// the match position.
		if len(candidate) == len(code) &&
			subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 &&
			match == -1 {
			match = i
		}
	}

	if match == -1 {
		return Result{Remaining: len(batch.codes)}, nil
	}

	remaining := make([]string, 0, len(batch.codes)-1)
	remaining = append(remaining, batch.codes[:match]...)
	remaining = append(remaining, batch.codes[match+1:]...)

	updated, err := EncryptBatch(remaining, passphrase, opts...)
	if err != nil {
		return Result{}, err
	}

	return Result{Found: true, Remaining: len(remaining), Updated: updated}, nil
}
