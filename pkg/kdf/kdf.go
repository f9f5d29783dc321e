package kdf

import (
	"crypto/sha256"
	"encoding/binary"
)

// DefaultIterations is tuned for interactive use on mobile-class hardware.
// Server-side guidance recommends 100,000+; changing this breaks every
// previously stored hash and ciphertext, so it is a caller decision.
const DefaultIterations = 10000

// Derive produces length bytes of key material from password and salt.
//
// The working buffer is seeded with the UTF-8 bytes of password followed by
// salt, then replaced by its SHA-256 digest for each iteration. Outputs
// longer than a single digest are extended block-wise: block N is
// SHA-256(finalDigest || bigEndian32(N)), so a 64-byte password hash and a
// 32-byte encryption key derived from the same inputs share no raw bytes
// beyond the first block.
func Derive(password, salt string, iterations, length int) ([]byte, error) {
	if iterations < 1 {
		return nil, ErrInvalidIterations
	}
	if length < 1 {
		return nil, ErrInvalidLength
	}

	buf := make([]byte, 0, len(password)+len(salt))
	buf = append(buf, password...)
	buf = append(buf, salt...)

	digest := sha256.Sum256(buf)
	for i := 1; i < iterations; i++ {
		digest = sha256.Sum256(digest[:])
	}

	if length <= sha256.Size {
		out := make([]byte, length)
		copy(out, digest[:length])
		return out, nil
	}

	// Counter-based extension for outputs beyond one digest.
	out := make([]byte, 0, length)
	var counter [4]byte
	block := digest
	for len(out) < length {
		out = append(out, block[:]...)
		binary.BigEndian.PutUint32(counter[:], uint32(len(out)/sha256.Size))
		ext := make([]byte, 0, sha256.Size+4)
		ext = append(ext, digest[:]...)
		ext = append(ext, counter[:]...)
		block = sha256.Sum256(ext)
	}
	return out[:length], nil
}

// ClearBytes zeroes b in place. Defense-in-depth for key material that is no
// longer needed; Go gives no hard guarantee about copies made by the runtime.
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
