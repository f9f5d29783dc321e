package totp

import (
	"crypto/hmac"
	"fmt"
)

// GenerateHOTP implements the RFC 4226 HMAC-based one-time password
// algorithm: HMAC over the big-endian 8-byte counter, dynamic truncation,
// then reduction modulo 10^digits. The result is zero-padded to digits.
func GenerateHOTP(algorithm Algorithm, key []byte, counter int64, digits int) (string, error) {
	newHash, err := algorithm.hashFunc()
	if err != nil {
		return "", err
	}

	// Big-endian 8-byte counter encoding (RFC 4226 requirement).
	counterBytes := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		counterBytes[i] = byte(counter & 0xff)
		counter >>= 8
	}

	mac := hmac.New(newHash, key)
	mac.Write(counterBytes)
	sum := mac.Sum(nil)

	// Dynamic truncation: low nibble of the last byte picks the offset,
	// 4 bytes there masked to 31 bits give the code value.
	offset := sum[len(sum)-1] & 0x0f
	code := (int(sum[offset]&0x7f) << 24) |
		(int(sum[offset+1]) << 16) |
		(int(sum[offset+2]) << 8) |
		int(sum[offset+3])

	code %= pow10(digits)

	return fmt.Sprintf("%0*d", digits, code), nil
}

func pow10(n int) int {
	result := 1
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}
