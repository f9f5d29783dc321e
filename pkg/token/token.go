package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// signatureSize truncates the HMAC to 8 bytes; enough to make forgery
// infeasible for a marker that lives seconds, while keeping tokens short.
const signatureSize = 8

// SessionMarker is the payload carried by an authenticated-session token.
type SessionMarker struct {
	AttemptID string `json:"attempt_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Mint signs a marker into its transportable string form.
func Mint(marker SessionMarker, secret []byte) (string, error) {
	data, err := json.Marshal(marker)
	if err != nil {
		return "", err
	}

	payload := base64.RawURLEncoding.EncodeToString(data)
	sig := base64.RawURLEncoding.EncodeToString(sign(data, secret))

	return payload + "." + sig, nil
}

// Verify checks the token's signature and expiry against now, returning the
// embedded marker. The signature is verified before the payload is trusted.
func Verify(tok string, secret []byte, now time.Time) (SessionMarker, error) {
	var marker SessionMarker

	parts := strings.Split(tok, ".")
	if len(parts) != 2 {
		return marker, ErrInvalidToken
	}

	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return marker, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return marker, ErrInvalidToken
	}

	if subtle.ConstantTimeCompare(sig, sign(data, secret)) != 1 {
		return marker, ErrSignatureInvalid
	}

	if err := json.Unmarshal(data, &marker); err != nil {
		return marker, ErrInvalidToken
	}

	if now.Unix() > marker.ExpiresAt {
		return marker, ErrTokenExpired
	}

	return marker, nil
}

func sign(data, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return mac.Sum(nil)[:signatureSize]
}
