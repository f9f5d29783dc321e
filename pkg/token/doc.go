// Package token mints and verifies the short-lived session marker the
// orchestrator hands to the UI layer after full authentication.
//
// The marker is a compact HMAC-SHA256-signed JSON payload
// (base64url(payload).base64url(signature)); the signing secret is a random
// per-process key, so markers never survive a restart; by the time the
// process restarts the user must re-authenticate anyway. Verification is
// constant-time on the signature and enforces expiry.
package token
