// Package qrcode renders otpauth provisioning URIs as QR code images for
// the 2FA enrollment screen.
//
// Medium error correction is enough for a QR scanned off a phone screen.
// The content is a secret-bearing URI, so callers should treat the returned
// image the way they treat the secret itself: display transiently, never
// persist.
package qrcode
