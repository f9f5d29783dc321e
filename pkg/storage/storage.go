package storage

import "context"

// Well-known keys for the vault's persisted entries.
const (
	KeyPasswordHash   = "auth.password.hash"
	KeyPasswordSalt   = "auth.password.salt"
	KeyTOTPSecret     = "auth.totp.secret"
	KeyRecoveryCodes  = "auth.recovery.codes"
	KeyVaultItems     = "vault.items"
	KeySessionTimeout = "settings.session_timeout"
)

// Store is the opaque key-value port backing all persistence. Implementations
// must return ErrNotFound (possibly wrapped) from Get when the key is absent
// and may wrap any backend failure with ErrStorageFailure.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
