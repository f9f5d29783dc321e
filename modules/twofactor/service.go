package twofactor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/dmitrymomot/vaultcore/pkg/authflow"
	"github.com/dmitrymomot/vaultcore/pkg/kdf"
	"github.com/dmitrymomot/vaultcore/pkg/logger"
	"github.com/dmitrymomot/vaultcore/pkg/qrcode"
	"github.com/dmitrymomot/vaultcore/pkg/recovery"
	"github.com/dmitrymomot/vaultcore/pkg/secrets"
	"github.com/dmitrymomot/vaultcore/pkg/storage"
	"github.com/dmitrymomot/vaultcore/pkg/totp"
)

// Service handles two-factor enrollment against the credential store.
type Service struct {
	cfg        Config
	store      storage.Store
	engine     *totp.Engine
	logger     *slog.Logger
	iterations int
	rand       io.Reader
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithTOTPEngine overrides the default TOTP engine. The engine's settings
// end up in the provisioning URI, so it must match the verification side.
func WithTOTPEngine(e *totp.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithLogger sets the logger; defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKDFIterations overrides the iteration count used for recovery-code
// envelopes. It must match the authentication flow's setting.
func WithKDFIterations(n int) Option {
	return func(s *Service) { s.iterations = n }
}

// WithRand overrides the randomness source for recovery codes. Test hook.
func WithRand(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.rand = r
		}
	}
}

// New creates a two-factor enrollment service.
func New(cfg Config, store storage.Store, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg.withDefaults(),
		store:      store,
		engine:     totp.New(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		iterations: kdf.DefaultIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enrollment is everything the setup screen needs to show the user once.
// The secret and recovery codes are displayed at this moment only; they are
// not retrievable in the clear afterwards.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
	QRCode          string // data:image/png URI
	RecoveryCodes   []string
}

// Enroll generates a fresh TOTP secret and recovery-code batch, seals both
// under the master password, and persists them. Fails if an enrollment
// already exists; use Disable first to rotate.
func (s *Service) Enroll(ctx context.Context, masterPassword string) (*Enrollment, error) {
	if enrolled, err := s.Enrolled(ctx); err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	} else if enrolled {
		return nil, ErrAlreadyEnrolled
	}

	secret, err := s.engine.GenerateSecret(s.cfg.SecretLength)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}

	wrapKey, err := secrets.DeriveWrapKey(masterPassword, s.cfg.DeviceID, authflow.TOTPSecretContext)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}
	defer kdf.ClearBytes(wrapKey)

	sealed, err := secrets.EncryptWithKey([]byte(secret), wrapKey)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}

	codes, err := recovery.Generate(s.cfg.RecoveryCount, s.recoveryOptions()...)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}
	batchEnv, err := recovery.EncryptBatch(codes, masterPassword, s.recoveryOptions()...)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}
	batchJSON, err := json.Marshal(batchEnv)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}

	uri, err := s.engine.ProvisioningURI(totp.URIParams{
		Secret:      secret,
		AccountName: s.cfg.AccountName,
		Issuer:      s.cfg.Issuer,
	})
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}
	qr, err := qrcode.DataURI(uri, s.cfg.QRSize)
	if err != nil {
		return nil, errors.Join(ErrSetupFailed, err)
	}

	// Persist the secret first; recovery codes without a secret are inert,
	// the reverse would lock the user out of the fallback.
	if err := s.store.Set(ctx, storage.KeyTOTPSecret, sealed); err != nil {
		return nil, errors.Join(ErrSetupFailed, storage.ErrStorageFailure, err)
	}
	if err := s.store.Set(ctx, storage.KeyRecoveryCodes, string(batchJSON)); err != nil {
		return nil, errors.Join(ErrSetupFailed, storage.ErrStorageFailure, err)
	}

	s.logger.InfoContext(ctx, "two-factor enrollment completed",
		logger.Component("twofactor"),
		slog.Int("recovery_codes", len(codes)),
	)

	return &Enrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCode:          qr,
		RecoveryCodes:   codes,
	}, nil
}

// Enrolled reports whether a sealed TOTP secret exists.
func (s *Service) Enrolled(ctx context.Context) (bool, error) {
	_, err := s.store.Get(ctx, storage.KeyTOTPSecret)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// VerifyCode opens the sealed secret with the master password and checks a
// TOTP candidate against it. Used by the setup screen to confirm the user
// scanned the QR code before the enrollment is considered live.
func (s *Service) VerifyCode(ctx context.Context, masterPassword, code string) (bool, error) {
	secret, err := s.openSecret(ctx, masterPassword)
	if err != nil {
		return false, err
	}
	defer kdf.ClearBytes(secret)

	res, err := s.engine.Verify(code, string(secret))
	if err != nil {
		return false, err
	}
	return res.Valid, nil
}

// RegenerateRecoveryCodes replaces the outstanding batch with a fresh one,
// invalidating every previous code. Requires the master password both to
// prove the caller and to seal the new batch.
func (s *Service) RegenerateRecoveryCodes(ctx context.Context, masterPassword string) ([]string, error) {
	secret, err := s.openSecret(ctx, masterPassword)
	if err != nil {
		return nil, err
	}
	kdf.ClearBytes(secret)

	codes, err := recovery.Generate(s.cfg.RecoveryCount, s.recoveryOptions()...)
	if err != nil {
		return nil, err
	}
	env, err := recovery.EncryptBatch(codes, masterPassword, s.recoveryOptions()...)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, storage.KeyRecoveryCodes, string(data)); err != nil {
		return nil, errors.Join(storage.ErrStorageFailure, err)
	}

	s.logger.InfoContext(ctx, "recovery codes regenerated",
		logger.Component("twofactor"),
		slog.Int("recovery_codes", len(codes)),
	)
	return codes, nil
}

// Disable removes the sealed secret and the recovery batch. Requires the
// master password so a passerby with an unlocked device cannot silently
// weaken the vault.
func (s *Service) Disable(ctx context.Context, masterPassword string) error {
	secret, err := s.openSecret(ctx, masterPassword)
	if err != nil {
		return err
	}
	kdf.ClearBytes(secret)

	if err := s.store.Delete(ctx, storage.KeyTOTPSecret); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return errors.Join(storage.ErrStorageFailure, err)
	}
	if err := s.store.Delete(ctx, storage.KeyRecoveryCodes); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return errors.Join(storage.ErrStorageFailure, err)
	}

	s.logger.InfoContext(ctx, "two-factor enrollment removed", logger.Component("twofactor"))
	return nil
}

// openSecret loads and unseals the stored TOTP secret. A failed unseal maps
// to ErrWrongPassword: with an authenticated tag, a decrypt failure means
// the key (and so the password) is wrong, not that the data is garbage.
func (s *Service) openSecret(ctx context.Context, masterPassword string) ([]byte, error) {
	sealed, err := s.store.Get(ctx, storage.KeyTOTPSecret)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, errors.Join(storage.ErrStorageFailure, err)
	}

	wrapKey, err := secrets.DeriveWrapKey(masterPassword, s.cfg.DeviceID, authflow.TOTPSecretContext)
	if err != nil {
		return nil, err
	}
	defer kdf.ClearBytes(wrapKey)

	secret, err := secrets.DecryptWithKey(sealed, wrapKey)
	if err != nil {
		return nil, errors.Join(ErrWrongPassword, err)
	}
	return secret, nil
}

func (s *Service) recoveryOptions() []recovery.Option {
	opts := []recovery.Option{
		recovery.WithEncryptOptions(secrets.WithIterations(s.iterations)),
	}
	if s.rand != nil {
		opts = append(opts, recovery.WithRand(s.rand))
	}
	return opts
}
