package authflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vaultcore/pkg/authflow"
	"github.com/dmitrymomot/vaultcore/pkg/biometric"
	"github.com/dmitrymomot/vaultcore/pkg/recovery"
	"github.com/dmitrymomot/vaultcore/pkg/secrets"
	"github.com/dmitrymomot/vaultcore/pkg/storage"
	"github.com/dmitrymomot/vaultcore/pkg/token"
	"github.com/dmitrymomot/vaultcore/pkg/totp"
)

const (
	masterPassword = "correct horse battery staple"
	testDeviceID   = "test-device"
	totpSecret     = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	testIterations = 8
)

func testConfig() authflow.Config {
	return authflow.Config{DeviceID: testDeviceID}
}

func newOrchestrator(t *testing.T, cfg authflow.Config, opts ...authflow.Option) (*authflow.Orchestrator, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	opts = append([]authflow.Option{authflow.WithKDFIterations(testIterations)}, opts...)
	o, err := authflow.New(cfg, store, opts...)
	require.NoError(t, err)
	require.NoError(t, o.EnrollPassword(context.Background(), masterPassword))

	return o, store
}

// sealTOTPSecret enrolls a TOTP secret the way the two-factor setup flow
// does: wrapped under a key derived from the master password and device ID.
func sealTOTPSecret(t *testing.T, store storage.Store) {
	t.Helper()

	wrapKey, err := secrets.DeriveWrapKey(masterPassword, testDeviceID, authflow.TOTPSecretContext)
	require.NoError(t, err)
	sealed, err := secrets.EncryptWithKey([]byte(totpSecret), wrapKey)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), storage.KeyTOTPSecret, sealed))
}

func storeRecoveryBatch(t *testing.T, store storage.Store, codes []string) {
	t.Helper()

	env, err := recovery.EncryptBatch(codes, masterPassword,
		recovery.WithEncryptOptions(secrets.WithIterations(testIterations)))
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), storage.KeyRecoveryCodes, string(data)))
}

func TestPasswordOnlyFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, _ := newOrchestrator(t, testConfig())

	step, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	require.Equal(t, authflow.StepPassword, step)

	step, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)
	assert.Equal(t, authflow.StepDone, step)
	assert.True(t, o.IsAuthenticated())

	marker, ok := o.SessionMarker()
	require.True(t, ok)
	parsed, err := o.VerifyMarker(marker)
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.AttemptID)
}

func TestFullFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	engine := totp.New(totp.WithClock(func() time.Time { return now }))

	oracle := biometric.OracleFunc(func(ctx context.Context, prompt string) (bool, error) {
		assert.NotEmpty(t, prompt)
		return true, nil
	})

	o, store := newOrchestrator(t, testConfig(),
		authflow.WithBiometricOracle(oracle),
		authflow.WithTOTPEngine(engine),
		authflow.WithClock(func() time.Time { return now }),
	)
	sealTOTPSecret(t, store)

	step, err := o.BeginAttempt(ctx, authflow.AttemptConfig{BiometricEnabled: true, TwoFactorEnabled: true})
	require.NoError(t, err)
	require.Equal(t, authflow.StepPassword, step)

	step, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)
	require.Equal(t, authflow.StepBiometric, step)

	step, err = o.SubmitBiometric(ctx)
	require.NoError(t, err)
	require.Equal(t, authflow.StepTwoFactor, step)

	code, err := engine.Generate(totpSecret)
	require.NoError(t, err)

	step, err = o.SubmitTwoFactor(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, authflow.StepDone, step)
	assert.True(t, o.IsAuthenticated())
}

func TestWrongPasswordDoesNotLockImmediately(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, _ := newOrchestrator(t, testConfig())

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)

	step, err := o.SubmitPassword(ctx, "wrong")
	require.ErrorIs(t, err, authflow.ErrAuthenticationFailed)
	assert.Equal(t, authflow.StepPassword, step)
	assert.Equal(t, 1, o.FailedAttempts())

	step, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)
	assert.Equal(t, authflow.StepDone, step)
	assert.Zero(t, o.FailedAttempts(), "counter clears on success by default")
}

func TestLockoutAfterMaxFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	lockedOut := false
	o, _ := newOrchestrator(t, testConfig(), authflow.WithOnLockout(func() { lockedOut = true }))

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err = o.SubmitPassword(ctx, "wrong")
		require.ErrorIs(t, err, authflow.ErrAuthenticationFailed)
	}

	step, err := o.SubmitPassword(ctx, "wrong")
	require.ErrorIs(t, err, authflow.ErrLockedOut)
	assert.Equal(t, authflow.StepLocked, step)
	assert.True(t, lockedOut)

	_, err = o.SubmitPassword(ctx, masterPassword)
	assert.ErrorIs(t, err, authflow.ErrLockedOut)

	_, err = o.BeginAttempt(ctx, authflow.AttemptConfig{})
	assert.ErrorIs(t, err, authflow.ErrLockedOut)
}

func TestFailureCounterSharedAcrossSteps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := testConfig()
	cfg.MaxFailedAttempts = 2

	now := time.Unix(1_700_000_000, 0)
	engine := totp.New(totp.WithClock(func() time.Time { return now }))

	o, store := newOrchestrator(t, cfg, authflow.WithTOTPEngine(engine))
	sealTOTPSecret(t, store)

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{TwoFactorEnabled: true})
	require.NoError(t, err)

	_, err = o.SubmitPassword(ctx, "wrong")
	require.ErrorIs(t, err, authflow.ErrAuthenticationFailed)

	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	step, err := o.SubmitTwoFactor(ctx, "000000")
	require.ErrorIs(t, err, authflow.ErrLockedOut)
	assert.Equal(t, authflow.StepLocked, step)
}

func TestCancelPreservesFailureCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, _ := newOrchestrator(t, testConfig())

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, "wrong")
	require.ErrorIs(t, err, authflow.ErrAuthenticationFailed)

	o.Cancel()
	assert.Equal(t, authflow.StepIdle, o.CurrentStep())
	assert.Equal(t, 1, o.FailedAttempts())
}

func TestRetainCounterOnSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := testConfig()
	cfg.RetainCounterOnSuccess = true
	o, _ := newOrchestrator(t, cfg)

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, "wrong")
	require.ErrorIs(t, err, authflow.ErrAuthenticationFailed)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	assert.True(t, o.IsAuthenticated())
	assert.Equal(t, 1, o.FailedAttempts())
}

func TestNotEnrolled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, err := authflow.New(testConfig(), storage.NewMemoryStore(),
		authflow.WithKDFIterations(testIterations))
	require.NoError(t, err)

	_, err = o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)

	_, err = o.SubmitPassword(ctx, masterPassword)
	require.ErrorIs(t, err, authflow.ErrNotEnrolled)
	assert.Zero(t, o.FailedAttempts(), "missing enrollment is not a credential failure")
}

// failingStore degrades every read so storage corruption can be simulated.
type failingStore struct{ storage.Store }

func (f failingStore) Get(ctx context.Context, key string) (string, error) {
	return "", errors.Join(storage.ErrStorageFailure, errors.New("disk read failed"))
}

func TestStorageFailureDegradesToAuthFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, err := authflow.New(testConfig(), failingStore{storage.NewMemoryStore()},
		authflow.WithKDFIterations(testIterations))
	require.NoError(t, err)

	_, err = o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)

	_, err = o.SubmitPassword(ctx, masterPassword)
	require.ErrorIs(t, err, authflow.ErrAuthenticationFailed)
	assert.NotErrorIs(t, err, storage.ErrStorageFailure,
		"the caller must not be able to tell corruption from a wrong password")
	assert.Equal(t, 1, o.FailedAttempts())
}

func TestBiometricUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, _ := newOrchestrator(t, testConfig())

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{BiometricEnabled: true})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	_, err = o.SubmitBiometric(ctx)
	require.ErrorIs(t, err, authflow.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, biometric.ErrHardwareUnavailable)
	assert.Equal(t, 1, o.FailedAttempts())
}

func TestBiometricCancelled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	oracle := biometric.OracleFunc(func(ctx context.Context, prompt string) (bool, error) {
		return false, biometric.ErrUserCancelled
	})
	o, _ := newOrchestrator(t, testConfig(), authflow.WithBiometricOracle(oracle))

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{BiometricEnabled: true})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	_, err = o.SubmitBiometric(ctx)
	assert.ErrorIs(t, err, biometric.ErrUserCancelled)
}

func TestStepOrderEnforced(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, _ := newOrchestrator(t, testConfig())

	_, err := o.SubmitPassword(ctx, masterPassword)
	assert.ErrorIs(t, err, authflow.ErrNoActiveAttempt)

	_, err = o.BeginAttempt(ctx, authflow.AttemptConfig{TwoFactorEnabled: true})
	require.NoError(t, err)

	_, err = o.SubmitTwoFactor(ctx, "123456")
	assert.ErrorIs(t, err, authflow.ErrUnexpectedStep)
}

func TestRecoveryCodeFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	codes := []string{"ABCD23EF", "GHJK45MN", "PQRS67TU"}
	o, store := newOrchestrator(t, testConfig())
	sealTOTPSecret(t, store)
	storeRecoveryBatch(t, store, codes)

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{TwoFactorEnabled: true})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	step, err := o.SubmitTwoFactor(ctx, "ghjk45mn") // case-insensitive
	require.NoError(t, err)
	assert.Equal(t, authflow.StepDone, step)

	// The consumed code must be gone from the persisted batch.
	raw, err := store.Get(ctx, storage.KeyRecoveryCodes)
	require.NoError(t, err)
	var env secrets.Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	stored := recovery.Stored{Batch: &env}
	batch, err := stored.Load(masterPassword,
		recovery.WithEncryptOptions(secrets.WithIterations(testIterations)))
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Len())
	assert.NotContains(t, batch.Codes(), "GHJK45MN")
}

func TestAllDigitRecoveryCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// The recovery alphabet includes digits, so an issued code can be
	// all-numeric. It must still route to the recovery path, not burn a
	// failed attempt as a malformed TOTP code.
	codes := []string{"12345678", "ABCD23EF"}
	o, store := newOrchestrator(t, testConfig())
	storeRecoveryBatch(t, store, codes)

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{TwoFactorEnabled: true})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	step, err := o.SubmitTwoFactor(ctx, "12345678")
	require.NoError(t, err)
	assert.Equal(t, authflow.StepDone, step)
	assert.Zero(t, o.FailedAttempts())
}

func TestRecoveryCodeSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	codes := []string{"ABCD23EF", "GHJK45MN"}
	o, store := newOrchestrator(t, testConfig())
	storeRecoveryBatch(t, store, codes)

	authenticate := func() error {
		if _, err := o.BeginAttempt(ctx, authflow.AttemptConfig{TwoFactorEnabled: true}); err != nil {
			return err
		}
		if _, err := o.SubmitPassword(ctx, masterPassword); err != nil {
			return err
		}
		_, err := o.SubmitTwoFactor(ctx, "ABCD23EF")
		return err
	}

	require.NoError(t, authenticate())
	o.Cancel()

	err := authenticate()
	require.ErrorIs(t, err, authflow.ErrAuthenticationFailed)
}

func TestLegacyRecoveryFormatMigratesOnConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Legacy layout: a JSON array with one envelope per code.
	codes := []string{"ABCD23EF", "GHJK45MN"}
	envs := make([]secrets.Envelope, 0, len(codes))
	for _, code := range codes {
		env, err := secrets.EncryptString(code, masterPassword, secrets.WithIterations(testIterations))
		require.NoError(t, err)
		envs = append(envs, env)
	}
	data, err := json.Marshal(envs)
	require.NoError(t, err)

	o, store := newOrchestrator(t, testConfig())
	require.NoError(t, store.Set(ctx, storage.KeyRecoveryCodes, string(data)))

	_, err = o.BeginAttempt(ctx, authflow.AttemptConfig{TwoFactorEnabled: true})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)
	step, err := o.SubmitTwoFactor(ctx, "ABCD23EF")
	require.NoError(t, err)
	assert.Equal(t, authflow.StepDone, step)

	// A consume rewrites the store in the batch format.
	raw, err := store.Get(ctx, storage.KeyRecoveryCodes)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(raw), "{"),
		"legacy array should be rewritten as a single batch envelope")
}

func TestGracePeriod(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	o, _ := newOrchestrator(t, testConfig(), authflow.WithClock(func() time.Time { return now }))

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	assert.True(t, o.InGracePeriod())
	assert.False(t, o.RequiresReauth())

	now = now.Add(6 * time.Second)
	assert.False(t, o.InGracePeriod())
	assert.False(t, o.RequiresReauth(), "live session never requires reauth")

	o.Cancel()
	assert.True(t, o.RequiresReauth())
}

func TestSessionTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := testConfig()
	cfg.SessionTimeout = 50 * time.Millisecond

	expired := make(chan struct{})
	o, _ := newOrchestrator(t, cfg, authflow.WithOnTimeout(func() { close(expired) }))

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)
	require.True(t, o.IsAuthenticated())

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("inactivity timeout never fired")
	}

	assert.False(t, o.IsAuthenticated())
	assert.Equal(t, authflow.StepPassword, o.CurrentStep())
	_, ok := o.SessionMarker()
	assert.False(t, ok, "marker must be cleared on expiry")
}

func TestTouchRestartsSessionTimer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := testConfig()
	cfg.SessionTimeout = 250 * time.Millisecond

	o, _ := newOrchestrator(t, cfg)

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	o.Touch()
	time.Sleep(150 * time.Millisecond)
	assert.True(t, o.IsAuthenticated(), "activity must push the deadline out")

	assert.Eventually(t, func() bool { return !o.IsAuthenticated() },
		2*time.Second, 10*time.Millisecond)
}

func TestSessionTimeoutPreferenceFromStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	expired := make(chan struct{})
	o, store := newOrchestrator(t, testConfig(), authflow.WithOnTimeout(func() { close(expired) }))
	// Default would be 300s; the stored preference shortens it to 1s.
	require.NoError(t, store.Set(ctx, storage.KeySessionTimeout, "1"))

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("stored timeout preference was not honored")
	}
}

func TestDestructiveReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, store := newOrchestrator(t, testConfig())
	require.NoError(t, store.Set(ctx, storage.KeyVaultItems, "[]"))

	assert.ErrorIs(t, o.ArmReset(), authflow.ErrNotLockedOut)

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = o.SubmitPassword(ctx, "wrong")
		require.Error(t, err)
	}
	require.Equal(t, authflow.StepLocked, o.CurrentStep())

	assert.ErrorIs(t, o.ConfirmReset(ctx), authflow.ErrResetNotArmed)

	require.NoError(t, o.ArmReset())
	require.NoError(t, o.ConfirmReset(ctx))

	assert.Equal(t, authflow.StepIdle, o.CurrentStep())
	assert.Zero(t, o.FailedAttempts())

	for _, key := range []string{
		storage.KeyPasswordHash,
		storage.KeyPasswordSalt,
		storage.KeyVaultItems,
	} {
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, storage.ErrNotFound, key)
	}

	// The flow is usable again, though nothing is enrolled anymore.
	_, err = o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	assert.ErrorIs(t, err, authflow.ErrNotEnrolled)
}

func TestMarkerRejectedAfterExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	o, _ := newOrchestrator(t, testConfig(), authflow.WithClock(func() time.Time { return now }))

	_, err := o.BeginAttempt(ctx, authflow.AttemptConfig{})
	require.NoError(t, err)
	_, err = o.SubmitPassword(ctx, masterPassword)
	require.NoError(t, err)

	marker, ok := o.SessionMarker()
	require.True(t, ok)

	now = now.Add(time.Minute)
	_, err = o.VerifyMarker(marker)
	assert.ErrorIs(t, err, token.ErrTokenExpired)
}
