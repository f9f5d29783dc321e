package authflow

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vaultcore/pkg/biometric"
	"github.com/dmitrymomot/vaultcore/pkg/kdf"
	"github.com/dmitrymomot/vaultcore/pkg/logger"
	"github.com/dmitrymomot/vaultcore/pkg/password"
	"github.com/dmitrymomot/vaultcore/pkg/recovery"
	"github.com/dmitrymomot/vaultcore/pkg/secrets"
	"github.com/dmitrymomot/vaultcore/pkg/storage"
	"github.com/dmitrymomot/vaultcore/pkg/token"
	"github.com/dmitrymomot/vaultcore/pkg/totp"
)

// TOTPSecretContext is the domain-separation string for the key that seals
// the TOTP secret. Changing it orphans every existing enrollment.
const TOTPSecretContext = "vaultcore/totp-secret"

const (
	signingSecretSize = 32
	biometricPrompt   = "Unlock your vault"
)

// Orchestrator drives one authentication flow. All state is instance state
// behind a single mutex; construct one per composing application.
type Orchestrator struct {
	cfg        Config
	store      storage.Store
	oracle     biometric.Oracle
	engine     *totp.Engine
	clock      func() time.Time
	logger     *slog.Logger
	iterations int

	mu             sync.Mutex
	signingSecret  []byte
	attemptID      string
	attemptCfg     AttemptConfig
	flags          stepFlags
	step           Step
	failedAttempts int
	lastActivity   time.Time
	verifiedPass   string
	authenticated  bool
	graceUntil     time.Time
	sessionMarker  string
	sessionTTL     time.Duration
	resetArmed     bool
	graceTimer     *time.Timer
	sessionTimer   *time.Timer
	onTimeout      func()
	onLockout      func()
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithBiometricOracle wires the platform biometric prompt. Without it, any
// attempt that enables the biometric factor fails that step.
func WithBiometricOracle(o biometric.Oracle) Option {
	return func(or *Orchestrator) { or.oracle = o }
}

// WithTOTPEngine overrides the default TOTP engine.
func WithTOTPEngine(e *totp.Engine) Option {
	return func(or *Orchestrator) {
		if e != nil {
			or.engine = e
		}
	}
}

// WithClock injects the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(or *Orchestrator) {
		if now != nil {
			or.clock = now
		}
	}
}

// WithLogger sets the logger; defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(or *Orchestrator) {
		if l != nil {
			or.logger = l
		}
	}
}

// WithKDFIterations overrides the iteration count used for the stored
// password record and encrypted blobs. Enrollment and verification must
// agree on it.
func WithKDFIterations(n int) Option {
	return func(or *Orchestrator) { or.iterations = n }
}

// WithOnTimeout registers the inactivity-expiry callback. Invoked outside
// the orchestrator's lock.
func WithOnTimeout(fn func()) Option {
	return func(or *Orchestrator) { or.onTimeout = fn }
}

// WithOnLockout registers the lockout callback, the hook the UI uses to
// offer the destructive reset. Invoked outside the orchestrator's lock.
func WithOnLockout(fn func()) Option {
	return func(or *Orchestrator) { or.onLockout = fn }
}

// New creates an Orchestrator. The session-marker signing secret is drawn
// fresh from crypto/rand, so markers never outlive the process.
func New(cfg Config, store storage.Store, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:        cfg.withDefaults(),
		store:      store,
		engine:     totp.New(),
		clock:      time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		iterations: kdf.DefaultIterations,
		step:       StepIdle,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.signingSecret = make([]byte, signingSecretSize)
	if _, err := io.ReadFull(rand.Reader, o.signingSecret); err != nil {
		return nil, err
	}

	return o, nil
}

// EnrollPassword hashes and stores the master password record. Used at
// first-run setup; it refuses to run while locked out.
func (o *Orchestrator) EnrollPassword(ctx context.Context, pw string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.step == StepLocked {
		return ErrLockedOut
	}

	rec, err := password.Hash(pw, password.WithIterations(o.iterations))
	if err != nil {
		return err
	}
	if err := o.store.Set(ctx, storage.KeyPasswordHash, rec.Hash); err != nil {
		return errors.Join(storage.ErrStorageFailure, err)
	}
	if err := o.store.Set(ctx, storage.KeyPasswordSalt, rec.Salt); err != nil {
		return errors.Join(storage.ErrStorageFailure, err)
	}

	o.logger.InfoContext(ctx, "master password enrolled", logger.Component("authflow"))
	return nil
}

// BeginAttempt starts a fresh attempt, snapshotting which factors are
// required. The failure counter deliberately survives into the new attempt.
func (o *Orchestrator) BeginAttempt(ctx context.Context, cfg AttemptConfig) (Step, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.step == StepLocked {
		return StepLocked, ErrLockedOut
	}

	o.attemptID = uuid.New().String()
	o.attemptCfg = cfg
	o.flags = stepFlags{}
	o.verifiedPass = ""
	o.authenticated = false
	o.sessionMarker = ""
	o.resetArmed = false
	o.lastActivity = o.clock()
	o.step = nextStep(o.flags, o.attemptCfg)

	o.logger.InfoContext(ctx, "authentication attempt started",
		logger.Component("authflow"),
		logger.AttemptID(o.attemptID),
		slog.Bool("biometric", cfg.BiometricEnabled),
		slog.Bool("two_factor", cfg.TwoFactorEnabled),
	)
	return o.step, nil
}

// SubmitPassword verifies the master password step.
func (o *Orchestrator) SubmitPassword(ctx context.Context, pw string) (Step, error) {
	o.mu.Lock()
	step, fire, err := o.submitPasswordLocked(ctx, pw)
	o.mu.Unlock()
	if fire != nil {
		fire()
	}
	return step, err
}

func (o *Orchestrator) submitPasswordLocked(ctx context.Context, pw string) (Step, func(), error) {
	if err := o.ensureStep(StepPassword); err != nil {
		return o.step, nil, err
	}

	hash, err := o.store.Get(ctx, storage.KeyPasswordHash)
	if errors.Is(err, storage.ErrNotFound) {
		return o.step, nil, ErrNotEnrolled
	}
	if err != nil {
		// Storage failure degrades to authentication failure, never success.
		return o.recordFailure(ctx, StepPassword, err, nil)
	}
	salt, err := o.store.Get(ctx, storage.KeyPasswordSalt)
	if err != nil {
		return o.recordFailure(ctx, StepPassword, err, nil)
	}

	if !password.Verify(pw, password.Record{Hash: hash, Salt: salt}, password.WithIterations(o.iterations)) {
		return o.recordFailure(ctx, StepPassword, nil, nil)
	}

	o.flags.password = true
	o.verifiedPass = pw
	return o.advance(ctx), nil, nil
}

// SubmitBiometric runs the biometric oracle step.
func (o *Orchestrator) SubmitBiometric(ctx context.Context) (Step, error) {
	o.mu.Lock()
	step, fire, err := o.submitBiometricLocked(ctx)
	o.mu.Unlock()
	if fire != nil {
		fire()
	}
	return step, err
}

func (o *Orchestrator) submitBiometricLocked(ctx context.Context) (Step, func(), error) {
	if err := o.ensureStep(StepBiometric); err != nil {
		return o.step, nil, err
	}

	if o.oracle == nil {
		return o.recordFailure(ctx, StepBiometric, nil, biometric.ErrHardwareUnavailable)
	}

	ok, err := o.oracle.Authenticate(ctx, biometricPrompt)
	if err != nil {
		var specific error
		if errors.Is(err, biometric.ErrHardwareUnavailable) || errors.Is(err, biometric.ErrUserCancelled) {
			specific = err
		}
		return o.recordFailure(ctx, StepBiometric, err, specific)
	}
	if !ok {
		return o.recordFailure(ctx, StepBiometric, nil, nil)
	}

	o.flags.biometric = true
	return o.advance(ctx), nil, nil
}

// SubmitTwoFactor verifies a TOTP code or a recovery code. Consuming a
// recovery code persists the reduced batch.
func (o *Orchestrator) SubmitTwoFactor(ctx context.Context, code string) (Step, error) {
	o.mu.Lock()
	step, fire, err := o.submitTwoFactorLocked(ctx, code)
	o.mu.Unlock()
	if fire != nil {
		fire()
	}
	return step, err
}

func (o *Orchestrator) submitTwoFactorLocked(ctx context.Context, code string) (Step, func(), error) {
	if err := o.ensureStep(StepTwoFactor); err != nil {
		return o.step, nil, err
	}

	// Recovery codes may come out all-digit, so the candidate's length
	// decides the route, not its character set.
	code = strings.TrimSpace(code)
	if isNumeric(code) && len(code) == o.engine.Config().Digits {
		return o.verifyTOTPLocked(ctx, code)
	}
	return o.consumeRecoveryLocked(ctx, code)
}

func (o *Orchestrator) verifyTOTPLocked(ctx context.Context, code string) (Step, func(), error) {
	sealed, err := o.store.Get(ctx, storage.KeyTOTPSecret)
	if err != nil {
		return o.recordFailure(ctx, StepTwoFactor, err, nil)
	}

	wrapKey, err := secrets.DeriveWrapKey(o.verifiedPass, o.cfg.DeviceID, TOTPSecretContext)
	if err != nil {
		return o.recordFailure(ctx, StepTwoFactor, err, nil)
	}
	defer kdf.ClearBytes(wrapKey)

	secret, err := secrets.DecryptWithKey(sealed, wrapKey)
	if err != nil {
		return o.recordFailure(ctx, StepTwoFactor, err, nil)
	}
	defer kdf.ClearBytes(secret)

	res, err := o.engine.Verify(code, string(secret))
	if err != nil {
		// Format/validation errors carry their specific cause; they still
		// count against the shared failure budget.
		return o.recordFailure(ctx, StepTwoFactor, err, err)
	}
	if !res.Valid {
		return o.recordFailure(ctx, StepTwoFactor, nil, nil)
	}

	o.flags.twoFactor = true
	return o.advance(ctx), nil, nil
}

func (o *Orchestrator) consumeRecoveryLocked(ctx context.Context, code string) (Step, func(), error) {
	stored, err := o.loadRecoveryLocked(ctx)
	if err != nil {
		return o.recordFailure(ctx, StepTwoFactor, err, nil)
	}

	batch, err := stored.Load(o.verifiedPass, recovery.WithEncryptOptions(secrets.WithIterations(o.iterations)))
	if err != nil {
		return o.recordFailure(ctx, StepTwoFactor, err, nil)
	}

	res, err := recovery.Consume(code, batch, o.verifiedPass,
		recovery.WithEncryptOptions(secrets.WithIterations(o.iterations)))
	if err != nil {
		return o.recordFailure(ctx, StepTwoFactor, err, nil)
	}
	if !res.Found {
		return o.recordFailure(ctx, StepTwoFactor, nil, nil)
	}

	if err := o.persistRecoveryLocked(ctx, res.Updated); err != nil {
		// The code matched but the reduced batch could not be written;
		// failing closed here would let the same code be replayed, so this
		// is treated as a step failure, not a success.
		return o.recordFailure(ctx, StepTwoFactor, err, nil)
	}

	o.logger.InfoContext(ctx, "recovery code consumed",
		logger.Component("authflow"),
		logger.AttemptID(o.attemptID),
		slog.Int("remaining", res.Remaining),
	)

	o.flags.twoFactor = true
	return o.advance(ctx), nil, nil
}

// loadRecoveryLocked resolves the stored recovery-code format once: a JSON
// array is the legacy one-envelope-per-code layout, an object is the batch.
func (o *Orchestrator) loadRecoveryLocked(ctx context.Context) (recovery.Stored, error) {
	raw, err := o.store.Get(ctx, storage.KeyRecoveryCodes)
	if err != nil {
		return recovery.Stored{}, err
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var envs []secrets.Envelope
		if err := json.Unmarshal([]byte(raw), &envs); err != nil {
			return recovery.Stored{}, err
		}
		return recovery.Stored{Legacy: envs}, nil
	}

	var env secrets.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return recovery.Stored{}, err
	}
	return recovery.Stored{Batch: &env}, nil
}

func (o *Orchestrator) persistRecoveryLocked(ctx context.Context, env secrets.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return o.store.Set(ctx, storage.KeyRecoveryCodes, string(data))
}

// advance moves to the first incomplete required step, completing the
// attempt when none remain. Caller holds the lock.
func (o *Orchestrator) advance(ctx context.Context) Step {
	o.step = nextStep(o.flags, o.attemptCfg)
	if o.step == StepDone {
		o.completeLocked(ctx)
	}
	return o.step
}

func (o *Orchestrator) completeLocked(ctx context.Context) {
	now := o.clock()
	o.authenticated = true
	o.verifiedPass = ""
	o.lastActivity = now
	if !o.cfg.RetainCounterOnSuccess {
		o.failedAttempts = 0
	}

	marker := token.SessionMarker{
		AttemptID: o.attemptID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(o.cfg.GracePeriod).Unix(),
	}
	if minted, err := token.Mint(marker, o.signingSecret); err == nil {
		o.sessionMarker = minted
	} else {
		o.logger.ErrorContext(ctx, "failed to mint session marker",
			logger.Component("authflow"), logger.Error(err))
	}

	o.graceUntil = now.Add(o.cfg.GracePeriod)
	o.startGraceTimerLocked(o.cfg.GracePeriod)

	o.sessionTTL = o.sessionTimeoutLocked(ctx)
	o.startSessionTimerLocked(o.sessionTTL)

	o.logger.InfoContext(ctx, "authentication complete",
		logger.Component("authflow"),
		logger.AttemptID(o.attemptID),
		slog.Duration("session_ttl", o.sessionTTL),
	)
}

// sessionTimeoutLocked prefers the user's stored timeout preference and
// falls back to the configured default on any storage or parse problem.
func (o *Orchestrator) sessionTimeoutLocked(ctx context.Context) time.Duration {
	raw, err := o.store.Get(ctx, storage.KeySessionTimeout)
	if err != nil {
		return o.cfg.SessionTimeout
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds < 1 {
		return o.cfg.SessionTimeout
	}
	return time.Duration(seconds) * time.Second
}

func (o *Orchestrator) ensureStep(step Step) error {
	switch o.step {
	case StepIdle:
		return ErrNoActiveAttempt
	case StepLocked:
		return ErrLockedOut
	case step:
		return nil
	default:
		return ErrUnexpectedStep
	}
}

// recordFailure increments the shared counter and, at the limit, flips into
// the locked state. The returned func (the lockout callback) must be invoked
// after the lock is released.
func (o *Orchestrator) recordFailure(ctx context.Context, step Step, cause, specific error) (Step, func(), error) {
	o.failedAttempts++

	o.logger.WarnContext(ctx, "authentication step failed",
		logger.Component("authflow"),
		logger.AttemptID(o.attemptID),
		logger.Step(step.String()),
		logger.FailedAttempts(o.failedAttempts),
		logger.Error(cause),
	)

	if o.failedAttempts >= o.cfg.MaxFailedAttempts {
		o.step = StepLocked
		o.verifiedPass = ""
		return StepLocked, o.onLockout, ErrLockedOut
	}

	if specific != nil {
		return o.step, nil, errors.Join(ErrAuthenticationFailed, specific)
	}
	return o.step, nil, ErrAuthenticationFailed
}

// CurrentStep reports the step awaiting input.
func (o *Orchestrator) CurrentStep() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// IsAuthenticated reports whether the attempt completed and the session is
// still alive.
func (o *Orchestrator) IsAuthenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.authenticated
}

// FailedAttempts reports the shared failure counter.
func (o *Orchestrator) FailedAttempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failedAttempts
}

// SessionMarker returns the signed "just authenticated" token for the
// session layer, if one is active.
func (o *Orchestrator) SessionMarker() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionMarker, o.sessionMarker != ""
}

// VerifyMarker checks a marker previously issued by this orchestrator.
func (o *Orchestrator) VerifyMarker(marker string) (token.SessionMarker, error) {
	o.mu.Lock()
	secret := o.signingSecret
	now := o.clock()
	o.mu.Unlock()
	return token.Verify(marker, secret, now)
}

// InGracePeriod reports whether the post-authentication grace window is
// still open. Foreground transitions inside it must not re-trigger the flow.
func (o *Orchestrator) InGracePeriod() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clock().Before(o.graceUntil)
}

// RequiresReauth tells the UI whether a foreground transition needs a fresh
// authentication flow.
func (o *Orchestrator) RequiresReauth() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.authenticated {
		return false
	}
	return !o.clock().Before(o.graceUntil)
}

// Touch records activity and restarts the inactivity countdown.
func (o *Orchestrator) Touch() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.authenticated {
		return
	}
	o.lastActivity = o.clock()
	o.startSessionTimerLocked(o.sessionTTL)
}

// Cancel abandons the current attempt or session. The failure counter is
// deliberately preserved: cancelling is not a way around the lockout budget.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopTimersLocked()
	o.flags = stepFlags{}
	o.verifiedPass = ""
	o.authenticated = false
	o.sessionMarker = ""
	o.graceUntil = time.Time{}
	o.resetArmed = false
	if o.step != StepLocked {
		o.step = StepIdle
		o.attemptID = ""
	}
}

// ArmReset is the first half of the destructive-reset double confirmation,
// only reachable from the locked state.
func (o *Orchestrator) ArmReset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step != StepLocked {
		return ErrNotLockedOut
	}
	o.resetArmed = true
	return nil
}

// ConfirmReset is the second half: it wipes every stored credential and
// vault record and returns the orchestrator to idle. Requires a prior
// ArmReset; storage failure aborts the wipe and stays locked.
func (o *Orchestrator) ConfirmReset(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.step != StepLocked {
		return ErrNotLockedOut
	}
	if !o.resetArmed {
		return ErrResetNotArmed
	}

	keys := []string{
		storage.KeyPasswordHash,
		storage.KeyPasswordSalt,
		storage.KeyTOTPSecret,
		storage.KeyRecoveryCodes,
		storage.KeyVaultItems,
	}
	for _, key := range keys {
		if err := o.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return errors.Join(storage.ErrStorageFailure, err)
		}
	}

	o.stopTimersLocked()
	o.failedAttempts = 0
	o.flags = stepFlags{}
	o.verifiedPass = ""
	o.authenticated = false
	o.sessionMarker = ""
	o.graceUntil = time.Time{}
	o.resetArmed = false
	o.step = StepIdle
	o.attemptID = ""

	o.logger.WarnContext(ctx, "vault wiped after lockout", logger.Component("authflow"))
	return nil
}

// startGraceTimerLocked replaces any running grace countdown.
func (o *Orchestrator) startGraceTimerLocked(d time.Duration) {
	if o.graceTimer != nil {
		o.graceTimer.Stop()
	}
	o.graceTimer = time.AfterFunc(d, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.graceUntil = time.Time{}
	})
}

// startSessionTimerLocked replaces any running inactivity countdown.
func (o *Orchestrator) startSessionTimerLocked(d time.Duration) {
	if o.sessionTimer != nil {
		o.sessionTimer.Stop()
	}
	o.sessionTimer = time.AfterFunc(d, o.expireSession)
}

func (o *Orchestrator) stopTimersLocked() {
	if o.graceTimer != nil {
		o.graceTimer.Stop()
		o.graceTimer = nil
	}
	if o.sessionTimer != nil {
		o.sessionTimer.Stop()
		o.sessionTimer = nil
	}
}

// expireSession fires on inactivity: the session drops back to the password
// step and transient state is cleared.
func (o *Orchestrator) expireSession() {
	o.mu.Lock()
	if !o.authenticated {
		o.mu.Unlock()
		return
	}

	o.authenticated = false
	o.flags = stepFlags{}
	o.verifiedPass = ""
	o.sessionMarker = ""
	o.graceUntil = time.Time{}
	o.step = StepPassword
	fire := o.onTimeout
	o.mu.Unlock()

	o.logger.Info("session expired by inactivity", logger.Component("authflow"))
	if fire != nil {
		fire()
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
