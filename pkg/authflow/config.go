package authflow

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically
)

var (
	cfg  Config
	once sync.Once
)

// Config holds the flow-level knobs. Zero values fall back to the documented
// defaults via withDefaults, so the literal Config{} is usable in tests.
type Config struct {
	// GracePeriod suppresses re-authentication on foreground transitions
	// right after a successful unlock.
	GracePeriod time.Duration `env:"AUTH_GRACE_PERIOD" envDefault:"5s"`

	// SessionTimeout is the inactivity window before the session drops back
	// to the password step. A stored user preference overrides it at unlock.
	SessionTimeout time.Duration `env:"AUTH_SESSION_TIMEOUT" envDefault:"300s"`

	// MaxFailedAttempts is the shared failure budget across all steps before
	// the lockout branch triggers.
	MaxFailedAttempts int `env:"AUTH_MAX_FAILED_ATTEMPTS" envDefault:"5"`

	// RetainCounterOnSuccess keeps the failure counter across a full
	// authentication instead of clearing it. The historical behavior of this
	// vault never cleared the counter except on process restart; set true to
	// preserve that. Default is to clear on success.
	RetainCounterOnSuccess bool `env:"AUTH_RETAIN_FAIL_COUNTER" envDefault:"false"`

	// DeviceID participates in the key that seals the TOTP secret, binding
	// the enrollment to this installation.
	DeviceID string `env:"AUTH_DEVICE_ID" envDefault:"vaultcore-local"`
}

func (c Config) withDefaults() Config {
	if c.GracePeriod == 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 300 * time.Second
	}
	if c.MaxFailedAttempts == 0 {
		c.MaxFailedAttempts = 5
	}
	if c.DeviceID == "" {
		c.DeviceID = "vaultcore-local"
	}
	return c
}

// LoadConfig parses the environment once and caches the result for the
// process lifetime.
func LoadConfig() (Config, error) {
	var err error
	once.Do(func() {
		err = env.Parse(&cfg)
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
