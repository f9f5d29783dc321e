package twofactor

import (
	"sync"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically
)

var (
	cfg  Config
	once sync.Once
)

// Config holds the enrollment knobs. Zero values fall back to the documented
// defaults via withDefaults, so the literal Config{} is usable in tests.
type Config struct {
	// Issuer appears in the authenticator app next to the account name.
	Issuer string `env:"TWOFACTOR_ISSUER" envDefault:"VaultCore"`

	// AccountName identifies the vault in the authenticator app.
	AccountName string `env:"TWOFACTOR_ACCOUNT" envDefault:"vault"`

	// DeviceID participates in the sealing key for the stored TOTP secret.
	// It must match the value the authentication flow is configured with.
	DeviceID string `env:"AUTH_DEVICE_ID" envDefault:"vaultcore-local"`

	// SecretLength is the Base32 length of generated secrets.
	SecretLength int `env:"TWOFACTOR_SECRET_LENGTH" envDefault:"32"`

	// RecoveryCount is the number of recovery codes issued at enrollment.
	RecoveryCount int `env:"TWOFACTOR_RECOVERY_COUNT" envDefault:"8"`

	// QRSize is the pixel size of the generated provisioning QR code.
	QRSize int `env:"TWOFACTOR_QR_SIZE" envDefault:"256"`
}

func (c Config) withDefaults() Config {
	if c.Issuer == "" {
		c.Issuer = "VaultCore"
	}
	if c.AccountName == "" {
		c.AccountName = "vault"
	}
	if c.DeviceID == "" {
		c.DeviceID = "vaultcore-local"
	}
	if c.SecretLength == 0 {
		c.SecretLength = 32
	}
	if c.RecoveryCount == 0 {
		c.RecoveryCount = 8
	}
	if c.QRSize == 0 {
		c.QRSize = 256
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
