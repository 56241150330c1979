package passkey

import (
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultRPDisplayName = "Menagerie"

// Config controls WebAuthn relying party settings.
//
// RPID must match the serving domain and RPOrigins the exact
// scheme+host+port ceremonies are served from; an origin mismatch fails
// verification closed.
type Config struct {
	RPDisplayName    string        `env:"MENAGERIE_WEBAUTHN_RP_DISPLAY_NAME"`
	RPID             string        `env:"MENAGERIE_WEBAUTHN_RP_ID"              envDefault:"localhost"`
	RPOrigins        []string      `env:"MENAGERIE_WEBAUTHN_RP_ORIGINS"         envSeparator:","`
	ChallengeTTL     time.Duration `env:"MENAGERIE_WEBAUTHN_CHALLENGE_TTL"      envDefault:"5m"`
	StrictCloneCheck bool          `env:"MENAGERIE_WEBAUTHN_STRICT_CLONE_CHECK" envDefault:"false"`
}

// LoadConfigFromEnv returns passkey configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{
			RPDisplayName: defaultRPDisplayName,
			RPID:          "localhost",
			RPOrigins:     []string{"http://localhost:8087"},
			ChallengeTTL:  5 * time.Minute,
		}
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = defaultRPDisplayName
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:8087"}
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	return cfg
}
