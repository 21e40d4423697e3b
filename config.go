package activation

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix used for environment variables
const EnvPrefix = "activation"

// SMTPConfig holds the outgoing mail server settings
type SMTPConfig struct {
	Host     string `envconfig:"HOST" default:"127.0.0.1"`
	Port     int    `envconfig:"PORT" default:"1025"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	From     string `envconfig:"FROM" default:"no-reply@localhost"`
}

// Config holds activation options
type Config struct {
	BaseURL              string        `envconfig:"BASE_URL" required:"true"`
	SigningKey           string        `envconfig:"SIGNING_KEY" required:"true"`
	TokenTTL             time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	Issuer               string        `envconfig:"ISSUER" default:"go-activation"`
	WelcomeTemplate      string        `envconfig:"WELCOME_TEMPLATE" default:"welcome"`
	EmailUpdatedTemplate string        `envconfig:"EMAIL_UPDATED_TEMPLATE" default:"user-email-updated"`
	Debug                bool          `envconfig:"DEBUG" default:"false"`
	SMTP                 SMTPConfig    `envconfig:"SMTP"`
}

// LoadConfig reads configuration from ACTIVATION_* environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load activation config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required options
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("activation base url must be provided", errors.CategoryBadInput)
	}
	if c.SigningKey == "" {
		return errors.New("activation signing key must be provided", errors.CategoryBadInput)
	}
	return nil
}

// Templates returns the workflow template keys, falling back to defaults
func (c Config) Templates() Templates {
	t := DefaultTemplates()
	if c.WelcomeTemplate != "" {
		t.Welcome = c.WelcomeTemplate
	}
	if c.EmailUpdatedTemplate != "" {
		t.EmailUpdated = c.EmailUpdatedTemplate
	}
	return t
}
