package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Secrets are the operator-supplied credentials. They only come from the
// environment, optionally pre-populated from a dotenv file.
type Secrets struct {
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	// StorePath overrides store.path from the config file.
	StorePath string `env:"CATFACTS_STORE_PATH"`
}

// LoadSecrets parses Secrets from the environment. When envFile is set it is
// loaded first; variables already present in the environment win.
func LoadSecrets(envFile string) (Secrets, error) {
	var s Secrets
	if envFile != "" {
		if _, err := os.Stat(envFile); err != nil {
			return s, fmt.Errorf("env file %s: %w", envFile, err)
		}
		if err := godotenv.Load(envFile); err != nil {
			return s, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// Apply copies the secrets into the configuration.
func (s Secrets) Apply(c *Config) {
	c.Mail.Username = s.SMTPUsername
	c.Mail.Password = s.SMTPPassword
	if s.StorePath != "" {
		c.Store.Path = s.StorePath
	}
}
