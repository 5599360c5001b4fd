package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds settings read from the process environment. Command-line flags
// take precedence over these.
type Env struct {
	DBPath   string `env:"ARMGUARD_DB" envDefault:"armguard.db"`
	Profile  string `env:"ARMGUARD_PROFILE"`
	LogLevel string `env:"ARMGUARD_LOG_LEVEL" envDefault:"info"`
	Session  string `env:"ARMGUARD_SESSION"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv returns the armguard environment settings.
func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}
