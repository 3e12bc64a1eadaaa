package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Runtime holds the settings that can be overridden from the environment.
// Zero values leave the scene's own settings in place.
type Runtime struct {
	TimeScale float64       `env:"CONTACTSIM_TIME_SCALE"`
	FixedStep time.Duration `env:"CONTACTSIM_FIXED_STEP"`
	Steps     int           `env:"CONTACTSIM_STEPS"`
	Journal   string        `env:"CONTACTSIM_JOURNAL"`
	Script    string        `env:"CONTACTSIM_SCRIPT"`

	OTelEndpoint string `env:"CONTACTSIM_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"CONTACTSIM_OTEL_ENABLED" envDefault:"true"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"development"`
}

// LoadRuntime reads Runtime from the environment and checks its ranges.
func LoadRuntime() (Runtime, error) {
	var cfg Runtime
	if err := ParseEnv(&cfg); err != nil {
		return Runtime{}, err
	}
	if cfg.TimeScale < 0 {
		return Runtime{}, fmt.Errorf("CONTACTSIM_TIME_SCALE must not be negative, got %v", cfg.TimeScale)
	}
	if cfg.FixedStep < 0 {
		return Runtime{}, fmt.Errorf("CONTACTSIM_FIXED_STEP must not be negative, got %v", cfg.FixedStep)
	}
	if cfg.Steps < 0 {
		return Runtime{}, fmt.Errorf("CONTACTSIM_STEPS must not be negative, got %d", cfg.Steps)
	}
	return cfg, nil
}
