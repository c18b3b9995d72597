package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors the environment variables the service has historically
// been driven by.
type envConfig struct {
	DatabaseDSN                  string        `env:"DATABASE_DSN"`
	AccessSecretKey              string        `env:"JWT_SECRET"`
	RefreshSecretKey             string        `env:"JWT_REFRESH_SECRET"`
	ClientSecretKey              string        `env:"CLIENTS_JWT_SECRET"`
	AccessTokenValidityDuration  time.Duration `env:"JWT_EXPIRATION_TIME"`
	RefreshTokenValidityDuration time.Duration `env:"JWT_REFRESH_EXPIRATION_TIME"`
	ClientTokenValidityDuration  time.Duration `env:"CLIENTS_JWT_EXPIRATION_TIME"`
	MaxSessions                  int           `env:"MAX_SESSIONS"`
	LoginAttemptsToBlock         int           `env:"LOGIN_ATTEMPTS_TO_BLOCK"`
	BlockDuration                time.Duration `env:"HOURS_TO_BLOCK"`
	VerifyDuration               time.Duration `env:"HOURS_TO_VERIFY"`
	MaxPasswordValidations       int           `env:"MAXIMUM_PASSWORD_VALIDATIONS"`
}

// parseEnv overlays set environment variables onto the Config. Unset
// variables leave the corresponding field untouched.
func parseEnv(config *Config) {
	e := envConfig{}
	if err := env.Parse(&e); err != nil {
		panic(err)
	}

	if e.DatabaseDSN != "" {
		config.DatabaseDSN = e.DatabaseDSN
	}
	if e.AccessSecretKey != "" {
		config.AccessSecretKey = e.AccessSecretKey
	}
	if e.RefreshSecretKey != "" {
		config.RefreshSecretKey = e.RefreshSecretKey
	}
	if e.ClientSecretKey != "" {
		config.ClientSecretKey = e.ClientSecretKey
	}
	if e.AccessTokenValidityDuration != 0 {
		config.AccessTokenValidityDuration = e.AccessTokenValidityDuration
	}
	if e.RefreshTokenValidityDuration != 0 {
		config.RefreshTokenValidityDuration = e.RefreshTokenValidityDuration
	}
	if e.ClientTokenValidityDuration != 0 {
		config.ClientTokenValidityDuration = e.ClientTokenValidityDuration
	}
	if e.MaxSessions != 0 {
		config.MaxSessions = e.MaxSessions
	}
	if e.LoginAttemptsToBlock != 0 {
		config.LoginAttemptsToBlock = e.LoginAttemptsToBlock
	}
	if e.BlockDuration != 0 {
		config.BlockDuration = e.BlockDuration
	}
	if e.VerifyDuration != 0 {
		config.VerifyDuration = e.VerifyDuration
	}
	if e.MaxPasswordValidations != 0 {
		config.MaxPasswordValidations = e.MaxPasswordValidations
	}
}
