package config

import (
	"encoding/json"
	"os"

	"github.com/dkurenkov/credkeeper/flagx"
	"github.com/dkurenkov/credkeeper/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration for interval fields, which parses both
// string values such as "15m" and integer nanoseconds. After unmarshalling,
// non-zero fields are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN                  string         `json:"database_dsn"`
	AccessSecretKey              string         `json:"access_secret_key"`
	RefreshSecretKey             string         `json:"refresh_secret_key"`
	ClientSecretKey              string         `json:"client_secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ClientTokenValidityDuration  timex.Duration `json:"client_token_validity_duration"`
	MaxSessions                  int            `json:"max_sessions"`
	LoginAttemptsToBlock         int            `json:"login_attempts_to_block"`
	BlockDuration                timex.Duration `json:"block_duration"`
	VerifyDuration               timex.Duration `json:"verify_duration"`
	MaxPasswordValidations       int            `json:"max_password_validations"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. If no file is named, nothing
// is loaded. An unreadable or invalid file panics: a half-applied config is
// worse than a crash at startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.AccessSecretKey != "" {
		config.AccessSecretKey = c.AccessSecretKey
	}
	if c.RefreshSecretKey != "" {
		config.RefreshSecretKey = c.RefreshSecretKey
	}
	if c.ClientSecretKey != "" {
		config.ClientSecretKey = c.ClientSecretKey
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.ClientTokenValidityDuration.Duration != 0 {
		config.ClientTokenValidityDuration = c.ClientTokenValidityDuration.Duration
	}
	if c.MaxSessions != 0 {
		config.MaxSessions = c.MaxSessions
	}
	if c.LoginAttemptsToBlock != 0 {
		config.LoginAttemptsToBlock = c.LoginAttemptsToBlock
	}
	if c.BlockDuration.Duration != 0 {
		config.BlockDuration = c.BlockDuration.Duration
	}
	if c.VerifyDuration.Duration != 0 {
		config.VerifyDuration = c.VerifyDuration.Duration
	}
	if c.MaxPasswordValidations != 0 {
		config.MaxPasswordValidations = c.MaxPasswordValidations
	}
}
