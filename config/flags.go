package config

import (
	"flag"
	"os"
	"time"

	"github.com/dkurenkov/credkeeper/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-s string   access-token HMAC secret
//	-q string   refresh-token HMAC secret
//	-k string   client-token HMAC secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-m int      max concurrent refresh sessions per user
//	-l int      failed login attempts before lockout
//	-b int      lockout duration, hours
//	-v int      verification-code validity, hours
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-s", "-q", "-k", "-t", "-r", "-m", "-l", "-b", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessSecretKey, "s", config.AccessSecretKey, "access token secret key")
	fs.StringVar(&config.RefreshSecretKey, "q", config.RefreshSecretKey, "refresh token secret key")
	fs.StringVar(&config.ClientSecretKey, "k", config.ClientSecretKey, "client token secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.IntVar(&config.MaxSessions, "m", config.MaxSessions, "max refresh sessions per user")
	fs.IntVar(&config.LoginAttemptsToBlock, "l", config.LoginAttemptsToBlock, "failed login attempts before lockout")

	blockDuration := fs.Int("b", int(config.BlockDuration.Hours()), "lockout duration (in hours)")
	verifyDuration := fs.Int("v", int(config.VerifyDuration.Hours()), "verification code validity (in hours)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.BlockDuration = time.Duration(*blockDuration) * time.Hour
	config.VerifyDuration = time.Duration(*verifyDuration) * time.Hour
}
