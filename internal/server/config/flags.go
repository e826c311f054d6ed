package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/flagx"
	"github.com/dmitrijs2005/antecipa/internal/timex"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-b string   store backend: postgres, redis or memory
//	-d string   PostgreSQL DSN
//	-r string   Redis address
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-l int      refresh token lifetime, days
//	-g int      pruning grace period, days
//	-k bool     Secure attribute on the refresh-token cookie
//	-v string   log level (debug, info, warn, error)
//	-f string   log format (json, text)
//
// args is filtered through flagx.FilterArgs first so flags owned by other
// loaders (such as -c) do not cause parse errors.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-b", "-d", "-r", "-s", "-t", "-l", "-g", "-k", "-v", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.StoreBackend, "b", config.StoreBackend, "credential store backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenLifetime := fs.Int("l", int(config.RefreshTokenLifetime/timex.Day), "refresh_token_lifetime (in days)")
	gracePeriod := fs.Int("g", int(config.RefreshTokenGracePeriod/timex.Day), "refresh_token_grace_period (in days)")

	fs.BoolVar(&config.SecureCookies, "k", config.SecureCookies, "secure refresh-token cookie")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// only explicitly given duration flags override, so sub-unit values
	// from env or JSON survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "l":
			config.RefreshTokenLifetime = time.Duration(*refreshTokenLifetime) * timex.Day
		case "g":
			config.RefreshTokenGracePeriod = time.Duration(*gracePeriod) * timex.Day
		}
	})
	return nil
}
