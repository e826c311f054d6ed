package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/timex"
)

// parseEnv overlays every variable that is set. Durations accept the
// timex.ParseDuration forms ("15m", "7d").
func parseEnv(c *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"HTTP_ADDR":        &c.EndpointAddrHTTP,
		"STORE_BACKEND":    &c.StoreBackend,
		"DATABASE_DSN":     &c.DatabaseDSN,
		"REDIS_ADDR":       &c.RedisAddr,
		"REDIS_PASSWORD":   &c.RedisPassword,
		"REDIS_KEY_PREFIX": &c.RedisKeyPrefix,
		"JWT_SECRET":       &c.SecretKey,
		"LOG_LEVEL":        &c.LogLevel,
		"LOG_FORMAT":       &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"REDIS_DB":             &c.RedisDB,
		"MAX_CHAIN_HOPS":       &c.MaxChainHops,
		"MAX_PERSIST_ATTEMPTS": &c.MaxPersistAttempts,
		"RATE_LIMIT_BURST":     &c.RateLimitBurst,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":           &c.AccessTokenValidityDuration,
		"REFRESH_TOKEN_LIFETIME":     &c.RefreshTokenLifetime,
		"REFRESH_TOKEN_GRACE_PERIOD": &c.RefreshTokenGracePeriod,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := timex.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("SECURE_COOKIES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean value for SECURE_COOKIES: %w", err)
		}
		c.SecureCookies = b
	}

	if v, ok := lookup("RATE_LIMIT_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimitPerSecond = f
	}

	return nil
}
