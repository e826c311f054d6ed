package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/flagx"
	"github.com/dmitrijs2005/antecipa/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Pointer fields
// distinguish "absent" from a zero value, so a partial file only overrides
// the keys it names. Durations use timex.Duration ("15m", "7d" or integer
// nanoseconds).
type JsonConfig struct {
	EndpointAddrHTTP            *string         `json:"endpoint_addr_http"`
	StoreBackend                *string         `json:"store_backend"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	RedisAddr                   *string         `json:"redis_addr"`
	RedisPassword               *string         `json:"redis_password"`
	RedisDB                     *int            `json:"redis_db"`
	RedisKeyPrefix              *string         `json:"redis_key_prefix"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenLifetime        *timex.Duration `json:"refresh_token_lifetime"`
	RefreshTokenGracePeriod     *timex.Duration `json:"refresh_token_grace_period"`
	MaxChainHops                *int            `json:"max_chain_hops"`
	MaxPersistAttempts          *int            `json:"max_persist_attempts"`
	SecureCookies               *bool           `json:"secure_cookies"`
	RateLimitPerSecond          *float64        `json:"rate_limit_per_second"`
	RateLimitBurst              *int            `json:"rate_limit_burst"`
	LogLevel                    *string         `json:"log_level"`
	LogFormat                   *string         `json:"log_format"`
}

// parseJson loads the file named by -c/-config in args, if any, and copies
// every present key into config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}

	set(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	set(&config.StoreBackend, c.StoreBackend)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.RedisAddr, c.RedisAddr)
	set(&config.RedisPassword, c.RedisPassword)
	set(&config.RedisDB, c.RedisDB)
	set(&config.RedisKeyPrefix, c.RedisKeyPrefix)
	set(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenLifetime, c.RefreshTokenLifetime)
	setDuration(&config.RefreshTokenGracePeriod, c.RefreshTokenGracePeriod)
	set(&config.MaxChainHops, c.MaxChainHops)
	set(&config.MaxPersistAttempts, c.MaxPersistAttempts)
	set(&config.SecureCookies, c.SecureCookies)
	set(&config.RateLimitPerSecond, c.RateLimitPerSecond)
	set(&config.RateLimitBurst, c.RateLimitBurst)
	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFormat, c.LogFormat)

	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
