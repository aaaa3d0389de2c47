package config

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrMissingDatabaseURL = errors.New("config validation error: DATABASE_URL is required")
	ErrMissingRedisURL    = errors.New("config validation error: REDIS_URL is required")
	ErrInvalidPort        = errors.New("config validation error: PORT must be between 1 and 65535")
	ErrInvalidAPIPrefix   = errors.New("config validation error: API_V1_STR must start with '/'")
	ErrInvalidPoolSize    = errors.New("config validation error: DB_POOL_SIZE must be positive and DB_MAX_OVERFLOW non-negative")
	ErrInvalidTimeout     = errors.New("config validation error: timeouts must be positive")
	ErrInvalidMaxLogSize  = errors.New("config validation error: MAX_LOG_SIZE must be positive")
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.RedisURL == "" {
		return ErrMissingRedisURL
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if len(c.APIPrefix) == 0 || c.APIPrefix[0] != '/' {
		return ErrInvalidAPIPrefix
	}
	if c.DBPoolSize <= 0 || c.DBMaxOverflow < 0 {
		return ErrInvalidPoolSize
	}
	if c.OutboundHTTPTimeoutSeconds <= 0 || c.MCP.HTTPTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxLogSize <= 0 {
		return ErrInvalidMaxLogSize
	}
	for _, proxy := range c.Proxies {
		if _, err := url.Parse(proxy); err != nil {
			return fmt.Errorf("config validation error: invalid proxy %q: %w", proxy, err)
		}
	}
	return nil
}
