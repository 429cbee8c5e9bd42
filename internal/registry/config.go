// Package registry mirrors the per-user JSON sidecar session state (see
// internal/state) into a small embedded sqlite database, giving the
// query-engine RPC surface a queryable index of past sessions without
// having to walk ~/.ada/sessions on every request.
package registry

import "time"

// Config holds registry-database tuning knobs. All fields have sensible
// defaults, so configuration is optional.
type Config struct {
	MaxOpenConnections    int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
	ConnectionMaxIdleTime time.Duration
}

// DefaultConfig returns tuning defaults appropriate for a single local
// sqlite file backing one query-engine process.
func DefaultConfig() *Config {
	return &Config{
		MaxOpenConnections:    1, // sqlite does not multithread writers
		MaxIdleConnections:    1,
		ConnectionMaxLifetime: time.Hour,
		ConnectionMaxIdleTime: time.Hour,
	}
}

var cfg = DefaultConfig()

// SetConfig overrides the package-level configuration. Must be called
// before Connect.
func SetConfig(c *Config) {
	if c != nil {
		cfg = c
	}
}

// GetConfig returns the current configuration.
func GetConfig() *Config { return cfg }
