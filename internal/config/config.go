// Package config implements layered configuration: compiled-in defaults,
// overridden by an optional config.json, overridden by a .env file,
// overridden by the process environment, overridden last by command-line
// flags. One JSON-tagged struct, a package-level default, and a
// flag-based CLI rather than a third-party CLI framework.
package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/adatrace/ada-trace/pkg/log"
)

// Config is the full runtime configuration for both the capture daemon
// and the query-engine.
type Config struct {
	// StateDir holds the per-user sidecar session files and the
	// session registry database. Defaults to ~/.ada if empty.
	StateDir string `json:"state_dir"`

	LogLevel string `json:"loglevel"`
	LogDate  bool   `json:"logdate"`

	// ListenAddr is the query-engine HTTP server's bind address.
	ListenAddr string `json:"listen_addr"`

	// NatsURL, if set, enables out-of-band stop signaling for
	// companion recorders via internal/signalbus.
	NatsURL string `json:"nats_url"`

	RateLimitPerSec float64 `json:"rate_limit_per_sec"`
	RateLimitBurst  int     `json:"rate_limit_burst"`
	CacheCapacity   int     `json:"cache_capacity"`

	// JWTSecret, if non-empty, requires a bearer token on /rpc.
	JWTSecret string `json:"jwt_secret"`

	// User/Group to drop privileges to after the listener is bound.
	User  string `json:"user"`
	Group string `json:"group"`
}

// Default returns the compiled-in configuration, the lowest-precedence
// layer.
func Default() Config {
	return Config{
		LogLevel:        "warn",
		ListenAddr:      "127.0.0.1:9411",
		RateLimitPerSec: 20,
		RateLimitBurst:  40,
		CacheCapacity:   256,
	}
}

// Load builds the final configuration: defaults, then configPath (if it
// exists), then a .env file (if present) layered over the process
// environment, then environment variable overrides. Command-line flags
// are applied separately by the caller after Load returns, since flag
// sets differ between the capture and query-engine binaries.
func Load(configPath, envPath string) Config {
	cfg := Default()

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Fatalf("config: reading %s: %v", configPath, err)
			}
		} else {
			Validate(Schema, raw)
			dec := json.NewDecoder(strings.NewReader(string(raw)))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&cfg); err != nil {
				log.Fatalf("config: parsing %s: %v", configPath, err)
			}
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			log.Fatalf("config: loading %s: %v", envPath, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ADA_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("ADA_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ADA_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ADA_NATS_URL"); v != "" {
		cfg.NatsURL = v
	}
	if v := os.Getenv("ADA_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
}

// RegisterFlags binds cfg's overridable fields to fs, the highest
// precedence layer. Call after Load so each flag's default value
// reflects what defaults/file/env already produced.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "Directory for sidecar session files and the registry database")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Logging level: debug, info, warn, err, crit")
	fs.BoolVar(&cfg.LogDate, "logdate", cfg.LogDate, "Add date and time to log messages")
	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "Query-engine HTTP listen address")
	fs.StringVar(&cfg.NatsURL, "nats-url", cfg.NatsURL, "Optional NATS server address for out-of-band stop signaling")
}
