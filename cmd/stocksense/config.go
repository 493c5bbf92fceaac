// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/stocksense/stocksense/internal/auth"
	"github.com/stocksense/stocksense/internal/logging"
	"github.com/stocksense/stocksense/internal/xdg"
)

// Backend names.
const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
	backendRedis    = "redis"
)

// Environment variables carrying secrets.
const (
	envDatabaseURL      = "DATABASE_URL"
	envLegacyHashSecret = "LEGACY_HASH_SECRET"
	envRedisURL         = "REDIS_URL"
)

const redactedValue = "[REDACTED]"

// LimitConfig is the fixed-window limit for one action.
type LimitConfig struct {
	MaxAttempts int           `koanf:"max_attempts" yaml:"max_attempts"`
	Window      time.Duration `koanf:"window" yaml:"window"`
}

// HTTPConfig configures the auth endpoint listener.
type HTTPConfig struct {
	ListenAddr     string        `koanf:"listen_addr" yaml:"listen_addr"`
	CORSOrigins    []string      `koanf:"cors_origins" yaml:"cors_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// RateLimitConfig selects the counter backend and per-action limits.
type RateLimitConfig struct {
	Backend string      `koanf:"backend" yaml:"backend"`
	Signin  LimitConfig `koanf:"signin" yaml:"signin"`
	Signup  LimitConfig `koanf:"signup" yaml:"signup"`
}

// DatabaseConfig tunes the Postgres pool.
type DatabaseConfig struct {
	MaxConns    int32 `koanf:"max_conns" yaml:"max_conns"`
	AutoMigrate bool  `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// Secrets are read from the environment only.
type Secrets struct {
	DatabaseURL      string `koanf:"-" yaml:"database_url"`
	LegacyHashSecret string `koanf:"-" yaml:"legacy_hash_secret"`
	RedisURL         string `koanf:"-" yaml:"redis_url"`
}

// Config is the effective server configuration.
type Config struct {
	Store           string          `koanf:"store" yaml:"store"`
	HTTP            HTTPConfig      `koanf:"http" yaml:"http"`
	MetricsAddr     string          `koanf:"metrics_addr" yaml:"metrics_addr"`
	Log             LogConfig       `koanf:"log" yaml:"log"`
	RateLimit       RateLimitConfig `koanf:"rate_limit" yaml:"rate_limit"`
	Database        DatabaseConfig  `koanf:"database" yaml:"database"`
	JanitorInterval time.Duration   `koanf:"janitor_interval" yaml:"janitor_interval"`
	Secrets         Secrets         `koanf:"-" yaml:"secrets"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"store":              "store",
	"listen-addr":        "http.listen_addr",
	"cors-origin":        "http.cors_origins",
	"request-timeout":    "http.request_timeout",
	"metrics-addr":       "metrics_addr",
	"log-format":         "log.format",
	"log-level":          "log.level",
	"rate-limit-backend": "rate_limit.backend",
	"db-max-conns":       "database.max_conns",
	"auto-migrate":       "database.auto_migrate",
	"janitor-interval":   "janitor_interval",
}

// defaultConfig returns the compiled-in defaults.
func defaultConfig() Config {
	limits := auth.DefaultLimits()
	return Config{
		Store: backendPostgres,
		HTTP: HTTPConfig{
			ListenAddr:     ":8080",
			CORSOrigins:    []string{"*"},
			RequestTimeout: 10 * time.Second,
		},
		MetricsAddr: "127.0.0.1:9100",
		Log:         LogConfig{Format: "json", Level: "info"},
		RateLimit: RateLimitConfig{
			Backend: backendPostgres,
			Signin:  LimitConfig(limits[auth.ActionSignin]),
			Signup:  LimitConfig(limits[auth.ActionSignup]),
		},
	}
}

// addServeFlags registers the flags that override config keys. Flag
// defaults mirror defaultConfig so --help is accurate.
func addServeFlags(flags *pflag.FlagSet) {
	d := defaultConfig()
	flags.String("store", d.Store, "account and session store (postgres or memory)")
	flags.String("listen-addr", d.HTTP.ListenAddr, "auth endpoint listen address")
	flags.StringSlice("cors-origin", d.HTTP.CORSOrigins, "allowed CORS origins (* for any)")
	flags.Duration("request-timeout", d.HTTP.RequestTimeout, "per-request timeout")
	flags.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("rate-limit-backend", d.RateLimit.Backend, "rate limit counter store (postgres, redis or memory)")
	flags.Int32("db-max-conns", d.Database.MaxConns, "maximum Postgres connections (0 = driver default)")
	flags.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations before serving")
	flags.Duration("janitor-interval", d.JanitorInterval, "how often expired sessions are purged (0 disables)")
}

// loadConfig layers defaults, the YAML file and changed flags. An explicit
// path must exist; the XDG default is read only when present.
func loadConfig(path string, flags *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.Secrets = Secrets{
		DatabaseURL:      getenv(envDatabaseURL),
		LegacyHashSecret: getenv(envLegacyHashSecret),
		RedisURL:         getenv(envRedisURL),
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	switch c.Store {
	case backendMemory:
	case backendPostgres:
		if c.Secrets.DatabaseURL == "" {
			return invalid("store", "%s environment variable is required for the postgres store", envDatabaseURL)
		}
	default:
		return invalid("store", "store must be 'postgres' or 'memory', got %q", c.Store)
	}

	switch c.RateLimit.Backend {
	case backendMemory:
	case backendPostgres:
		if c.Store != backendPostgres {
			return invalid("rate_limit.backend", "the postgres rate limit backend requires the postgres store")
		}
	case backendRedis:
		if c.Secrets.RedisURL == "" {
			return invalid("rate_limit.backend", "%s environment variable is required for the redis backend", envRedisURL)
		}
	default:
		return invalid("rate_limit.backend", "rate_limit.backend must be 'postgres', 'redis' or 'memory', got %q", c.RateLimit.Backend)
	}

	if c.HTTP.ListenAddr == "" {
		return invalid("http.listen_addr", "http.listen_addr is required")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return invalid("http.request_timeout", "http.request_timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level %q is not a level", c.Log.Level)
	}
	if c.JanitorInterval < 0 {
		return invalid("janitor_interval", "janitor_interval cannot be negative")
	}
	if c.Database.MaxConns < 0 {
		return invalid("database.max_conns", "database.max_conns cannot be negative")
	}
	for name, l := range map[string]LimitConfig{"signin": c.RateLimit.Signin, "signup": c.RateLimit.Signup} {
		if l.MaxAttempts < 1 || l.Window <= 0 {
			return invalid("rate_limit."+name, "rate_limit.%s needs max_attempts >= 1 and a positive window", name)
		}
	}
	return nil
}

// Limits returns the per-action limits for the rate limiter.
func (c *Config) Limits() map[auth.Action]auth.Limit {
	return map[auth.Action]auth.Limit{
		auth.ActionSignin: auth.Limit(c.RateLimit.Signin),
		auth.ActionSignup: auth.Limit(c.RateLimit.Signup),
	}
}

// Redacted returns a copy safe to print: secrets that are set are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.HTTP.CORSOrigins = append([]string(nil), c.HTTP.CORSOrigins...)
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redactedValue
	}
	out.Secrets = Secrets{
		DatabaseURL:      mask(c.Secrets.DatabaseURL),
		LegacyHashSecret: mask(c.Secrets.LegacyHashSecret),
		RedisURL:         mask(c.Secrets.RedisURL),
	}
	return out
}
