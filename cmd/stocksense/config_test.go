// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stocksense/stocksense/internal/auth"
	"github.com/stocksense/stocksense/pkg/errutil"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addServeFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig("", newFlags(t), env(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), *cfg)
	assert.Equal(t, auth.DefaultLimits(), cfg.Limits())
	assert.Zero(t, cfg.JanitorInterval, "janitor is opt-in")
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store: memory
http:
  listen_addr: ":9090"
  cors_origins: ["https://app.stocksense.example"]
log:
  level: debug
rate_limit:
  backend: memory
  signin:
    max_attempts: 3
    window: 1m
janitor_interval: 30s
`)

	cfg, err := loadConfig(path, newFlags(t), env(nil))
	require.NoError(t, err)
	assert.Equal(t, backendMemory, cfg.Store)
	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, []string{"https://app.stocksense.example"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "unset keys keep defaults")
	assert.Equal(t, LimitConfig{MaxAttempts: 3, Window: time.Minute}, cfg.RateLimit.Signin)
	assert.Equal(t, LimitConfig{MaxAttempts: 5, Window: time.Hour}, cfg.RateLimit.Signup)
	assert.Equal(t, 30*time.Second, cfg.JanitorInterval)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "store: postgres\nhttp:\n  listen_addr: \":9090\"\n")

	cfg, err := loadConfig(path, newFlags(t, "--store=memory", "--rate-limit-backend=redis", "--cors-origin=a,b"), env(nil))
	require.NoError(t, err)
	assert.Equal(t, backendMemory, cfg.Store)
	assert.Equal(t, backendRedis, cfg.RateLimit.Backend)
	assert.Equal(t, []string{"a", "b"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr, "unchanged flags don't override the file")
}

func TestLoadConfig_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig("", nil, env(map[string]string{
		envDatabaseURL:      "postgres://db",
		envLegacyHashSecret: "service-role-key",
		envRedisURL:         "redis://cache",
	}))
	require.NoError(t, err)
	assert.Equal(t, Secrets{
		DatabaseURL:      "postgres://db",
		LegacyHashSecret: "service-role-key",
		RedisURL:         "redis://cache",
	}, cfg.Secrets)
}

func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil, env(nil))
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoadConfig_InvalidYAMLFails(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "store: [unterminated"), nil, env(nil))
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Secrets.DatabaseURL = "postgres://db"
		return &cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults with database", func(*Config) {}, ""},
		{"memory everything", func(c *Config) {
			c.Store, c.RateLimit.Backend, c.Secrets.DatabaseURL = backendMemory, backendMemory, ""
		}, ""},
		{"redis with url", func(c *Config) {
			c.RateLimit.Backend, c.Secrets.RedisURL = backendRedis, "redis://cache"
		}, ""},
		{"postgres without url", func(c *Config) { c.Secrets.DatabaseURL = "" }, "store"},
		{"unknown store", func(c *Config) { c.Store = "sqlite" }, "store"},
		{"postgres counters on memory store", func(c *Config) { c.Store = backendMemory }, "rate_limit.backend"},
		{"redis without url", func(c *Config) { c.RateLimit.Backend = backendRedis }, "rate_limit.backend"},
		{"unknown backend", func(c *Config) { c.RateLimit.Backend = "etcd" }, "rate_limit.backend"},
		{"empty listen addr", func(c *Config) { c.HTTP.ListenAddr = "" }, "http.listen_addr"},
		{"zero timeout", func(c *Config) { c.HTTP.RequestTimeout = 0 }, "http.request_timeout"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative janitor interval", func(c *Config) { c.JanitorInterval = -time.Second }, "janitor_interval"},
		{"negative max conns", func(c *Config) { c.Database.MaxConns = -1 }, "database.max_conns"},
		{"zero attempts", func(c *Config) { c.RateLimit.Signin.MaxAttempts = 0 }, "rate_limit.signin"},
		{"zero window", func(c *Config) { c.RateLimit.Signup.Window = 0 }, "rate_limit.signup"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := defaultConfig()
	cfg.Secrets = Secrets{DatabaseURL: "postgres://user:pw@db", LegacyHashSecret: "s3cret"}

	out := cfg.Redacted()
	assert.Equal(t, redactedValue, out.Secrets.DatabaseURL)
	assert.Equal(t, redactedValue, out.Secrets.LegacyHashSecret)
	assert.Empty(t, out.Secrets.RedisURL)
	assert.Equal(t, "postgres://user:pw@db", cfg.Secrets.DatabaseURL, "original is untouched")
}

func TestConfigCommand_PrintsRedactedYAML(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(envDatabaseURL, "postgres://user:pw@db/stocksense")
	configFile = ""

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"config", "--listen-addr=:7070"})
	require.NoError(t, cmd.Execute())

	assert.NotContains(t, out.String(), "user:pw")

	var printed map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, ":7070", printed["http"].(map[string]any)["listen_addr"])
	assert.Equal(t, redactedValue, printed["secrets"].(map[string]any)["database_url"])
	assert.Equal(t, "0s", printed["janitor_interval"])
}
