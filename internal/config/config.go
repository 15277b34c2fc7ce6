// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

// Package config loads server configuration with layered precedence:
// flag defaults, then an optional YAML file, then explicitly set flags.
// DATABASE_URL from the environment backfills an unset database.url.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full server configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Reset    ResetConfig    `koanf:"reset"`
}

// HTTPConfig configures the JSON API server.
type HTTPConfig struct {
	Addr          string `koanf:"addr"`
	CookieName    string `koanf:"cookie-name"`
	CookieDomain  string `koanf:"cookie-domain"`
	SecureCookies bool   `koanf:"secure-cookies"`
}

// MetricsConfig configures the observability server. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// SMTPConfig configures outgoing mail. An empty host disables delivery and
// reset links are only logged.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// ResetConfig configures the password-reset flow.
type ResetConfig struct {
	BaseURL  string        `koanf:"base-url"`
	TokenTTL time.Duration `koanf:"token-ttl"`
}

// Default flag values.
const (
	DefaultHTTPAddr    = ":4000"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
)

// RegisterFlags declares all configuration flags on fs. Flag names are
// dot-delimited and map one-to-one onto config file keys, so --http.addr
// and the YAML path http.addr name the same setting.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to YAML config file")
	fs.String("http.addr", DefaultHTTPAddr, "API listen address")
	fs.String("http.cookie-name", "", "session cookie name")
	fs.String("http.cookie-domain", "", "session cookie domain (empty = host-only)")
	fs.Bool("http.secure-cookies", false, "mark session cookies Secure")
	fs.String("metrics.addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database.url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	fs.String("log.format", DefaultLogFormat, "log format (json or text)")
	fs.String("log.level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("smtp.host", "", "SMTP host (empty = email delivery disabled)")
	fs.Int("smtp.port", 0, "SMTP port (0 = default submission port)")
	fs.String("smtp.username", "", "SMTP username")
	fs.String("smtp.password", "", "SMTP password")
	fs.String("smtp.from", "", "sender address for outgoing mail")
	fs.String("reset.base-url", "", "frontend origin embedded in reset links")
	fs.Duration("reset.token-ttl", 0, "reset token lifetime (0 = default)")
}

// Load resolves the configuration from fs and the file named by its
// --config flag, if any.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	// posflag skips unchanged flags whose keys the file already set, so
	// explicitly set flags win over the file and defaults fill the rest.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for serving.
func (cfg *Config) Validate() error {
	if cfg.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (set --database.url or DATABASE_URL)")
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", cfg.Log.Format)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.Log.Level)
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.From == "" {
		return oops.Code("CONFIG_INVALID").Errorf("smtp.from is required when smtp.host is set")
	}
	return nil
}
