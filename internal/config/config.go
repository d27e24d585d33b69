// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads server configuration from defaults, an optional YAML
// file, and command-line flags, in increasing order of precedence.
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

	"github.com/gatehouse/gatehouse/internal/auth"
)

// HTTPConfig configures the public HTTP listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// ObservabilityConfig configures the metrics/health listener.
// An empty Addr disables it.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// SessionConfig configures session cookies and lifetime.
type SessionConfig struct {
	CookieName    string        `koanf:"cookie_name"`
	SecureCookies bool          `koanf:"secure_cookies"`
	Lifetime      time.Duration `koanf:"lifetime"`
}

// RedirectConfig configures where clients are sent after auth actions.
type RedirectConfig struct {
	AfterLogin  string `koanf:"after_login"`
	AfterLogout string `koanf:"after_logout"`
}

// Config is the full server configuration.
type Config struct {
	HTTP          HTTPConfig          `koanf:"http"`
	Observability ObservabilityConfig `koanf:"observability"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	Session       SessionConfig       `koanf:"session"`
	Redirect      RedirectConfig      `koanf:"redirect"`
}

// Default returns the configuration defaults. Load overlays file and flag
// values on top of these.
func Default() Config {
	return Config{
		HTTP:          HTTPConfig{Addr: ":8080"},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9100"},
		Log:           LogConfig{Format: "json", Level: "info"},
		Session: SessionConfig{
			CookieName:    auth.DefaultCookieName,
			SecureCookies: true,
			Lifetime:      auth.DefaultSessionLifetime,
		},
		Redirect: RedirectConfig{AfterLogin: "/", AfterLogout: "/"},
	}
}

// Load builds a Config from defaults, then the YAML file at path (if path is
// non-empty), then the given flag set (if non-nil). The DATABASE_URL
// environment variable fills in database.url when nothing else set it.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Session.CookieName == "" {
		return oops.Code("CONFIG_INVALID").Errorf("session.cookie_name is required")
	}
	if c.Session.Lifetime <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.lifetime must be positive")
	}
	return nil
}
