// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

// Package config loads the guideli process configuration.
//
// Values are layered, later sources overriding earlier ones: built-in
// defaults, an optional YAML file, GUIDELI_ environment variables and
// explicitly set command-line flags. Nested keys are separated by "." in
// YAML and by "__" in environment variables, so GUIDELI_JWT__SECRET sets
// jwt.secret. The configuration is read once at startup and not reloaded.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/guideli/guideli/internal/auth"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "GUIDELI_"

// Default values.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultJWTExpiry   = 24 * time.Hour
	DefaultJWTIssuer   = "guideli"
	DefaultNATSSubject = "guideli.notifications"
)

// Config is the complete process configuration.
type Config struct {
	HTTPAddr       string        `koanf:"http_addr"`
	MetricsAddr    string        `koanf:"metrics_addr"`
	DatabaseURL    string        `koanf:"database_url"`
	LogFormat      string        `koanf:"log_format"`
	ClientURL      string        `koanf:"client_url"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	JWT            JWTConfig     `koanf:"jwt"`
	Seed           auth.SeedData `koanf:"seed"`
	OAuth          OAuthConfig   `koanf:"oauth"`
	NATS           NATSConfig    `koanf:"nats"`
}

// JWTConfig configures bearer token signing.
type JWTConfig struct {
	Secret string        `koanf:"secret"`
	Expiry time.Duration `koanf:"expiry"`
	Issuer string        `koanf:"issuer"`
}

// OAuthConfig holds the federated login providers.
type OAuthConfig struct {
	Google GoogleConfig `koanf:"google"`
}

// GoogleConfig configures Google login. The provider is disabled when
// ClientID is empty.
type GoogleConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
}

// Enabled reports whether Google login is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != ""
}

// NATSConfig configures the NATS notification sender. Notifications are
// logged instead when URL is empty.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

func defaults() map[string]any {
	return map[string]any{
		"http_addr":    DefaultHTTPAddr,
		"metrics_addr": DefaultMetricsAddr,
		"log_format":   DefaultLogFormat,
		"jwt.expiry":   DefaultJWTExpiry.String(),
		"jwt.issuer":   DefaultJWTIssuer,
		"nats.subject": DefaultNATSSubject,
	}
}

// BindFlags registers the flags Load reads on fs. Flag names use "-" where
// keys use "_", so --http-addr sets http_addr.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "HTTP API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("database-url", "", "PostgreSQL connection URL")
}

// Load builds the configuration. path may be empty to skip the YAML file;
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if len(cfg.Seed.Roles) == 0 {
		cfg.Seed.Roles = auth.DefaultRoles()
	}
	return &cfg, nil
}

// envValue maps GUIDELI_JWT__SECRET to jwt.secret. allowed_origins is a
// comma separated list.
func envValue(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "allowed_origins" {
		return key, splitList(value)
	}
	return key, value
}

// flagValue maps --http-addr to http_addr.
func flagValue(f *pflag.Flag) (string, any) {
	return strings.ReplaceAll(f.Name, "-", "_"), f.Value.String()
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateDatabase checks the keys needed to reach the database.
func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database_url").
			Errorf("database_url is required")
	}
	return nil
}

// Validate checks every key the serve command depends on.
func (c *Config) Validate() error {
	var problems []error
	if c.DatabaseURL == "" {
		problems = append(problems, errors.New("database_url is required"))
	}
	if c.HTTPAddr == "" {
		problems = append(problems, errors.New("http_addr is required"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		problems = append(problems, fmt.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat))
	}
	if len(c.JWT.Secret) < auth.MinSigningKeyLength {
		problems = append(problems, fmt.Errorf("jwt.secret must be at least %d bytes", auth.MinSigningKeyLength))
	}
	if c.JWT.Expiry <= 0 {
		problems = append(problems, fmt.Errorf("jwt.expiry must be positive, got %s", c.JWT.Expiry))
	}
	if g := c.OAuth.Google; g.Enabled() && (g.ClientSecret == "" || g.RedirectURL == "") {
		problems = append(problems, errors.New("oauth.google requires client_secret and redirect_url"))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		problems = append(problems, errors.New("nats.subject is required when nats.url is set"))
	}
	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", len(problems)).
			Wrap(errors.Join(problems...))
	}
	return nil
}
