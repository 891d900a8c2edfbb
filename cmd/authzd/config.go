package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-authz"
	gconfig "github.com/goliatone/go-config/config"
)

// settings is loaded from struct defaults, then config/app.json, then
// AUTHZ_* environment variables
type settings struct {
	Addr        string         `koanf:"addr" json:"addr"`
	LogLevel    string         `koanf:"log_level" json:"log_level"`
	LogFormat   string         `koanf:"log_format" json:"log_format"`
	RedisURL    string         `koanf:"redis_url" json:"redis_url"`
	KeyID       string         `koanf:"key_id" json:"key_id"`
	RotatedKeys string         `koanf:"rotated_keys" json:"rotated_keys"`
	Database    databaseConfig `koanf:"database" json:"database"`
	Auth        authz.Options  `koanf:"auth" json:"auth"`
}

// databaseConfig is handed to go-persistence-bun
type databaseConfig struct {
	Driver                string `koanf:"driver" json:"driver"`
	DSN                   string `koanf:"dsn" json:"dsn"`
	Debug                 bool   `koanf:"debug" json:"debug"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout"`
}

func (d databaseConfig) GetDebug() bool {
	return d.Debug
}

func (d databaseConfig) GetDriver() string {
	return d.Driver
}

func (d databaseConfig) GetServer() string {
	return d.DSN
}

func (d databaseConfig) GetDSN() string {
	return d.DSN
}

func (d databaseConfig) GetOtelIdentifier() string {
	return "authzd"
}

func (d databaseConfig) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(d.PingTimeoutExpression)
	if err != nil || dur <= 0 {
		return 5 * time.Second
	}
	return dur
}

var supportedDrivers = []any{"sqlite", "sqlite3", "postgres", "pgx"}

func defaultSettings() *settings {
	return &settings{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "json",
		Database: databaseConfig{
			Driver:                "sqlite",
			DSN:                   "file:authz.db?cache=shared",
			PingTimeoutExpression: "5s",
		},
		Auth: authz.DefaultOptions(),
	}
}

// Validate checks the shape of the settings. Auth options are validated when
// the token service is built, so commands that never sign can run without a
// key.
func (s settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.LogFormat, validation.In("json", "console")),
		validation.Field(&s.Database),
	)
}

func (d databaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(supportedDrivers...)),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (s settings) pretty() bool {
	return s.LogFormat == "console"
}

func loadSettings(ctx context.Context) (settings, error) {
	cfg := gconfig.New(defaultSettings())
	if err := cfg.Load(ctx); err != nil {
		return settings{}, fmt.Errorf("load config: %w", err)
	}

	st := cfg.Raw()
	if err := applyEnv(st); err != nil {
		return settings{}, err
	}
	if err := st.Validate(); err != nil {
		return settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return *st, nil
}

// applyEnv overlays AUTHZ_* variables. A variable that is set but can not be
// parsed is an error.
func applyEnv(s *settings) error {
	strs := map[string]*string{
		"AUTHZ_ADDR":           &s.Addr,
		"AUTHZ_LOG_LEVEL":      &s.LogLevel,
		"AUTHZ_LOG_FORMAT":     &s.LogFormat,
		"AUTHZ_REDIS_URL":      &s.RedisURL,
		"AUTHZ_KEY_ID":         &s.KeyID,
		"AUTHZ_ROTATED_KEYS":   &s.RotatedKeys,
		"AUTHZ_DB_DRIVER":      &s.Database.Driver,
		"AUTHZ_DB_DSN":         &s.Database.DSN,
		"AUTHZ_DB_PING":        &s.Database.PingTimeoutExpression,
		"AUTHZ_SIGNING_KEY":    &s.Auth.SigningKey,
		"AUTHZ_SIGNING_METHOD": &s.Auth.SigningMethod,
		"AUTHZ_ISSUER":         &s.Auth.Issuer,
	}
	for key, dst := range strs {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := lookupEnv("AUTHZ_AUDIENCE"); ok {
		s.Auth.Audience = strings.Split(v, ",")
	}

	if v, ok := lookupEnv("AUTHZ_TOKEN_EXPIRATION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUTHZ_TOKEN_EXPIRATION: %q is not a number of hours", v)
		}
		s.Auth.TokenExpiration = n
	}

	if v, ok := lookupEnv("AUTHZ_DB_DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTHZ_DB_DEBUG: %q is not a boolean", v)
		}
		s.Database.Debug = b
	}

	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// rotatedKeys parses RotatedKeys, a comma separated kid=secret list
func (s settings) rotatedKeys() map[string][]byte {
	keys := map[string][]byte{}
	for _, pair := range strings.Split(s.RotatedKeys, ",") {
		kid, secret, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || kid == "" || secret == "" {
			continue
		}
		keys[kid] = []byte(secret)
	}
	return keys
}
