// Package config loads runtime configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar names the environment variable holding the config file path.
const PathEnvVar = "SPOTIFY_HISTORY_CONFIG"

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the complete application configuration.
type Config struct {
	Spotify  Spotify  `koanf:"spotify"`
	Database Database `koanf:"database"`
	Poll     Poll     `koanf:"poll"`
	HTTP     HTTP     `koanf:"http"`
	Log      Log      `koanf:"log"`

	// TokenCachePath is an optional token file used to seed the token store.
	TokenCachePath string `koanf:"token_cache_path"`
}

// Spotify holds the OAuth application credentials and the tracked user.
type Spotify struct {
	ClientID       string        `koanf:"client_id" validate:"required"`
	ClientSecret   string        `koanf:"client_secret" validate:"required"`
	UserID         string        `koanf:"user_id" validate:"required"`
	RedirectURI    string        `koanf:"redirect_uri" validate:"required,url"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	RateLimit      float64       `koanf:"rate_limit" validate:"gt=0"` // requests per second
}

// Database selects and locates the storage backend.
type Database struct {
	Driver string `koanf:"driver" validate:"oneof=postgres sqlite"`
	URL    string `koanf:"url" validate:"required_if=Driver postgres"`
	Path   string `koanf:"path" validate:"required_if=Driver sqlite"`
}

// Poll controls the background poller.
type Poll struct {
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"` // per tick
}

// HTTP configures the read API server.
type HTTP struct {
	Addr      string `koanf:"addr" validate:"required"`
	RateLimit int    `koanf:"rate_limit" validate:"gte=0"` // requests per minute per IP, 0 disables
}

// Log configures the logger.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Spotify: Spotify{
			RedirectURI:    "http://127.0.0.1:8080/callback",
			RequestTimeout: 10 * time.Second,
			RateLimit:      5,
		},
		Database: Database{
			Driver: DriverSQLite,
			Path:   "spotify-history.db",
		},
		Poll: Poll{
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
		},
		HTTP: HTTP{
			Addr:      "127.0.0.1:8080",
			RateLimit: 120,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

var envMappings = map[string]string{
	"spotify_id":              "spotify.client_id",
	"spotify_secret":          "spotify.client_secret",
	"spotify_user_id":         "spotify.user_id",
	"spotify_redirect_uri":    "spotify.redirect_uri",
	"spotify_request_timeout": "spotify.request_timeout",
	"spotify_rate_limit":      "spotify.rate_limit",
	"database_driver":         "database.driver",
	"database_url":            "database.url",
	"sqlite_path":             "database.path",
	"poll_interval":           "poll.interval",
	"poll_timeout":            "poll.timeout",
	"http_addr":               "http.addr",
	"http_rate_limit":         "http.rate_limit",
	"log_level":               "log.level",
	"log_format":              "log.format",
	"token_cache_path":        "token_cache_path",
}

// envKey maps an environment variable name to its koanf path.
// Unknown variables map to "" and are skipped.
func envKey(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load builds the configuration. path may be empty, in which case the file
// named by SPOTIFY_HISTORY_CONFIG is used if set.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks everything except the Spotify credentials, which only
// commands that talk to Spotify need. See RequireSpotify.
func (c *Config) Validate() error {
	for _, section := range []any{c.Database, c.HTTP, c.Log} {
		if err := validate.Struct(section); err != nil {
			return err
		}
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	if c.Poll.Timeout <= 0 {
		return errors.New("poll.timeout must be positive")
	}
	return nil
}

// RequireSpotify checks that the Spotify credentials and user are set.
func (c *Config) RequireSpotify() error {
	if err := validate.Struct(c.Spotify); err != nil {
		return fmt.Errorf("spotify settings (SPOTIFY_ID, SPOTIFY_SECRET, SPOTIFY_USER_ID): %w", err)
	}
	if c.Spotify.RequestTimeout <= 0 {
		return errors.New("spotify.request_timeout must be positive")
	}
	return nil
}
