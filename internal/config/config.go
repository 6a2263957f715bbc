package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Ledger   LedgerConfig
	Log      LogConfig
	UI       UIConfig
	Prefs    PrefsConfig
	API      APIConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path       string
	Migrations string
}

// LedgerConfig tunes the in-memory transaction window.
type LedgerConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type LogConfig struct {
	Level string
	File  string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	DateFormat string `mapstructure:"date_format"`
	Timezone   string
}

// PrefsConfig selects where category expand state is kept.
type PrefsConfig struct {
	Backend  string
	RedisURL string `mapstructure:"redis_url"`
}

// APIConfig configures the HTTP server and, when URL is set, the remote client.
type APIConfig struct {
	Addr   string
	URL    string
	UserID int64 `mapstructure:"user_id"`
}

const envPrefix = "FINLEDGER"

// Location resolves the configured timezone, falling back to local time.
func (c UIConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func defaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "finledger", "config.toml")
}

func newViper() *viper.Viper {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "finledger", "finledger.db"))
	v.SetDefault("database.migrations", "internal/database/migrations")
	v.SetDefault("ledger.page_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("ui.date_format", "2006-01-02")
	v.SetDefault("ui.timezone", "Local")
	v.SetDefault("prefs.backend", "file")
	v.SetDefault("prefs.redis_url", "redis://localhost:6379/0")
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.url", "")
	v.SetDefault("api.user_id", 1)

	v.SetConfigType("toml")

	cfgPath := os.Getenv(envPrefix + "_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "finledger"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Ledger.PageSize <= 0 {
		return Config{}, fmt.Errorf("ledger.page_size must be positive, got %d", c.Ledger.PageSize)
	}
	if c.API.UserID <= 0 {
		return Config{}, fmt.Errorf("api.user_id must be positive, got %d", c.API.UserID)
	}
	switch c.Prefs.Backend {
	case "file", "redis":
	default:
		return Config{}, fmt.Errorf("prefs.backend must be file or redis, got %q", c.Prefs.Backend)
	}
	return c, nil
}

// Load reads configuration from file and env. Env var overrides use prefix FINLEDGER_.
func Load() (Config, error) {
	c, _, err := LoadViper()
	return c, err
}

// LoadViper is Load that also returns the underlying viper instance, for Watch.
func LoadViper() (Config, *viper.Viper, error) {
	v := newViper()

	// a missing config file means defaults; a broken one is an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil, fmt.Errorf("read config: %w", err)
		}
	}

	c, err := decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	return c, v, nil
}

// Watch calls fn with the re-decoded configuration every time the config
// file changes. Invalid edits are reported through fn's error argument and
// do not stop the watch.
func Watch(v *viper.Viper, fn func(Config, fsnotify.Event, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		c, err := decode(v)
		fn(c, e, err)
	})
	v.WatchConfig()
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv(envPrefix + "_CONFIG")
	if path == "" {
		path = defaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.migrations", cfg.Database.Migrations)
	v.Set("ledger.page_size", cfg.Ledger.PageSize)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("ui.date_format", cfg.UI.DateFormat)
	v.Set("ui.timezone", cfg.UI.Timezone)
	v.Set("prefs.backend", cfg.Prefs.Backend)
	v.Set("prefs.redis_url", cfg.Prefs.RedisURL)
	v.Set("api.addr", cfg.API.Addr)
	v.Set("api.url", cfg.API.URL)
	v.Set("api.user_id", cfg.API.UserID)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
