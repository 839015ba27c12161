// Package config loads and persists application configuration. A TOML file
// is the primary format; YAML variants are accepted for compatibility.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
)

// ErrInvalidSource marks a feed URL that cannot be used as a source.
var ErrInvalidSource = errors.New("invalid source url")

// fileVariants lists recognized config file names, in preference order.
var fileVariants = []string{"moccasin.toml", "moccasin.yaml", "moccasin.yml"}

// DataConfig holds the source list and default ordering.
type DataConfig struct {
	Feeds     []string `toml:"feeds" yaml:"feeds"`
	SortOrder string   `toml:"sort_order" yaml:"sort_order"`
}

// SyncConfig tunes the refresh machinery.
type SyncConfig struct {
	RefreshInterval int  `toml:"refresh_interval" yaml:"refresh_interval"` // seconds; 0 disables the timer
	RefreshTimeout  int  `toml:"refresh_timeout" yaml:"refresh_timeout"`   // seconds, per fetch
	Cache           bool `toml:"cache" yaml:"cache"`                       // durable store vs memory-only
	RetryCount      int  `toml:"retry_count" yaml:"retry_count"`
}

// StorageConfig locates the on-disk artifacts.
type StorageConfig struct {
	DBPath  string `toml:"db_path" yaml:"db_path"`
	LogFile string `toml:"log_file" yaml:"log_file"`
}

// ThemeConfig carries color codes for the UI.
type ThemeConfig struct {
	FeedName string `toml:"feed_name" yaml:"feed_name"`
	Unread   string `toml:"unread" yaml:"unread"`
	Favorite string `toml:"favorite" yaml:"favorite"`
}

// KeyMapConfig defines the keybindings.
type KeyMapConfig struct {
	Up             string `toml:"up" yaml:"up"`
	Down           string `toml:"down" yaml:"down"`
	Left           string `toml:"left" yaml:"left"`
	Right          string `toml:"right" yaml:"right"`
	Open           string `toml:"open" yaml:"open"`
	Back           string `toml:"back" yaml:"back"`
	Quit           string `toml:"quit" yaml:"quit"`
	AddFeed        string `toml:"add_feed" yaml:"add_feed"`
	DeleteFeed     string `toml:"delete_feed" yaml:"delete_feed"`
	Refresh        string `toml:"refresh" yaml:"refresh"`
	Search         string `toml:"search" yaml:"search"`
	ToggleRead     string `toml:"toggle_read" yaml:"toggle_read"`
	ToggleFavorite string `toml:"toggle_favorite" yaml:"toggle_favorite"`
}

// Config is the application configuration.
type Config struct {
	Data    DataConfig    `toml:"data" yaml:"data"`
	Sync    SyncConfig    `toml:"sync" yaml:"sync"`
	Storage StorageConfig `toml:"storage" yaml:"storage"`
	Theme   ThemeConfig   `toml:"theme" yaml:"theme"`
	KeyMap  KeyMapConfig  `toml:"keymap" yaml:"keymap"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Data: DataConfig{SortOrder: "newest"},
		Sync: SyncConfig{
			RefreshInterval: 3600,
			RefreshTimeout:  5,
			Cache:           true,
		},
		Theme: ThemeConfig{
			FeedName: "244",
			Unread:   "15",
			Favorite: "220",
		},
		KeyMap: KeyMapConfig{
			Up:             "k",
			Down:           "j",
			Left:           "h",
			Right:          "l",
			Open:           "enter",
			Back:           "esc",
			Quit:           "q",
			AddFeed:        "a",
			DeleteFeed:     "x",
			Refresh:        "r",
			Search:         "/",
			ToggleRead:     "m",
			ToggleFavorite: "f",
		},
	}
}

// Interval returns the refresh interval as a duration.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

// Timeout returns the per-fetch timeout as a duration.
func (c SyncConfig) Timeout() time.Duration {
	return time.Duration(c.RefreshTimeout) * time.Second
}

// Order parses the configured default sort order.
func (d DataConfig) Order() (feed.SortOrder, error) {
	return feed.ParseSortOrder(d.SortOrder)
}

// Load reads configuration from an explicit file, or discovers one in the
// default config directory. When no file exists a stub TOML file with the
// defaults is written so users have something to edit.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}

	dir, err := defaultConfigDir()
	if err != nil {
		return nil, err
	}
	for _, variant := range fileVariants {
		candidate := filepath.Join(dir, variant)
		if _, err := os.Stat(candidate); err == nil {
			return loadFile(candidate)
		}
	}

	cfg := Default()
	if err := writeStub(filepath.Join(dir, fileVariants[0]), cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("load %s: unrecognized config format", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func writeStub(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write config stub: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("write config stub: %w", err)
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Sync.RefreshInterval < 0 {
		return errors.New("refresh_interval must not be negative")
	}
	if c.Sync.RefreshTimeout <= 0 {
		return errors.New("refresh_timeout must be positive")
	}
	if c.Sync.RetryCount < 0 {
		return errors.New("retry_count must not be negative")
	}
	if _, err := c.Data.Order(); err != nil {
		return err
	}
	for _, source := range c.Data.Feeds {
		if err := ValidateSourceURL(source); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSourceURL checks a single feed URL.
func ValidateSourceURL(source string) error {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSource)
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidSource, source)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSource, source, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidSource, source)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q: missing host", ErrInvalidSource, source)
	}
	return nil
}

// DBPath resolves the database location, defaulting into the user data dir.
func (c *Config) DBPath() (string, error) {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath, nil
	}
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "moccasin.db"), nil
}

// LogFile resolves the log file location, defaulting into the user data dir.
func (c *Config) LogFile() (string, error) {
	if c.Storage.LogFile != "" {
		return c.Storage.LogFile, nil
	}
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "moccasin.log"), nil
}

func defaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "moccasin"), nil
}

func defaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "moccasin"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "moccasin"), nil
}
