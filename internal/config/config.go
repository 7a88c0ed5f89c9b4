// Package config loads application settings from the config file and
// QUILL_* environment variables, environment winning.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the binaries read.
type Config struct {
	// DatabasePath locates the local cache. Defaults under the data
	// directory.
	DatabasePath string `mapstructure:"database_path"`

	Remote RemoteConfig `mapstructure:"remote"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Feed   FeedConfig   `mapstructure:"feed"`
	Import ImportConfig `mapstructure:"import"`

	// LogPath enables file logging with rotation when set.
	LogPath string `mapstructure:"log_path"`
}

// RemoteConfig configures the backend connection.
type RemoteConfig struct {
	ProjectID       string        `mapstructure:"project_id"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
}

// SyncConfig tunes the background daemon.
type SyncConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	PullInterval  time.Duration `mapstructure:"pull_interval"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	WatchRetry    time.Duration `mapstructure:"watch_retry"`
}

// FeedConfig configures the WebSocket feed.
type FeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ImportConfig configures the markdown drop directory.
type ImportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// DataDir returns the per-user data directory, honoring QUILL_HOME.
func DataDir() (string, error) {
	if dir := os.Getenv("QUILL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".quill"), nil
}

// Load reads config.yaml from the data directory (or the explicit path
// when non-empty) and overlays QUILL_* environment variables. A
// missing config file is fine; defaults apply.
func Load(path string) (*Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so environment-only settings survive
	// Unmarshal.
	v.SetDefault("database_path", filepath.Join(dataDir, "quill.db"))
	v.SetDefault("log_path", "")
	v.SetDefault("remote.project_id", "")
	v.SetDefault("remote.credentials_file", "")
	v.SetDefault("remote.call_timeout", 10*time.Second)
	v.SetDefault("sync.flush_interval", 15*time.Second)
	v.SetDefault("sync.pull_interval", 5*time.Minute)
	v.SetDefault("sync.watch_debounce", 500*time.Millisecond)
	v.SetDefault("sync.watch_retry", 30*time.Second)
	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.port", 8712)
	v.SetDefault("import.enabled", false)
	v.SetDefault("import.dir", filepath.Join(dataDir, "import"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(dataDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings needed for remote sync. Local-only use does
// not require a project id.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.Remote.ProjectID == "" && c.Remote.CredentialsFile != "" {
		return fmt.Errorf("remote.project_id is required when credentials are set")
	}
	return nil
}

// RemoteEnabled reports whether the config names a backend project.
func (c *Config) RemoteEnabled() bool {
	return c.Remote.ProjectID != ""
}
