// ABOUTME: Configuration management for the podkeep service
// ABOUTME: JSON config under XDG paths with defaults and ~ expansion

package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harper/podkeep/internal/notify"
)

// Config stores podkeep configuration.
type Config struct {
	// ListenAddr is the HTTP API bind address. Defaults to ":8080".
	ListenAddr string `json:"listen_addr,omitempty"`

	// DataDir is the root directory for data storage; podkeep.db lives here.
	// Supports ~ expansion. Defaults to ~/.local/share/podkeep.
	DataDir string `json:"data_dir,omitempty"`

	// RefreshIntervalMinutes is the feed refresh cadence. Defaults to 60.
	RefreshIntervalMinutes int `json:"refresh_interval_minutes,omitempty"`

	// EmailProvider selects the notification backend: "mock" (default) or "resend".
	EmailProvider string `json:"email_provider,omitempty"`

	// ResendAPIKey authenticates against the Resend API when EmailProvider is "resend".
	ResendAPIKey string `json:"resend_api_key,omitempty"`

	// EmailFrom is the From address on notification emails.
	EmailFrom string `json:"email_from,omitempty"`

	// ImportBatchSize bounds bulk-import concurrency. Defaults to 10.
	ImportBatchSize int `json:"import_batch_size,omitempty"`
}

// GetListenAddr returns the configured bind address, defaulting to ":8080".
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == "" {
		return ":8080"
	}
	return c.ListenAddr
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return defaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "podkeep.db")
}

// GetRefreshIntervalMinutes returns the refresh cadence, defaulting to hourly.
func (c *Config) GetRefreshIntervalMinutes() int {
	if c.RefreshIntervalMinutes <= 0 {
		return 60
	}
	return c.RefreshIntervalMinutes
}

// GetEmailFrom returns the From address, with a local default.
func (c *Config) GetEmailFrom() string {
	if c.EmailFrom == "" {
		return "podkeep <noreply@localhost>"
	}
	return c.EmailFrom
}

// EmailProviderFactory returns the lazy constructor for the configured email
// provider, for use with notify.NewSender.
func (c *Config) EmailProviderFactory() func() (notify.Provider, error) {
	provider := c.EmailProvider
	apiKey := c.ResendAPIKey
	from := c.GetEmailFrom()
	return func() (notify.Provider, error) {
		switch provider {
		case "", "mock":
			return notify.NewMockProvider(slog.Default()), nil
		case "resend":
			if apiKey == "" {
				return nil, fmt.Errorf("resend_api_key is required for the resend provider")
			}
			return notify.NewResendProvider(apiKey, from), nil
		default:
			return nil, fmt.Errorf("unknown email provider: %q", provider)
		}
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "podkeep", "config.json")
}

// Load reads config from disk. A missing file yields defaults.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads config from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func defaultDataDir() string {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return filepath.Join(dataDir, "podkeep")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "podkeep"
	}
	return filepath.Join(homeDir, ".local", "share", "podkeep")
}
