package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".cake"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CAKE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("CAKE_PATHS", &cfg.Paths)
	envconfig.Process("CAKE_WATCHDOG", &cfg.Watchdog)
	envconfig.Process("CAKE_SHIM", &cfg.Shim)
	envconfig.Process("CAKE_RECALL", &cfg.Recall)
	envconfig.Process("CAKE_ESCALATION", &cfg.Escalation)
	envconfig.Process("CAKE_SOURCES", &cfg.Sources.File)
	envconfig.Process("CAKE_SOURCES", &cfg.Sources.Kafka)
	envconfig.Process("CAKE_NOTIFY", &cfg.Notify.Slack)

	// Expand ~ in paths
	if strings.HasPrefix(cfg.Paths.DataDir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Paths.DataDir = filepath.Join(home, cfg.Paths.DataDir[1:])
		}
	}

	// Guard against nonsensical budgets; the defaults are the product policy.
	if cfg.Watchdog.DetectionLatencyBudgetMs <= 0 {
		cfg.Watchdog.DetectionLatencyBudgetMs = 100
	}
	if cfg.Watchdog.LineBuffer <= 0 {
		cfg.Watchdog.LineBuffer = 256
	}
	if cfg.Shim.CommandValidationBudgetMs <= 0 {
		cfg.Shim.CommandValidationBudgetMs = 50
	}
	if cfg.Recall.TTLHours <= 0 {
		cfg.Recall.TTLHours = 24
	}
	if cfg.Escalation.RepeatThreshold <= 0 {
		cfg.Escalation.RepeatThreshold = 3
	}
	if cfg.Escalation.MaxAutoRetries <= 0 {
		cfg.Escalation.MaxAutoRetries = 5
	}

	return cfg, nil
}

// DBPath returns the absolute path of the RecallDB file, creating the data dir.
func (c *Config) DBPath() (string, error) {
	if err := os.MkdirAll(c.Paths.DataDir, 0700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return filepath.Join(c.Paths.DataDir, c.Paths.DBFile), nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
