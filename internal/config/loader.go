package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader. An empty path falls back to the
// default search locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "VAULTCORE_",
	}
}

// Load reads configuration from file and environment, layered over the
// defaults.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		for _, path := range l.defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				l.configPath = path
				if err := l.loadFile(cfg); err != nil {
					return nil, fmt.Errorf("load config file %s: %w", path, err)
				}
				break
			}
		}
	}

	l.loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// defaultPaths returns default config file locations.
func (l *Loader) defaultPaths() []string {
	paths := []string{
		"vaultcore.json",
		".vaultcore.json",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "vaultcore", "config.json"),
			filepath.Join(homeDir, ".vaultcore", "config.json"),
		)
	}
	return paths
}

// loadFile merges a JSON config file into cfg.
func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}

// loadEnv overrides config fields from environment variables.
func (l *Loader) loadEnv(cfg *Config) {
	if v := os.Getenv(l.envPrefix + "DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
		cfg.Storage.RecordsDir = filepath.Join(v, "records")
	}
	if v := os.Getenv(l.envPrefix + "RECORDS_DIR"); v != "" {
		cfg.Storage.RecordsDir = v
	}
	if v := os.Getenv(l.envPrefix + "ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crypto.Iterations = n
		}
	}
	if v := os.Getenv(l.envPrefix + "MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recovery.MaxAttempts = n
		}
	}
	if v := os.Getenv(l.envPrefix + "FOLD_ANSWER_CASE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Recovery.FoldAnswerCase = b
		}
	}
	if v := os.Getenv(l.envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(l.envPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv(l.envPrefix + "LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
