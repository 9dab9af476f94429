package config

import (
	"fmt"
	"path/filepath"
)

// Config holds all engine configuration.
type Config struct {
	// Storage paths
	Storage StorageConfig `json:"storage"`

	// Key derivation parameters
	Crypto CryptoConfig `json:"crypto"`

	// Recovery policy
	Recovery RecoveryConfig `json:"recovery"`

	// Logging
	Log LogConfig `json:"log"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir    string `json:"data_dir"`    // Base directory for all engine data
	RecordsDir string `json:"records_dir"` // Encrypted record storage
}

// CryptoConfig for key derivation.
type CryptoConfig struct {
	Iterations int `json:"iterations"` // PBKDF2 iteration count for new secrets
}

// RecoveryConfig for the recovery protocol.
type RecoveryConfig struct {
	MaxAttempts    int  `json:"max_attempts"`     // Attempt budget per vault
	FoldAnswerCase bool `json:"fold_answer_case"` // Case-insensitive answer matching
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // Log file path (empty = stdout)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".vaultcore"

	return &Config{
		Storage: StorageConfig{
			DataDir:    dataDir,
			RecordsDir: filepath.Join(dataDir, "records"),
		},
		Crypto: CryptoConfig{
			Iterations: 100_000,
		},
		Recovery: RecoveryConfig{
			MaxAttempts:    3,
			FoldAnswerCase: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}
	if c.Storage.RecordsDir == "" {
		return fmt.Errorf("storage records_dir is required")
	}
	if c.Crypto.Iterations < 10_000 {
		return fmt.Errorf("crypto iterations must be at least 10000, got %d", c.Crypto.Iterations)
	}
	if c.Recovery.MaxAttempts < 1 {
		return fmt.Errorf("recovery max_attempts must be at least 1, got %d", c.Recovery.MaxAttempts)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	return nil
}
