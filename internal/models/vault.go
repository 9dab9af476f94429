package models

import (
	"fmt"
	"strings"
	"time"
)

// VaultMetadata describes one protected vault. It is persisted only as
// an encrypted record; the key parameters it carries (salt, iterations,
// key proof) are mirrored in the vault's KeyInfo so a session can be
// opened before the record is readable.
type VaultMetadata struct {
	ID          string    `json:"vault_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_time"`
	ModifiedAt  time.Time `json:"modified_time"`
	KeyProof    []byte    `json:"key_verification"`
	Salt        []byte    `json:"salt"`
	Iterations  int       `json:"iterations"`
}

// Validate checks the metadata structure.
func (m *VaultMetadata) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("vault ID is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("vault name is required")
	}
	if len(m.Salt) == 0 {
		return fmt.Errorf("salt is required")
	}
	if m.Iterations <= 0 {
		return fmt.Errorf("iteration count must be positive")
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("created_time is required")
	}
	if m.ModifiedAt.Before(m.CreatedAt) {
		return fmt.Errorf("modified_time cannot be before created_time")
	}
	return nil
}

// KeyInfo holds the per-vault key parameters needed to open a session.
// It is the only cleartext the engine persists: the salt and iteration
// count are not secret, and the proof and wrapped master key are
// envelopes in their own right.
type KeyInfo struct {
	Salt             []byte `json:"salt"`
	Iterations       int    `json:"iterations"`
	KeyProof         []byte `json:"key_verification"`
	WrappedMasterKey []byte `json:"wrapped_master_key"`
	RecoverySalt     []byte `json:"recovery_salt"`
}

// Validate checks the key info structure.
func (k *KeyInfo) Validate() error {
	if len(k.Salt) == 0 {
		return fmt.Errorf("salt is required")
	}
	if k.Iterations <= 0 {
		return fmt.Errorf("iteration count must be positive")
	}
	if len(k.KeyProof) == 0 {
		return fmt.Errorf("key verification value is required")
	}
	if len(k.WrappedMasterKey) == 0 {
		return fmt.Errorf("wrapped master key is required")
	}
	return nil
}

// VaultConfig holds per-vault behavioral settings. Timeouts are in
// seconds to keep the serialized form stable.
type VaultConfig struct {
	AutoLock           bool  `json:"auto_lock"`
	LockTimeout        int64 `json:"lock_timeout"`
	ClearClipboard     bool  `json:"clear_clipboard"`
	ClipboardTimeout   int64 `json:"clipboard_timeout"`
	HideVaultDir       bool  `json:"hide_vault_dir"`
	SecureDelete       bool  `json:"secure_delete"`
	SecureDeletePasses int   `json:"secure_delete_passes"`
}

// DefaultVaultConfig returns the settings applied to a vault that has
// never been configured.
func DefaultVaultConfig() *VaultConfig {
	return &VaultConfig{
		AutoLock:           true,
		LockTimeout:        300,
		ClearClipboard:     true,
		ClipboardTimeout:   30,
		HideVaultDir:       true,
		SecureDelete:       false,
		SecureDeletePasses: 3,
	}
}

// Validate checks the config structure.
func (c *VaultConfig) Validate() error {
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock timeout cannot be negative")
	}
	if c.ClipboardTimeout < 0 {
		return fmt.Errorf("clipboard timeout cannot be negative")
	}
	if c.SecureDeletePasses < 1 {
		return fmt.Errorf("secure delete passes must be at least 1")
	}
	return nil
}
