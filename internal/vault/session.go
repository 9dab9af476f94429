package vault

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/phantomvault/vaultcore/internal/crypto"
	"github.com/phantomvault/vaultcore/internal/models"
	"github.com/phantomvault/vaultcore/internal/records"
	"github.com/phantomvault/vaultcore/internal/recovery"
)

// Session is an unlocked vault. It holds the master key in memory until
// Close, which zeroizes it; every method fails with ErrSessionClosed
// afterwards.
type Session struct {
	engine  *Engine
	vaultID string

	mu     sync.Mutex
	key    []byte
	closed bool
}

// VaultID returns the id of the unlocked vault.
func (s *Session) VaultID() string {
	return s.vaultID
}

// Metadata loads and decrypts the vault's metadata record.
func (s *Session) Metadata() (*models.VaultMetadata, error) {
	var meta models.VaultMetadata
	err := s.do(func(key []byte) error {
		return s.engine.records.Load(records.KindMetadata, s.vaultID, &meta, key)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// UpdateMetadata rewrites the mutable metadata fields and bumps the
// modification time.
func (s *Session) UpdateMetadata(name, description string) error {
	return s.do(func(key []byte) error {
		var meta models.VaultMetadata
		if err := s.engine.records.Load(records.KindMetadata, s.vaultID, &meta, key); err != nil {
			return err
		}
		meta.Name = name
		meta.Description = description
		meta.ModifiedAt = s.engine.clock()
		return s.engine.records.Save(records.KindMetadata, s.vaultID, &meta, key)
	})
}

// Config returns the vault's configuration, falling back to defaults
// when none has been saved yet.
func (s *Session) Config() (*models.VaultConfig, error) {
	var cfg models.VaultConfig
	err := s.do(func(key []byte) error {
		err := s.engine.records.Load(records.KindConfig, s.vaultID, &cfg, key)
		if errors.Is(err, models.ErrNotFound) {
			cfg = *models.DefaultVaultConfig()
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetConfig validates and persists the vault configuration.
func (s *Session) SetConfig(cfg *models.VaultConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.do(func(key []byte) error {
		return s.engine.records.Save(records.KindConfig, s.vaultID, cfg, key)
	})
}

// SealData encrypts an arbitrary payload under the vault's master key.
func (s *Session) SealData(plaintext []byte) ([]byte, error) {
	var envelope []byte
	err := s.do(func(key []byte) (err error) {
		envelope, err = s.engine.cipher.Seal(plaintext, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return envelope, nil
}

// OpenData decrypts a payload previously produced by SealData.
func (s *Session) OpenData(envelope []byte) ([]byte, error) {
	var plaintext []byte
	err := s.do(func(key []byte) (err error) {
		plaintext, err = s.engine.cipher.Open(envelope, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// SealStream encrypts r into w under the master key without buffering
// the whole payload.
func (s *Session) SealStream(r io.Reader, w io.Writer) error {
	return s.do(func(key []byte) error {
		return s.engine.cipher.SealStream(r, w, key)
	})
}

// OpenStream decrypts r into w. Nothing is written to w unless the
// stream authenticates.
func (s *Session) OpenStream(r io.Reader, w io.Writer) error {
	return s.do(func(key []byte) error {
		return s.engine.cipher.OpenStream(r, w, key)
	})
}

// SealFile encrypts the file at src to dst atomically.
func (s *Session) SealFile(src, dst string) error {
	return s.do(func(key []byte) error {
		return s.engine.cipher.SealFile(src, dst, key)
	})
}

// OpenFile decrypts the file at src to dst atomically. A failed
// authentication leaves no output file behind.
func (s *Session) OpenFile(src, dst string) error {
	return s.do(func(key []byte) error {
		return s.engine.cipher.OpenFile(src, dst, key)
	})
}

// SetupRecovery escrows the master key under the given question/answer
// pairs, replacing any existing recovery configuration.
func (s *Session) SetupRecovery(qas []recovery.QA) error {
	return s.do(func(key []byte) error {
		recordKey, err := s.engine.recoveryRecordKey(s.vaultID)
		if err != nil {
			return err
		}
		defer crypto.Zero(recordKey)
		return s.engine.recovery.Setup(s.vaultID, key, qas, recordKey)
	})
}

// RemoveRecovery deletes the recovery escrow. Idempotent.
func (s *Session) RemoveRecovery() error {
	return s.do(func(key []byte) error {
		return s.engine.recovery.Remove(s.vaultID)
	})
}

// ChangePassword rewraps the master key under a new password with a
// fresh salt. Records and the recovery escrow are untouched; only the
// key parameters change.
func (s *Session) ChangePassword(newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: empty password", crypto.ErrInvalidArgument)
	}

	return s.do(func(key []byte) error {
		e := s.engine

		info, err := e.records.LoadKeyInfo(s.vaultID)
		if err != nil {
			return err
		}

		salt, err := e.rand.Salt()
		if err != nil {
			return err
		}
		wrapKey, err := crypto.Derive(newPassword, salt, e.cfg.Crypto.Iterations, crypto.KeySize)
		if err != nil {
			return err
		}
		defer crypto.Zero(wrapKey)

		proof, err := e.cipher.KeyProof(wrapKey)
		if err != nil {
			return err
		}
		wrapped, err := e.cipher.Seal(key, wrapKey)
		if err != nil {
			return err
		}

		// The recovery salt survives so the recovery record stays
		// readable with the same derived key.
		info.Salt = salt
		info.Iterations = e.cfg.Crypto.Iterations
		info.KeyProof = proof
		info.WrappedMasterKey = wrapped
		if err := e.records.SaveKeyInfo(s.vaultID, info); err != nil {
			return err
		}

		var meta models.VaultMetadata
		if err := e.records.Load(records.KindMetadata, s.vaultID, &meta, key); err != nil {
			return err
		}
		meta.Salt = salt
		meta.Iterations = e.cfg.Crypto.Iterations
		meta.KeyProof = proof
		meta.ModifiedAt = e.clock()
		if err := e.records.Save(records.KindMetadata, s.vaultID, &meta, key); err != nil {
			return err
		}

		e.logger.WithField("vault_id", s.vaultID).Info("Vault password changed")
		return nil
	})
}

// Close zeroizes the master key and invalidates the session. Safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	crypto.Zero(s.key)
	s.key = nil
	s.closed = true
}

// do runs fn with the master key while holding the session lock.
func (s *Session) do(fn func(key []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.ErrSessionClosed
	}
	return fn(s.key)
}
