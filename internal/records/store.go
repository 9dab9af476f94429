// Package records persists vault metadata, configuration, and recovery
// escrow as individually-encrypted envelope files, one per
// (kind, vault id) pair.
package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/phantomvault/vaultcore/internal/crypto"
	"github.com/phantomvault/vaultcore/internal/events"
	"github.com/phantomvault/vaultcore/internal/models"
	"github.com/phantomvault/vaultcore/internal/storage"
)

// Kind identifies a record family. Each kind lives in its own
// directory with its own file extension.
type Kind string

const (
	KindMetadata Kind = "metadata"
	KindConfig   Kind = "config"
	KindRecovery Kind = "recovery"
)

func (k Kind) valid() bool {
	switch k {
	case KindMetadata, KindConfig, KindRecovery:
		return true
	}
	return false
}

func (k Kind) ext() string {
	switch k {
	case KindMetadata:
		return ".meta"
	case KindConfig:
		return ".conf"
	case KindRecovery:
		return ".recovery"
	}
	return ""
}

// keyInfoExt marks the cleartext key-parameter files that sit beside
// the metadata records. They carry no secrets: salts are public and the
// proof and wrapped master key are envelopes themselves.
const keyInfoExt = ".keys"

// Store performs encrypted CRUD over a blob store. Every save seals the
// record under a fresh nonce; the store never holds or reuses an IV.
// Operations on the same record are serialized with a per-record lock;
// distinct records proceed concurrently.
type Store struct {
	blobs  storage.BlobStore
	cipher *crypto.Cipher
	logger *events.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a record store and its directory layout.
func NewStore(blobs storage.BlobStore, cipher *crypto.Cipher, logger *events.Logger) (*Store, error) {
	for _, kind := range []Kind{KindMetadata, KindConfig, KindRecovery} {
		if err := blobs.EnsureDir(string(kind)); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", kind, err)
		}
	}

	return &Store{
		blobs:  blobs,
		cipher: cipher,
		logger: logger.WithField("component", "record_store"),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Save serializes value, seals it with key, and atomically replaces the
// record file.
func (s *Store) Save(kind Kind, vaultID string, value interface{}, key []byte) error {
	recordPath, err := s.recordPath(kind, vaultID)
	if err != nil {
		return err
	}

	unlock := s.lockRecord(kind, vaultID)
	defer unlock()

	plaintext, err := json.Marshal(value)
	if err != nil {
		return &models.RecordError{Kind: string(kind), VaultID: vaultID, Op: "save",
			Err: fmt.Errorf("serialize: %w", err)}
	}

	envelope, err := s.cipher.Seal(plaintext, key)
	crypto.Zero(plaintext)
	if err != nil {
		return &models.RecordError{Kind: string(kind), VaultID: vaultID, Op: "save", Err: err}
	}

	if err := s.blobs.Write(recordPath, envelope, 0600); err != nil {
		return &models.RecordError{Kind: string(kind), VaultID: vaultID, Op: "save", Err: err}
	}

	s.logger.WithFields(map[string]interface{}{
		"kind":     string(kind),
		"vault_id": vaultID,
	}).Debug("Record saved")
	return nil
}

// Load reads the record, opens the envelope with key, and deserializes
// into out.
func (s *Store) Load(kind Kind, vaultID string, out interface{}, key []byte) error {
	recordPath, err := s.recordPath(kind, vaultID)
	if err != nil {
		return err
	}

	unlock := s.lockRecord(kind, vaultID)
	defer unlock()

	envelope, err := s.blobs.Read(recordPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.RecordError{Kind: string(kind), VaultID: vaultID, Op: "load",
				Err: models.ErrNotFound}
		}
		return &models.RecordError{Kind: string(kind), VaultID: vaultID, Op: "load", Err: err}
	}

	plaintext, err := s.cipher.Open(envelope, key)
	if err != nil {
		return &models.RecordError{Kind: string(kind), VaultID: vaultID, Op: "load", Err: err}
	}
	defer crypto.Zero(plaintext)

	if err := json.Unmarshal(plaintext, out); err != nil {
		return &models.RecordError{Kind: string(kind), VaultID: vaultID, Op: "load",
			Err: fmt.Errorf("%w: %v", models.ErrCorruptRecord, err)}
	}
	return nil
}

// List enumerates the vault ids that have a record of the given kind.
// No decryption happens.
func (s *Store) List(kind Kind) ([]string, error) {
	if !kind.valid() {
		return nil, fmt.Errorf("unknown record kind: %s", kind)
	}

	names, err := s.blobs.List(string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", kind, err)
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasSuffix(name, kind.ext()) {
			ids = append(ids, strings.TrimSuffix(name, kind.ext()))
		}
	}
	return ids, nil
}

// Delete removes the record. Deleting a nonexistent record is not an
// error.
func (s *Store) Delete(kind Kind, vaultID string) error {
	recordPath, err := s.recordPath(kind, vaultID)
	if err != nil {
		return err
	}

	unlock := s.lockRecord(kind, vaultID)
	defer unlock()

	if err := s.blobs.Delete(recordPath); err != nil {
		return &models.RecordError{Kind: string(kind), VaultID: vaultID, Op: "delete", Err: err}
	}
	return nil
}

// Exists checks whether a record is present without decrypting it.
func (s *Store) Exists(kind Kind, vaultID string) (bool, error) {
	recordPath, err := s.recordPath(kind, vaultID)
	if err != nil {
		return false, err
	}
	return s.blobs.Exists(recordPath)
}

// SaveKeyInfo persists the cleartext key parameters for a vault.
func (s *Store) SaveKeyInfo(vaultID string, info *models.KeyInfo) error {
	keyPath, err := s.keyInfoPath(vaultID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("serialize key info: %w", err)
	}
	if err := s.blobs.Write(keyPath, data, 0600); err != nil {
		return fmt.Errorf("write key info: %w", err)
	}
	return nil
}

// LoadKeyInfo reads the key parameters for a vault.
func (s *Store) LoadKeyInfo(vaultID string) (*models.KeyInfo, error) {
	keyPath, err := s.keyInfoPath(vaultID)
	if err != nil {
		return nil, err
	}

	data, err := s.blobs.Read(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("key info for vault %s: %w", vaultID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("read key info: %w", err)
	}

	var info models.KeyInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("key info for vault %s: %w: %v", vaultID, models.ErrCorruptRecord, err)
	}
	return &info, nil
}

// DeleteKeyInfo removes the key parameters for a vault. Idempotent.
func (s *Store) DeleteKeyInfo(vaultID string) error {
	keyPath, err := s.keyInfoPath(vaultID)
	if err != nil {
		return err
	}
	return s.blobs.Delete(keyPath)
}

// HasKeyInfo checks whether a vault's key parameters exist.
func (s *Store) HasKeyInfo(vaultID string) (bool, error) {
	keyPath, err := s.keyInfoPath(vaultID)
	if err != nil {
		return false, err
	}
	return s.blobs.Exists(keyPath)
}

// ListVaults enumerates all vault ids with key parameters on disk.
func (s *Store) ListVaults() ([]string, error) {
	names, err := s.blobs.List(string(KindMetadata))
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasSuffix(name, keyInfoExt) {
			ids = append(ids, strings.TrimSuffix(name, keyInfoExt))
		}
	}
	return ids, nil
}

func (s *Store) recordPath(kind Kind, vaultID string) (string, error) {
	if !kind.valid() {
		return "", fmt.Errorf("unknown record kind: %s", kind)
	}
	if err := validateVaultID(vaultID); err != nil {
		return "", err
	}
	return path.Join(string(kind), vaultID+kind.ext()), nil
}

func (s *Store) keyInfoPath(vaultID string) (string, error) {
	if err := validateVaultID(vaultID); err != nil {
		return "", err
	}
	return path.Join(string(KindMetadata), vaultID+keyInfoExt), nil
}

// lockRecord serializes access to one (kind, vault id) record.
func (s *Store) lockRecord(kind Kind, vaultID string) func() {
	key := string(kind) + "/" + vaultID

	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func validateVaultID(vaultID string) error {
	if vaultID == "" {
		return fmt.Errorf("%w: empty vault id", crypto.ErrInvalidArgument)
	}
	if strings.ContainsAny(vaultID, `/\`) || vaultID == "." || vaultID == ".." {
		return fmt.Errorf("%w: vault id %q", crypto.ErrInvalidArgument, vaultID)
	}
	return nil
}
