// Package vault wires the crypto engine, record store, and recovery
// protocol into the password-gated session surface callers use.
package vault

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phantomvault/vaultcore/internal/config"
	"github.com/phantomvault/vaultcore/internal/crypto"
	"github.com/phantomvault/vaultcore/internal/events"
	"github.com/phantomvault/vaultcore/internal/models"
	"github.com/phantomvault/vaultcore/internal/records"
	"github.com/phantomvault/vaultcore/internal/recovery"
	"github.com/phantomvault/vaultcore/internal/storage"
)

// Engine manages vault lifecycles. Keys are two-tier: the password
// stretches into a wrapping key, which unwraps the vault's random
// master key; records and files are encrypted under the master key.
// Changing the password only rewraps, and recovery escrows the master
// key itself.
type Engine struct {
	cfg      *config.Config
	blobs    storage.BlobStore
	records  *records.Store
	cipher   *crypto.Cipher
	rand     *crypto.Random
	recovery *recovery.Protocol
	logger   *events.Logger
	clock    func() time.Time
	newID    func() string
}

// Option customizes engine construction, mainly for tests.
type Option func(*Engine)

// WithBlobStore replaces the default local filesystem store.
func WithBlobStore(blobs storage.BlobStore) Option {
	return func(e *Engine) { e.blobs = blobs }
}

// WithRandom replaces the default CSPRNG source.
func WithRandom(rand *crypto.Random) Option {
	return func(e *Engine) { e.rand = rand }
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator replaces the vault id generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an engine from config.
func New(cfg *config.Config, logger *events.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger.WithField("component", "vault_engine"),
		clock:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.rand == nil {
		e.rand = crypto.NewRandom()
	}
	e.cipher = crypto.NewCipher(e.rand)

	if e.blobs == nil {
		blobs, err := storage.NewLocalStore(cfg.Storage.RecordsDir, logger)
		if err != nil {
			return nil, fmt.Errorf("create record storage: %w", err)
		}
		e.blobs = blobs
	}

	store, err := records.NewStore(e.blobs, e.cipher, logger)
	if err != nil {
		return nil, fmt.Errorf("create record store: %w", err)
	}
	e.records = store

	e.recovery = recovery.NewProtocol(store, e.cipher, e.rand, logger, recovery.Options{
		Iterations:     cfg.Crypto.Iterations,
		MaxAttempts:    cfg.Recovery.MaxAttempts,
		FoldAnswerCase: cfg.Recovery.FoldAnswerCase,
		Clock:          e.clock,
	})

	return e, nil
}

// CreateVault provisions a new vault protected by password and returns
// its metadata.
func (e *Engine) CreateVault(name, description, location, password string) (*models.VaultMetadata, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", crypto.ErrInvalidArgument)
	}

	vaultID := e.newID()
	if exists, err := e.records.HasKeyInfo(vaultID); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("vault %s: %w", vaultID, models.ErrVaultExists)
	}

	salt, err := e.rand.Salt()
	if err != nil {
		return nil, err
	}
	wrapKey, err := crypto.Derive(password, salt, e.cfg.Crypto.Iterations, crypto.KeySize)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(wrapKey)

	masterKey, err := e.rand.Key()
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(masterKey)

	proof, err := e.cipher.KeyProof(wrapKey)
	if err != nil {
		return nil, err
	}
	wrapped, err := e.cipher.Seal(masterKey, wrapKey)
	if err != nil {
		return nil, err
	}
	recoverySalt, err := e.rand.Salt()
	if err != nil {
		return nil, err
	}

	now := e.clock()
	meta := &models.VaultMetadata{
		ID:          vaultID,
		Name:        name,
		Description: description,
		Location:    location,
		CreatedAt:   now,
		ModifiedAt:  now,
		KeyProof:    proof,
		Salt:        salt,
		Iterations:  e.cfg.Crypto.Iterations,
	}
	// Validate before anything touches disk; a rejected create must
	// leave no trace.
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	info := &models.KeyInfo{
		Salt:             salt,
		Iterations:       e.cfg.Crypto.Iterations,
		KeyProof:         proof,
		WrappedMasterKey: wrapped,
		RecoverySalt:     recoverySalt,
	}
	if err := e.records.SaveKeyInfo(vaultID, info); err != nil {
		return nil, err
	}
	if err := e.records.Save(records.KindMetadata, vaultID, meta, masterKey); err != nil {
		_ = e.records.DeleteKeyInfo(vaultID)
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"vault_id": vaultID,
		"name":     name,
	}).Info("Vault created")
	return meta, nil
}

// OpenSession derives the wrapping key from password and unwraps the
// vault's master key. A wrong password yields a single undifferentiated
// authentication failure.
func (e *Engine) OpenSession(vaultID, password string) (*Session, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", crypto.ErrInvalidArgument)
	}

	info, err := e.records.LoadKeyInfo(vaultID)
	if err != nil {
		return nil, err
	}

	wrapKey, err := crypto.Derive(password, info.Salt, info.Iterations, crypto.KeySize)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(wrapKey)

	if err := e.cipher.CheckKeyProof(info.KeyProof, wrapKey); err != nil {
		return nil, crypto.ErrAuthenticationFailed
	}

	masterKey, err := e.cipher.Open(info.WrappedMasterKey, wrapKey)
	if err != nil {
		return nil, crypto.ErrAuthenticationFailed
	}

	e.logger.WithField("vault_id", vaultID).Debug("Session opened")
	return e.newSession(vaultID, masterKey), nil
}

// Recover verifies recovery answers and, on success, opens a session
// from the escrowed master key. The usual follow-up is ChangePassword.
func (e *Engine) Recover(vaultID string, answers []string) (*Session, error) {
	recordKey, err := e.recoveryRecordKey(vaultID)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(recordKey)

	masterKey, err := e.recovery.Verify(vaultID, answers, recordKey)
	if err != nil {
		return nil, err
	}

	e.logger.WithField("vault_id", vaultID).Info("Session opened via recovery")
	return e.newSession(vaultID, masterKey), nil
}

// RecoveryQuestions returns the questions to prompt for, in answer
// order. No password is needed.
func (e *Engine) RecoveryQuestions(vaultID string) ([]recovery.Question, error) {
	recordKey, err := e.recoveryRecordKey(vaultID)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(recordKey)

	return e.recovery.Questions(vaultID, recordKey)
}

// RecoveryAttemptsRemaining reports the attempt budget left for a vault.
func (e *Engine) RecoveryAttemptsRemaining(vaultID string) (int, error) {
	recordKey, err := e.recoveryRecordKey(vaultID)
	if err != nil {
		return 0, err
	}
	defer crypto.Zero(recordKey)

	return e.recovery.AttemptsRemaining(vaultID, recordKey)
}

// HasRecovery reports whether recovery is configured for a vault.
func (e *Engine) HasRecovery(vaultID string) (bool, error) {
	return e.recovery.Configured(vaultID)
}

// ListVaults enumerates all known vault ids.
func (e *Engine) ListVaults() ([]string, error) {
	return e.records.ListVaults()
}

// DeleteVault authenticates with password and removes the vault's
// records, configuration, recovery escrow, and key parameters.
func (e *Engine) DeleteVault(vaultID, password string) error {
	session, err := e.OpenSession(vaultID, password)
	if err != nil {
		return err
	}
	session.Close()

	for _, kind := range []records.Kind{records.KindMetadata, records.KindConfig, records.KindRecovery} {
		if err := e.records.Delete(kind, vaultID); err != nil {
			return err
		}
	}
	if err := e.records.DeleteKeyInfo(vaultID); err != nil {
		return err
	}

	e.logger.WithField("vault_id", vaultID).Info("Vault deleted")
	return nil
}

func (e *Engine) newSession(vaultID string, masterKey []byte) *Session {
	return &Session{
		engine:  e,
		vaultID: vaultID,
		key:     masterKey,
	}
}

// recoveryRecordKey derives the key that seals the recovery record.
// It is derivable without the password (recovery must work for a
// locked-out user); the escrowed master key inside carries the real
// protection.
func (e *Engine) recoveryRecordKey(vaultID string) ([]byte, error) {
	info, err := e.records.LoadKeyInfo(vaultID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("vault %s: %w", vaultID, models.ErrNotFound)
		}
		return nil, err
	}
	return crypto.Derive(vaultID, info.RecoverySalt, info.Iterations, crypto.KeySize)
}
