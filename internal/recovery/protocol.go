// Package recovery escrows a vault's master key under a set of
// security questions and releases it through attempt-limited
// verification.
package recovery

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phantomvault/vaultcore/internal/crypto"
	"github.com/phantomvault/vaultcore/internal/events"
	"github.com/phantomvault/vaultcore/internal/models"
	"github.com/phantomvault/vaultcore/internal/records"
)

// answerSeparator joins normalized answers before deriving the unwrap
// key. A non-printable separator keeps ("ab","c") and ("a","bc") from
// deriving the same key.
const answerSeparator = "\x1f"

// QA is one question/answer pair supplied at setup.
type QA struct {
	Question string
	Answer   string
}

// Question is the caller-facing view used to prompt the user. Salts
// and verifiers stay inside the protocol.
type Question struct {
	ID   string
	Text string
}

// Options tune the protocol.
type Options struct {
	Iterations     int  // KDF iterations for verifiers and the unwrap key
	MaxAttempts    int  // attempt budget per vault
	FoldAnswerCase bool // case-insensitive answer matching
	Clock          func() time.Time
}

// Protocol manages recovery records for all vaults. Verify calls on the
// same vault are serialized so the attempt decrement cannot race.
type Protocol struct {
	store  *records.Store
	cipher *crypto.Cipher
	rand   *crypto.Random
	opts   Options
	logger *events.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProtocol creates a recovery protocol over the given record store.
func NewProtocol(store *records.Store, cipher *crypto.Cipher, rand *crypto.Random, logger *events.Logger, opts Options) *Protocol {
	if opts.Iterations == 0 {
		opts.Iterations = crypto.DefaultIterations
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Protocol{
		store:  store,
		cipher: cipher,
		rand:   rand,
		opts:   opts,
		logger: logger.WithField("component", "recovery"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Setup escrows masterKey under the given questions and answers,
// replacing any previous recovery configuration for the vault. The
// record itself is sealed with recordKey.
func (p *Protocol) Setup(vaultID string, masterKey []byte, qas []QA, recordKey []byte) error {
	if len(qas) == 0 {
		return fmt.Errorf("%w: no questions supplied", crypto.ErrInvalidArgument)
	}
	for i, qa := range qas {
		if strings.TrimSpace(qa.Question) == "" {
			return fmt.Errorf("%w: question %d is empty", crypto.ErrInvalidArgument, i)
		}
		if crypto.NormalizeAnswer(qa.Answer, p.opts.FoldAnswerCase) == "" {
			return fmt.Errorf("%w: answer %d is empty", crypto.ErrInvalidArgument, i)
		}
	}

	unlock := p.lockVault(vaultID)
	defer unlock()

	questions := make([]models.RecoveryQuestion, len(qas))
	answers := make([]string, len(qas))
	for i, qa := range qas {
		answers[i] = crypto.NormalizeAnswer(qa.Answer, p.opts.FoldAnswerCase)

		salt, err := p.rand.Salt()
		if err != nil {
			return err
		}
		verifier, err := crypto.Derive(answers[i], salt, p.opts.Iterations, crypto.KeySize)
		if err != nil {
			return err
		}
		questions[i] = models.RecoveryQuestion{
			ID:       uuid.NewString(),
			Text:     strings.TrimSpace(qa.Question),
			Salt:     salt,
			Verifier: verifier,
		}
	}

	escrowSalt, err := p.rand.Salt()
	if err != nil {
		return err
	}
	unwrapKey, err := crypto.Derive(strings.Join(answers, answerSeparator), escrowSalt,
		p.opts.Iterations, crypto.KeySize)
	if err != nil {
		return err
	}
	defer crypto.Zero(unwrapKey)

	escrow, err := p.cipher.Seal(masterKey, unwrapKey)
	if err != nil {
		return err
	}

	now := p.opts.Clock()
	info := &models.RecoveryInfo{
		VaultID:           vaultID,
		CreatedAt:         now,
		LastUsed:          now,
		AttemptsRemaining: p.opts.MaxAttempts,
		MaxAttempts:       p.opts.MaxAttempts,
		EscrowSalt:        escrowSalt,
		EscrowedMasterKey: escrow,
		Questions:         questions,
	}
	if err := info.Validate(); err != nil {
		return fmt.Errorf("build recovery record: %w", err)
	}

	if err := p.store.Save(records.KindRecovery, vaultID, info, recordKey); err != nil {
		return err
	}

	p.logger.WithFields(map[string]interface{}{
		"vault_id":  vaultID,
		"questions": len(questions),
	}).Info("Recovery configured")
	return nil
}

// Verify checks the supplied answers and, if they are correct, returns
// the escrowed master key. Every wrong attempt is persisted before the
// error returns, so aborting the process cannot replay an attempt.
func (p *Protocol) Verify(vaultID string, answers []string, recordKey []byte) ([]byte, error) {
	unlock := p.lockVault(vaultID)
	defer unlock()

	info, err := p.load(vaultID, recordKey)
	if err != nil {
		return nil, err
	}

	if info.Exhausted() {
		return nil, models.ErrRecoveryExhausted
	}
	if len(answers) != len(info.Questions) {
		return nil, fmt.Errorf("%w: got %d answers for %d questions",
			models.ErrAnswerCountMismatch, len(answers), len(info.Questions))
	}

	normalized := make([]string, len(answers))
	for i, answer := range answers {
		normalized[i] = crypto.NormalizeAnswer(answer, p.opts.FoldAnswerCase)
	}

	// Per-question verifiers are a sanity check only; releasing the key
	// depends on the joint derivation below.
	plausible := true
	for i, q := range info.Questions {
		verifier, err := crypto.Derive(orPlaceholder(normalized[i]), q.Salt,
			p.opts.Iterations, crypto.KeySize)
		if err != nil {
			return nil, err
		}
		if !hmac.Equal(verifier, q.Verifier) {
			plausible = false
		}
	}

	var masterKey []byte
	if plausible {
		unwrapKey, err := crypto.Derive(strings.Join(normalized, answerSeparator),
			info.EscrowSalt, p.opts.Iterations, crypto.KeySize)
		if err != nil {
			return nil, err
		}
		masterKey, err = p.cipher.Open(info.EscrowedMasterKey, unwrapKey)
		crypto.Zero(unwrapKey)
		if err != nil && !errors.Is(err, crypto.ErrAuthenticationFailed) {
			return nil, err
		}
	}

	info.LastUsed = p.opts.Clock()

	if masterKey == nil {
		info.AttemptsRemaining--
		if err := p.store.Save(records.KindRecovery, vaultID, info, recordKey); err != nil {
			return nil, fmt.Errorf("persist attempt: %w", err)
		}
		p.logger.WithFields(map[string]interface{}{
			"vault_id":  vaultID,
			"remaining": info.AttemptsRemaining,
		}).Warn("Recovery attempt failed")
		return nil, &models.IncorrectAnswersError{Remaining: info.AttemptsRemaining}
	}

	// Successful recovery restores the full attempt budget.
	info.AttemptsRemaining = info.MaxAttempts
	if err := p.store.Save(records.KindRecovery, vaultID, info, recordKey); err != nil {
		crypto.Zero(masterKey)
		return nil, fmt.Errorf("persist attempt: %w", err)
	}

	p.logger.WithField("vault_id", vaultID).Info("Master key recovered")
	return masterKey, nil
}

// Questions returns the registered questions in answer order. Salts and
// verifiers are not exposed.
func (p *Protocol) Questions(vaultID string, recordKey []byte) ([]Question, error) {
	info, err := p.load(vaultID, recordKey)
	if err != nil {
		return nil, err
	}

	questions := make([]Question, len(info.Questions))
	for i, q := range info.Questions {
		questions[i] = Question{ID: q.ID, Text: q.Text}
	}
	return questions, nil
}

// AttemptsRemaining reports the remaining attempt budget.
func (p *Protocol) AttemptsRemaining(vaultID string, recordKey []byte) (int, error) {
	info, err := p.load(vaultID, recordKey)
	if err != nil {
		return 0, err
	}
	return info.AttemptsRemaining, nil
}

// Configured reports whether a recovery record exists for the vault.
func (p *Protocol) Configured(vaultID string) (bool, error) {
	return p.store.Exists(records.KindRecovery, vaultID)
}

// Remove deletes the recovery record entirely. Idempotent.
func (p *Protocol) Remove(vaultID string) error {
	unlock := p.lockVault(vaultID)
	defer unlock()
	return p.store.Delete(records.KindRecovery, vaultID)
}

func (p *Protocol) load(vaultID string, recordKey []byte) (*models.RecoveryInfo, error) {
	var info models.RecoveryInfo
	if err := p.store.Load(records.KindRecovery, vaultID, &info, recordKey); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("vault %s: %w", vaultID, models.ErrNoRecovery)
		}
		return nil, err
	}
	return &info, nil
}

func (p *Protocol) lockVault(vaultID string) func() {
	p.mu.Lock()
	lock, ok := p.locks[vaultID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[vaultID] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// orPlaceholder keeps the verifier derivation total for empty answers,
// which the KDF would otherwise reject. An empty answer can never match
// a registered verifier.
func orPlaceholder(answer string) string {
	if answer == "" {
		return "\x00"
	}
	return answer
}
