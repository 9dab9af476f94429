package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrCorruptRecord indicates decryption succeeded but the plaintext
	// could not be deserialized.
	ErrCorruptRecord = errors.New("record is corrupt")

	// ErrVaultExists indicates a vault id collision on creation.
	ErrVaultExists = errors.New("vault already exists")

	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNoRecovery indicates recovery has not been configured for the
	// vault.
	ErrNoRecovery = errors.New("recovery not configured")

	// ErrRecoveryExhausted indicates all recovery attempts were spent.
	// Terminal: only an administrative reset (vault re-creation) clears it.
	ErrRecoveryExhausted = errors.New("recovery attempts exhausted")

	// ErrAnswerCountMismatch indicates the supplied answers do not match
	// the number of registered questions.
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")

	// ErrIncorrectAnswers indicates a failed recovery attempt. Returned
	// wrapped in IncorrectAnswersError, which carries the remaining count.
	ErrIncorrectAnswers = errors.New("incorrect recovery answers")
)

// IncorrectAnswersError reports a failed recovery attempt along with
// how many attempts remain before the vault locks out.
type IncorrectAnswersError struct {
	Remaining int
}

func (e *IncorrectAnswersError) Error() string {
	return fmt.Sprintf("incorrect recovery answers: %d attempts remaining", e.Remaining)
}

func (e *IncorrectAnswersError) Unwrap() error {
	return ErrIncorrectAnswers
}

// RecordError wraps a storage failure with the record it concerns.
type RecordError struct {
	Kind    string
	VaultID string
	Op      string
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s record for vault %s: %v", e.Op, e.Kind, e.VaultID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
