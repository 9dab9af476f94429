package models

import (
	"fmt"
	"strings"
	"time"
)

// RecoveryQuestion is one security question registered for a vault.
// The verifier is a slow-hash derivation of the normalized answer and
// the per-question salt; the answer itself is never stored.
type RecoveryQuestion struct {
	ID       string `json:"question_id"`
	Text     string `json:"question_text"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"answer_verifier"`
}

// RecoveryInfo is the escrow record for one vault. The master key is
// sealed under a key derived from the full answer set; question order
// is significant because answers must be supplied in the same order.
type RecoveryInfo struct {
	VaultID           string             `json:"vault_id"`
	CreatedAt         time.Time          `json:"created_time"`
	LastUsed          time.Time          `json:"last_used"`
	AttemptsRemaining int                `json:"attempts_remaining"`
	MaxAttempts       int                `json:"max_attempts"`
	EscrowSalt        []byte             `json:"escrow_salt"`
	EscrowedMasterKey []byte             `json:"escrowed_master_key"`
	Questions         []RecoveryQuestion `json:"questions"`
}

// Exhausted reports whether all recovery attempts have been spent.
func (r *RecoveryInfo) Exhausted() bool {
	return r.AttemptsRemaining <= 0
}

// Validate checks the recovery record structure.
func (r *RecoveryInfo) Validate() error {
	if strings.TrimSpace(r.VaultID) == "" {
		return fmt.Errorf("vault ID is required")
	}
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if r.AttemptsRemaining < 0 || r.AttemptsRemaining > r.MaxAttempts {
		return fmt.Errorf("attempts remaining out of range")
	}
	if len(r.EscrowSalt) == 0 {
		return fmt.Errorf("escrow salt is required")
	}
	if len(r.EscrowedMasterKey) == 0 {
		return fmt.Errorf("escrowed master key is required")
	}
	if len(r.Questions) == 0 {
		return fmt.Errorf("at least one question is required")
	}
	for i, q := range r.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d: text is required", i)
		}
		if len(q.Salt) == 0 {
			return fmt.Errorf("question %d: salt is required", i)
		}
		if len(q.Verifier) == 0 {
			return fmt.Errorf("question %d: answer verifier is required", i)
		}
	}
	return nil
}
