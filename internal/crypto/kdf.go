package crypto

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinIterations is the lowest iteration count accepted for key
	// derivation. Anything below is rejected as too weak.
	MinIterations = 10_000

	// DefaultIterations is the iteration count for newly created secrets
	// (NIST SP 800-132 guidance).
	DefaultIterations = 100_000
)

// Derive stretches a password or recovery answer into a key of the
// requested length using PBKDF2-HMAC-SHA256. Equal inputs always
// produce equal output; password verification and escrow unwrapping
// both rely on that.
func Derive(secret string, salt []byte, iterations, length int) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidArgument)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", ErrInvalidArgument)
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("%w: %d iterations (minimum %d)",
			ErrWeakParameters, iterations, MinIterations)
	}
	if length <= 0 {
		return nil, fmt.Errorf("%w: key length %d", ErrInvalidArgument, length)
	}

	return pbkdf2.Key([]byte(secret), salt, iterations, length, sha256.New), nil
}

// NormalizeAnswer canonicalizes a recovery answer before derivation.
// Surrounding whitespace never counts; case folding is a policy choice
// and must match between setup and verification.
func NormalizeAnswer(answer string, foldCase bool) string {
	answer = strings.TrimSpace(answer)
	if foldCase {
		answer = strings.ToLower(answer)
	}
	return answer
}
